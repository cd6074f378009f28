package remote

import (
	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/pkg/errors"
)

// planTransfer lists the objects reachable from tip, parent chain included,
// for which present reports false. Objects come after everything they
// reference, so a receiver written in plan order never holds an object whose
// children it lacks.
func planTransfer(store *object.Store, tip object.Hash, present func(object.Hash) bool) ([]ObjectRecord, error) {
	var order []object.Hash
	for h, err := range store.WalkReachable(tip, object.WalkOptions{FollowParents: true, Skip: present}) {
		if err != nil {
			return nil, errors.Wrapf(err, "walk from %s", tip.Short())
		}
		order = append(order, h)
	}

	records := make(map[object.Hash]ObjectRecord, len(order))
	edges := make(map[object.Hash][]object.Hash, len(order))
	for _, h := range order {
		objType, data, err := store.Read(h)
		if err != nil {
			return nil, errors.Wrapf(err, "read object %s", h)
		}
		refs, err := object.References(objType, data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse object %s (%s)", h, objType)
		}
		records[h] = ObjectRecord{Hash: h, Type: objType, Data: data}
		edges[h] = refs
	}

	type frame struct {
		hash object.Hash
		next int
	}
	plan := make([]ObjectRecord, 0, len(order))
	emitted := make(map[object.Hash]bool, len(order))
	for _, root := range order {
		if emitted[root] {
			continue
		}
		stack := []frame{{hash: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if children := edges[top.hash]; top.next < len(children) {
				child := children[top.next]
				top.next++
				if _, missing := records[child]; missing && !emitted[child] {
					stack = append(stack, frame{hash: child})
				}
				continue
			}
			h := top.hash
			stack = stack[:len(stack)-1]
			if !emitted[h] {
				emitted[h] = true
				plan = append(plan, records[h])
			}
		}
	}
	return plan, nil
}
