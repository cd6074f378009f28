package repo

import (
	"context"
	"fmt"

	"github.com/odvcencio/cirrus/pkg/object"
)

// ConnectivityReport summarizes VerifyConnectivity.
type ConnectivityReport struct {
	Refs    int // branch tips plus a detached HEAD
	Objects int // distinct objects reachable from those refs
}

// VerifyConnectivity walks every branch tip, and HEAD when detached, through
// the full parent chain, failing on the first object that is missing or
// unreadable.
func (r *Repo) VerifyConnectivity(ctx context.Context) (*ConnectivityReport, error) {
	branches, err := r.ListBranches()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	var roots []object.Hash
	for _, b := range branches {
		if b.Tip != "" {
			roots = append(roots, b.Tip)
		}
	}
	head, err := r.ReadHead()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if head.Kind == HeadDetached {
		roots = append(roots, head.Commit)
	}

	seen := make(map[object.Hash]struct{})
	opts := object.WalkOptions{
		FollowParents: true,
		Skip: func(h object.Hash) bool {
			_, ok := seen[h]
			return ok
		},
	}
	for _, root := range roots {
		for h, err := range r.Store.WalkReachable(root, opts) {
			if err != nil {
				return nil, fmt.Errorf("verify from %s: %w", root.Short(), err)
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			seen[h] = struct{}{}
		}
	}
	return &ConnectivityReport{Refs: len(roots), Objects: len(seen)}, nil
}
