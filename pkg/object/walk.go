package object

import (
	"iter"

	"github.com/pkg/errors"
)

// WalkOptions controls WalkReachable.
type WalkOptions struct {
	// FollowParents continues into the parent chain after a commit's own
	// tree has been walked.
	FollowParents bool
	// Skip, when non-nil, prunes an id: it is not yielded and nothing below
	// it is visited.
	Skip func(Hash) bool
}

type walkItem struct {
	hash  Hash
	isDir bool
}

// WalkReachable lazily yields every object reachable from the commit start
// in depth-first pre-order: the commit, its tree, the tree's entries in
// stored order (descending into subtrees as they are met), then the parent
// commit when FollowParents is set. Each id is yielded at most once. A
// missing or unreadable object ends the walk with an error.
func (s *Store) WalkReachable(start Hash, opts WalkOptions) iter.Seq2[Hash, error] {
	return func(yield func(Hash, error) bool) {
		visited := make(map[Hash]struct{})
		pruned := func(h Hash) bool {
			if _, ok := visited[h]; ok {
				return true
			}
			visited[h] = struct{}{}
			return opts.Skip != nil && opts.Skip(h)
		}

		for commit := start; commit != ""; {
			if pruned(commit) {
				return
			}
			c, err := s.ReadCommit(commit)
			if err != nil {
				yield("", errors.Wrapf(err, "walk commit %s", commit))
				return
			}
			if !yield(commit, nil) {
				return
			}
			if !s.walkTree(c.TreeHash, pruned, yield) {
				return
			}
			if !opts.FollowParents {
				return
			}
			commit = c.Parent
		}
	}
}

// walkTree yields root and everything below it. It returns false when the
// walk must stop, either because the consumer did or because of an error.
func (s *Store) walkTree(root Hash, pruned func(Hash) bool, yield func(Hash, error) bool) bool {
	stack := []walkItem{{hash: root, isDir: true}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pruned(item.hash) {
			continue
		}

		if !item.isDir {
			if !s.Has(item.hash) {
				yield("", errors.Wrapf(ErrObjectNotFound, "walk blob %s", item.hash))
				return false
			}
			if !yield(item.hash, nil) {
				return false
			}
			continue
		}

		tr, err := s.ReadTree(item.hash)
		if err != nil {
			yield("", errors.Wrapf(err, "walk tree %s", item.hash))
			return false
		}
		if !yield(item.hash, nil) {
			return false
		}
		// Push in reverse so entries pop in stored order.
		for i := len(tr.Entries) - 1; i >= 0; i-- {
			e := tr.Entries[i]
			stack = append(stack, walkItem{hash: e.Hash, isDir: e.IsDir()})
		}
	}
	return true
}
