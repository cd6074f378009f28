package repo

import (
	"fmt"

	"github.com/odvcencio/cirrus/pkg/object"
)

// FileStatus is the staged state of a path relative to HEAD.
type FileStatus int

const (
	StatusNew      FileStatus = iota // staged, not in HEAD
	StatusModified                   // staged with different content or mode than HEAD
	StatusDeleted                    // in HEAD, staged for removal
)

func (s FileStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("FileStatus(%d)", int(s))
	}
}

// StatusEntry records the staged status of a single file.
type StatusEntry struct {
	Path    string
	Status  FileStatus
	Hash    object.Hash // staged id; empty for StatusDeleted
	OldHash object.Hash // HEAD id; empty for StatusNew
}

// Status compares the index with HEAD's snapshot. Staged entries identical
// to HEAD are omitted. Entries come back in path order.
func (r *Repo) Status() ([]StatusEntry, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	_, snapshot, err := r.headSnapshot()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	var out []StatusEntry
	for _, e := range idx.Sorted() {
		prev, inHead := snapshot[e.Path]
		switch {
		case e.Removed:
			if inHead {
				out = append(out, StatusEntry{Path: e.Path, Status: StatusDeleted, OldHash: prev.Hash})
			}
		case !inHead:
			out = append(out, StatusEntry{Path: e.Path, Status: StatusNew, Hash: e.Hash})
		case prev.Hash != e.Hash || prev.Mode != e.Mode:
			out = append(out, StatusEntry{Path: e.Path, Status: StatusModified, Hash: e.Hash, OldHash: prev.Hash})
		}
	}
	return out, nil
}
