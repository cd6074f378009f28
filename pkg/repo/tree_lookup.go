package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/cirrus/pkg/object"
)

// ResolveRevision turns a branch name or a full commit id into a commit id.
// An empty rev means HEAD.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return r.ResolveHead()
	}
	h, err := r.ResolveBranch(rev)
	if err == nil || !object.ValidHash(object.Hash(rev)) {
		return h, err
	}
	if _, err := r.Store.ReadCommit(object.Hash(rev)); err != nil {
		return "", fmt.Errorf("resolve %s: %w", rev, err)
	}
	return object.Hash(rev), nil
}

// ReadFileAt returns the tree entry and content of relPath in the snapshot
// of commit. Missing paths and directories yield ErrPathNotInSnapshot.
func (r *Repo) ReadFileAt(commit object.Hash, relPath string) (object.TreeEntry, []byte, error) {
	c, err := r.Store.ReadCommit(commit)
	if err != nil {
		return object.TreeEntry{}, nil, fmt.Errorf("read commit %s: %w", commit, err)
	}
	clean, err := cleanIndexPath(relPath)
	if err != nil {
		return object.TreeEntry{}, nil, err
	}
	entry, found, err := r.treeEntryAtPath(c.TreeHash, clean)
	if err != nil {
		return object.TreeEntry{}, nil, err
	}
	if !found {
		return object.TreeEntry{}, nil, fmt.Errorf("%s at %s: %w", clean, commit.Short(), ErrPathNotInSnapshot)
	}
	blob, err := r.Store.ReadBlob(entry.Hash)
	if err != nil {
		return object.TreeEntry{}, nil, fmt.Errorf("read blob %s: %w", entry.Hash, err)
	}
	return entry, blob.Data, nil
}

func (r *Repo) treeEntryAtPath(treeHash object.Hash, relPath string) (object.TreeEntry, bool, error) {
	parts := strings.Split(relPath, "/")
	current := treeHash

	for i, part := range parts {
		treeObj, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}

		var (
			entry object.TreeEntry
			found bool
		)
		for _, te := range treeObj.Entries {
			if te.Name == part {
				entry = te
				found = true
				break
			}
		}
		if !found {
			return object.TreeEntry{}, false, nil
		}

		if i == len(parts)-1 {
			if entry.IsDir() {
				return object.TreeEntry{}, false, nil
			}
			return entry, true, nil
		}
		if !entry.IsDir() {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}

	return object.TreeEntry{}, false, nil
}
