package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/cirrus/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path string
	Hash object.Hash
	Mode string
}

// BuildTree writes the nested tree objects for a flat snapshot keyed by
// forward-slash path and returns the root tree id. A path that is both a
// file and a directory prefix of another path is an error.
func (r *Repo) BuildTree(snapshot map[string]TreeFileEntry) (object.Hash, error) {
	if err := checkPathConflicts(snapshot); err != nil {
		return "", err
	}
	return r.buildTreeDir(snapshot, "")
}

// buildTreeDir writes the TreeObj for the directory prefix and returns its
// id.
func (r *Repo) buildTreeDir(snapshot map[string]TreeFileEntry, prefix string) (object.Hash, error) {
	files := make(map[string]TreeFileEntry)
	subdirs := make(map[string]struct{})

	for p, entry := range snapshot {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		if slash := strings.IndexByte(rel, '/'); slash < 0 {
			files[rel] = entry
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	entries := make([]object.TreeEntry, 0, len(files)+len(subdirs))
	for name, entry := range files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: entry.Mode, Hash: entry.Hash})
	}
	for name := range subdirs {
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := r.buildTreeDir(snapshot, childPrefix)
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeDir, Hash: subHash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

func checkPathConflicts(snapshot map[string]TreeFileEntry) error {
	for p := range snapshot {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if _, ok := snapshot[dir]; ok {
				return fmt.Errorf("build tree: %q is a file but %q needs it as a directory", dir, p)
			}
		}
	}
	return nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths in path order.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	var result []TreeFileEntry
	if err := r.flattenTreeRec(h, "", &result); err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string, out *[]TreeFileEntry) error {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}
		if entry.IsDir() {
			if err := r.flattenTreeRec(entry.Hash, fullPath, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, TreeFileEntry{Path: fullPath, Hash: entry.Hash, Mode: entry.Mode})
	}
	return nil
}

// headSnapshot returns the files of HEAD's commit keyed by path; it is empty
// when HEAD is unborn.
func (r *Repo) headSnapshot() (Head, map[string]TreeFileEntry, error) {
	head, err := r.ReadHead()
	if err != nil {
		return Head{}, nil, err
	}
	snapshot := make(map[string]TreeFileEntry)
	if head.Kind == HeadUnborn {
		return head, snapshot, nil
	}
	c, err := r.Store.ReadCommit(head.Commit)
	if err != nil {
		return Head{}, nil, fmt.Errorf("read HEAD commit %s: %w", head.Commit, err)
	}
	files, err := r.FlattenTree(c.TreeHash)
	if err != nil {
		return Head{}, nil, err
	}
	for _, f := range files {
		snapshot[f.Path] = f
	}
	return head, snapshot, nil
}

// overlayIndex applies staged entries and removal markers to snapshot.
func overlayIndex(snapshot map[string]TreeFileEntry, idx *Index) {
	for _, e := range idx.Entries {
		if e.Removed {
			delete(snapshot, e.Path)
			continue
		}
		snapshot[e.Path] = TreeFileEntry{Path: e.Path, Hash: e.Hash, Mode: e.Mode}
	}
}
