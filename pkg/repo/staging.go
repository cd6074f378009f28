package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/vmihailenco/msgpack"
)

const indexVersion = 1

// IndexEntry records the staged state of a single path. A Removed entry
// drops the path from the next snapshot.
type IndexEntry struct {
	Path    string      `msgpack:"path"`
	Hash    object.Hash `msgpack:"hash,omitempty"`
	Mode    string      `msgpack:"mode,omitempty"`
	Removed bool        `msgpack:"removed,omitempty"`
	ModTime int64       `msgpack:"mtime,omitempty"`
	Size    int64       `msgpack:"size,omitempty"`
}

// Index is the staging area: one entry per repository-relative path.
type Index struct {
	Version int                    `msgpack:"version"`
	Entries map[string]*IndexEntry `msgpack:"entries"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Version: indexVersion, Entries: make(map[string]*IndexEntry)}
}

// Stage inserts or overwrites the entry for p. It does not touch the object
// store; the caller must already have written h.
func (idx *Index) Stage(p string, h object.Hash, mode string) error {
	p, err := cleanIndexPath(p)
	if err != nil {
		return err
	}
	if !object.ValidHash(h) {
		return fmt.Errorf("stage %q: invalid object id %q", p, h)
	}
	switch mode {
	case "":
		mode = object.TreeModeFile
	case object.TreeModeFile, object.TreeModeExecutable:
	default:
		return fmt.Errorf("stage %q: unsupported mode %q", p, mode)
	}
	idx.Entries[p] = &IndexEntry{Path: p, Hash: h, Mode: mode}
	return nil
}

// Remove records a removal marker for p.
func (idx *Index) Remove(p string) error {
	p, err := cleanIndexPath(p)
	if err != nil {
		return err
	}
	idx.Entries[p] = &IndexEntry{Path: p, Removed: true}
	return nil
}

// Get returns the entry for p.
func (idx *Index) Get(p string) (*IndexEntry, bool) {
	e, ok := idx.Entries[p]
	return e, ok
}

func (idx *Index) Len() int {
	return len(idx.Entries)
}

// Sorted returns copies of the entries ordered by path.
func (idx *Index) Sorted() []IndexEntry {
	out := make([]IndexEntry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// cleanIndexPath normalizes p to a clean forward-slash path whose every
// component is a valid tree entry name.
func cleanIndexPath(p string) (string, error) {
	p = path.Clean(filepath.ToSlash(p))
	if p == "." || strings.HasPrefix(p, "/") || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("invalid index path %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if err := object.ValidateEntryName(part); err != nil {
			return "", fmt.Errorf("invalid index path %q: %w", p, err)
		}
	}
	return p, nil
}

func (r *Repo) indexPath() string {
	return filepath.Join(r.RootDir, IndexFile)
}

// ReadIndex loads <root>/.index. A missing file yields an empty index.
func (r *Repo) ReadIndex() (*Index, error) {
	if !r.local {
		return nil, ErrNoIndex
	}
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, object.StorageFault("read index", r.indexPath(), err)
	}

	var idx Index
	if err := msgpack.Unmarshal(data, &idx); err != nil {
		return nil, object.StorageFault("read index", r.indexPath(), err)
	}
	if idx.Version != indexVersion {
		return nil, fmt.Errorf("read index: unsupported version %d", idx.Version)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*IndexEntry)
	}
	return &idx, nil
}

// WriteIndex atomically writes <root>/.index.
func (r *Repo) WriteIndex(idx *Index) error {
	if !r.local {
		return ErrNoIndex
	}
	idx.Version = indexVersion
	data, err := msgpack.Marshal(idx)
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}
	if err := renameio.WriteFile(r.indexPath(), data, 0o644); err != nil {
		return object.StorageFault("write index", r.indexPath(), err)
	}
	return nil
}

// ClearIndex empties the staging area.
func (r *Repo) ClearIndex() error {
	if !r.local {
		return ErrNoIndex
	}
	if err := os.Remove(r.indexPath()); err != nil && !os.IsNotExist(err) {
		return object.StorageFault("clear index", r.indexPath(), err)
	}
	return nil
}

// Stage records (p, h, mode) in the persisted index.
func (r *Repo) Stage(p string, h object.Hash, mode string) error {
	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}
	if err := idx.Stage(p, h, mode); err != nil {
		return err
	}
	return r.WriteIndex(idx)
}

// Add stores the content of each path as a blob and stages it. Relative
// paths resolve against the repository root. Directories are walked,
// skipping ignored entries; explicitly named files are always staged.
func (r *Repo) Add(paths []string) error {
	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	ignore, err := NewIgnoreChecker(r.RootDir)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	staged := 0
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
		info, err := os.Lstat(abs)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return fmt.Errorf("add: %q is not a regular file", rel)
			}
			if err := r.addFile(idx, rel, abs, info); err != nil {
				return fmt.Errorf("add: %w", err)
			}
			staged++
			continue
		}

		err = filepath.WalkDir(abs, func(fp string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			relPath, err := filepath.Rel(r.RootDir, fp)
			if err != nil {
				return err
			}
			relPath = filepath.ToSlash(relPath)
			if relPath == "." {
				return nil
			}
			if ignore.IsIgnored(relPath, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			// A nested repository or replica belongs to itself.
			if d.IsDir() && isRepoRoot(fp) {
				return filepath.SkipDir
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := r.addFile(idx, relPath, fp, info); err != nil {
				return err
			}
			staged++
			return nil
		})
		if err != nil {
			return fmt.Errorf("add %q: %w", rel, err)
		}
	}

	if err := r.WriteIndex(idx); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	r.log.WithField("files", staged).Debug("staged files")
	return nil
}

func (r *Repo) addFile(idx *Index, rel, abs string, info os.FileInfo) error {
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %q: %w", rel, err)
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", rel, err)
	}
	if err := idx.Stage(rel, h, modeFromFileInfo(info)); err != nil {
		return err
	}
	e := idx.Entries[rel]
	e.ModTime = info.ModTime().Unix()
	e.Size = info.Size()
	return nil
}

// Remove stages the removal of tracked paths and returns the affected
// paths. A directory argument removes every tracked path below it. A path
// that is only staged, not committed, is simply unstaged.
func (r *Repo) Remove(paths []string) ([]string, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("rm: %w", err)
	}
	_, snapshot, err := r.headSnapshot()
	if err != nil {
		return nil, fmt.Errorf("rm: %w", err)
	}

	tracked := make(map[string]bool, len(snapshot)+idx.Len())
	for p := range snapshot {
		tracked[p] = true
	}
	for p, e := range idx.Entries {
		if !e.Removed {
			tracked[p] = true
		}
	}

	var removed []string
	for _, arg := range paths {
		rel, err := r.repoRelPath(arg)
		if err != nil {
			return nil, fmt.Errorf("rm: %w", err)
		}
		matched := false
		for p := range tracked {
			if rel != "." && p != rel && !strings.HasPrefix(p, rel+"/") {
				continue
			}
			matched = true
			if _, committed := snapshot[p]; committed {
				if err := idx.Remove(p); err != nil {
					return nil, fmt.Errorf("rm: %w", err)
				}
			} else {
				delete(idx.Entries, p)
			}
			delete(tracked, p)
			removed = append(removed, p)
		}
		if !matched {
			return nil, fmt.Errorf("rm: %q did not match any tracked file", rel)
		}
	}

	if err := r.WriteIndex(idx); err != nil {
		return nil, fmt.Errorf("rm: %w", err)
	}
	sort.Strings(removed)
	return removed, nil
}

// repoRelPath converts p, absolute or relative to the repository root, into
// a clean forward-slash repository-relative path. Paths that leave the root
// or reach into repository metadata are rejected.
func (r *Repo) repoRelPath(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.RootDir, p)
	}
	rel, err := filepath.Rel(r.RootDir, filepath.Clean(abs))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRepo, p)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRepo, p)
	}
	first, _, _ := strings.Cut(rel, "/")
	for _, name := range metadataNames {
		if first == name {
			return "", fmt.Errorf("%q is repository metadata", rel)
		}
	}
	return rel, nil
}
