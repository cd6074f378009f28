package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/odvcencio/cirrus/pkg/object"
)

// WorktreeState classifies a working file against the snapshot the next
// commit would record.
type WorktreeState int

const (
	WorktreeModified  WorktreeState = iota // content or mode differs
	WorktreeMissing                        // tracked but absent on disk
	WorktreeUntracked                      // on disk, not tracked, not ignored
)

func (s WorktreeState) String() string {
	switch s {
	case WorktreeModified:
		return "modified"
	case WorktreeMissing:
		return "missing"
	case WorktreeUntracked:
		return "untracked"
	default:
		return fmt.Sprintf("WorktreeState(%d)", int(s))
	}
}

// WorktreeEntry is one unstaged difference.
type WorktreeEntry struct {
	Path  string
	State WorktreeState
}

// statusFingerprint is the stat data recorded when a path was staged.
type statusFingerprint struct {
	ModTime int64
	Size    int64
}

// WorktreeStatus compares the working directory with HEAD's snapshot
// overlaid by the index. Files whose size and modification time still match
// their index entry are not re-read. Entries come back in path order.
func (r *Repo) WorktreeStatus() ([]WorktreeEntry, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	_, expected, err := r.headSnapshot()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	overlayIndex(expected, idx)

	fingerprints := make(map[string]statusFingerprint, idx.Len())
	for p, e := range idx.Entries {
		if !e.Removed && e.ModTime != 0 {
			fingerprints[p] = statusFingerprint{ModTime: e.ModTime, Size: e.Size}
		}
	}

	ignore, err := NewIgnoreChecker(r.RootDir)
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	trackedDirs := make(map[string]bool)
	for p := range expected {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			trackedDirs[dir] = true
		}
	}

	var out []WorktreeEntry
	seen := make(map[string]bool, len(expected))
	err = filepath.WalkDir(r.RootDir, func(fp string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, fp)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if !trackedDirs[rel] && (ignore.IsIgnored(rel, true) || isRepoRoot(fp)) {
				return filepath.SkipDir
			}
			return nil
		}
		want, tracked := expected[rel]
		if !d.Type().IsRegular() || (!tracked && ignore.IsIgnored(rel, false)) {
			return nil
		}
		if !tracked {
			out = append(out, WorktreeEntry{Path: rel, State: WorktreeUntracked})
			return nil
		}
		seen[rel] = true

		info, err := d.Info()
		if err != nil {
			return err
		}
		changed, err := worktreeFileChanged(fp, info, want, fingerprints[rel])
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		if changed {
			out = append(out, WorktreeEntry{Path: rel, State: WorktreeModified})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	for p := range expected {
		if !seen[p] {
			out = append(out, WorktreeEntry{Path: p, State: WorktreeMissing})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func worktreeFileChanged(absPath string, info os.FileInfo, want TreeFileEntry, fp statusFingerprint) (bool, error) {
	if modeFromFileInfo(info) != want.Mode {
		return true, nil
	}
	if fp.ModTime != 0 && fp.ModTime == info.ModTime().Unix() && fp.Size == info.Size() {
		return false, nil
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return false, err
	}
	return object.HashObject(object.TypeBlob, data) != want.Hash, nil
}
