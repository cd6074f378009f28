package repo

import (
	"fmt"
	"sort"
	"strings"
)

// Reset unstages paths so the next commit records their HEAD versions.
// Removal markers are dropped too. A directory argument unstages every
// entry below it; no paths resets the whole index. Reset returns the
// unstaged paths and never touches working files.
func (r *Repo) Reset(paths []string) ([]string, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}

	targets, err := r.resolveResetTargets(paths, idx)
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	for _, p := range targets {
		delete(idx.Entries, p)
	}

	if err := r.WriteIndex(idx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return targets, nil
}

func (r *Repo) resolveResetTargets(paths []string, idx *Index) ([]string, error) {
	if len(paths) == 0 {
		all := make(map[string]struct{}, idx.Len())
		for p := range idx.Entries {
			all[p] = struct{}{}
		}
		return sortedPathSet(all), nil
	}

	targets := make(map[string]struct{})
	for _, raw := range paths {
		rel, err := r.repoRelPath(raw)
		if err != nil {
			return nil, err
		}

		matched := false
		for p := range idx.Entries {
			if rel == "." || p == rel || strings.HasPrefix(p, rel+"/") {
				targets[p] = struct{}{}
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("path %q did not match any staged entry", raw)
		}
	}

	return sortedPathSet(targets), nil
}

func sortedPathSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
