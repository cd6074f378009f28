package repo

import (
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/cirrus/pkg/object"
)

// CreateBranch creates name at HEAD's commit, or unborn when HEAD is
// unborn. It fails with ErrBranchAlreadyExists if name is taken.
func (r *Repo) CreateBranch(name string) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	head, err := r.ReadHead()
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}

	err = r.updateBranches(func(branches map[string]object.Hash) error {
		if _, ok := branches[name]; ok {
			return fmt.Errorf("%w: %q", ErrBranchAlreadyExists, name)
		}
		if other, ok := conflictingBranch(branches, name); ok {
			return fmt.Errorf("%w: %q conflicts with existing branch %q", ErrInvalidBranchName, name, other)
		}
		branches[name] = head.Commit
		return nil
	})
	if err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	r.log.WithField("branch", name).WithField("commit", head.Commit).Debug("branch created")

	if head.Commit != "" {
		if err := r.appendReflog(name, "", head.Commit, "branch: created"); err != nil {
			return &RefUpdateReflogError{Branch: name, NewHash: head.Commit, Err: err}
		}
	}
	return nil
}

// conflictingBranch reports an existing branch whose name is a path prefix
// of name, or vice versa; the two could not share the reflog directory.
func conflictingBranch(branches map[string]object.Hash, name string) (string, bool) {
	for other := range branches {
		if strings.HasPrefix(name, other+"/") || strings.HasPrefix(other, name+"/") {
			return other, true
		}
	}
	return "", false
}

// Switch points HEAD at name. The index and working files are untouched.
func (r *Repo) Switch(name string) error {
	branches, err := r.readBranches()
	if err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	if _, ok := branches[name]; !ok {
		return fmt.Errorf("switch to %q: %w", name, ErrUnknownBranch)
	}
	if err := r.writeHead(symbolicPrefix + name); err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	r.log.WithField("branch", name).Debug("switched branch")
	return nil
}

// Detach points HEAD directly at commit h.
func (r *Repo) Detach(h object.Hash) error {
	if _, err := r.Store.ReadCommit(h); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	if err := r.writeHead(detachedPrefix + string(h)); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	r.log.WithField("commit", h).Debug("detached HEAD")
	return nil
}

// DeleteBranch removes name and its reflog. The branch HEAD is attached to
// cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch %q: %w", name, ErrCurrentBranch)
	}

	err = r.updateBranches(func(branches map[string]object.Hash) error {
		if _, ok := branches[name]; !ok {
			return fmt.Errorf("%q: %w", name, ErrUnknownBranch)
		}
		delete(branches, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if err := os.Remove(r.reflogPath(name)); err != nil && !os.IsNotExist(err) {
		return object.StorageFault("delete reflog", r.reflogPath(name), err)
	}
	r.log.WithField("branch", name).Debug("branch deleted")
	return nil
}

// CurrentBranch returns the branch HEAD is attached to, or "" when HEAD is
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.ReadHead()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return head.Branch, nil
}
