package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/sirupsen/logrus"
)

const (
	symbolicPrefix = "branch:"
	detachedPrefix = "commit:"

	refLockRetryDelay = 5 * time.Millisecond
)

var refLockWaitLimit = 2 * time.Second

// HeadKind distinguishes the three HEAD states.
type HeadKind int

const (
	// HeadUnborn: HEAD names a branch that has no commits yet.
	HeadUnborn HeadKind = iota
	// HeadSymbolic: HEAD names a branch with a tip commit.
	HeadSymbolic
	// HeadDetached: HEAD holds a commit id directly.
	HeadDetached
)

func (k HeadKind) String() string {
	switch k {
	case HeadUnborn:
		return "unborn"
	case HeadSymbolic:
		return "symbolic"
	case HeadDetached:
		return "detached"
	default:
		return fmt.Sprintf("HeadKind(%d)", int(k))
	}
}

// Head is the decoded HEAD. Branch is set for HeadUnborn and HeadSymbolic;
// Commit is set for HeadSymbolic and HeadDetached.
type Head struct {
	Kind   HeadKind
	Branch string
	Commit object.Hash
}

// Branch is one entry of the branches map. An empty Tip marks an unborn
// branch.
type Branch struct {
	Name string
	Tip  object.Hash
}

// ReadHead decodes .refs/HEAD against the current branches map.
func (r *Repo) ReadHead() (Head, error) {
	data, err := os.ReadFile(r.headPath())
	if err != nil {
		return Head{}, object.StorageFault("read HEAD", r.headPath(), err)
	}
	content := strings.TrimSpace(string(data))

	switch {
	case strings.HasPrefix(content, detachedPrefix):
		h := object.Hash(strings.TrimPrefix(content, detachedPrefix))
		if !object.ValidHash(h) {
			return Head{}, fmt.Errorf("read HEAD: invalid commit id %q", h)
		}
		return Head{Kind: HeadDetached, Commit: h}, nil
	case strings.HasPrefix(content, symbolicPrefix):
		name := strings.TrimPrefix(content, symbolicPrefix)
		branches, err := r.readBranches()
		if err != nil {
			return Head{}, err
		}
		if tip := branches[name]; tip != "" {
			return Head{Kind: HeadSymbolic, Branch: name, Commit: tip}, nil
		}
		return Head{Kind: HeadUnborn, Branch: name}, nil
	default:
		return Head{}, fmt.Errorf("read HEAD: malformed content %q", content)
	}
}

// ResolveHead returns the commit HEAD designates, or ErrUnbornBranch.
func (r *Repo) ResolveHead() (object.Hash, error) {
	head, err := r.ReadHead()
	if err != nil {
		return "", err
	}
	if head.Kind == HeadUnborn {
		return "", fmt.Errorf("resolve HEAD: branch %q: %w", head.Branch, ErrUnbornBranch)
	}
	return head.Commit, nil
}

func (r *Repo) writeHead(content string) error {
	if err := renameio.WriteFile(r.headPath(), []byte(content+"\n"), 0o644); err != nil {
		return object.StorageFault("write HEAD", r.headPath(), err)
	}
	return nil
}

// ResolveBranch returns the tip of name. It fails with ErrUnknownBranch if
// the branch does not exist and ErrUnbornBranch if it has no commits.
func (r *Repo) ResolveBranch(name string) (object.Hash, error) {
	branches, err := r.readBranches()
	if err != nil {
		return "", err
	}
	tip, ok := branches[name]
	if !ok {
		return "", fmt.Errorf("resolve branch %q: %w", name, ErrUnknownBranch)
	}
	if tip == "" {
		return "", fmt.Errorf("resolve branch %q: %w", name, ErrUnbornBranch)
	}
	return tip, nil
}

// ListBranches returns every branch sorted by name.
func (r *Repo) ListBranches() ([]Branch, error) {
	branches, err := r.readBranches()
	if err != nil {
		return nil, err
	}
	out := make([]Branch, 0, len(branches))
	for name, tip := range branches {
		out = append(out, Branch{Name: name, Tip: tip})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetBranch points name at commit h, creating the branch if needed. The
// commit must already be stored.
func (r *Repo) SetBranch(name string, h object.Hash) error {
	return r.setBranch(name, h, "update")
}

// setBranch updates the branches map under the refs lock, then appends a
// reflog line. A reflog failure leaves the ref update in place and is
// reported as a RefUpdateReflogError.
func (r *Repo) setBranch(name string, h object.Hash, reason string) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("set branch: %w", err)
	}
	if _, err := r.Store.ReadCommit(h); err != nil {
		return fmt.Errorf("set branch %q: %w", name, err)
	}

	var old object.Hash
	err := r.updateBranches(func(branches map[string]object.Hash) error {
		old = branches[name]
		branches[name] = h
		return nil
	})
	if err != nil {
		return fmt.Errorf("set branch %q: %w", name, err)
	}
	r.log.WithFields(logrus.Fields{
		"branch": name,
		"old":    old,
		"new":    h,
	}).Debug("branch updated")

	if err := r.appendReflog(name, old, h, reason); err != nil {
		return &RefUpdateReflogError{Branch: name, OldHash: old, NewHash: h, Err: err}
	}
	return nil
}

func (r *Repo) readBranches() (map[string]object.Hash, error) {
	data, err := os.ReadFile(r.branchesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]object.Hash{}, nil
		}
		return nil, object.StorageFault("read branches", r.branchesPath(), err)
	}
	branches := map[string]object.Hash{}
	if err := json.Unmarshal(data, &branches); err != nil {
		return nil, object.StorageFault("read branches", r.branchesPath(), err)
	}
	return branches, nil
}

func (r *Repo) writeBranches(branches map[string]object.Hash) error {
	data, err := json.MarshalIndent(branches, "", "  ")
	if err != nil {
		return fmt.Errorf("write branches: marshal: %w", err)
	}
	if err := renameio.WriteFile(r.branchesPath(), append(data, '\n'), 0o644); err != nil {
		return object.StorageFault("write branches", r.branchesPath(), err)
	}
	return nil
}

// updateBranches runs a read-modify-write of the branches map while holding
// .refs/branches.lock.
func (r *Repo) updateBranches(fn func(map[string]object.Hash) error) error {
	lockPath := r.branchesPath() + ".lock"
	lock, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer func() {
		_ = lock.Close()
		_ = os.Remove(lockPath)
	}()

	branches, err := r.readBranches()
	if err != nil {
		return err
	}
	if err := fn(branches); err != nil {
		return err
	}
	return r.writeBranches(branches)
}

func acquireRefLock(lockPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, object.StorageFault("lock refs", lockPath, err)
	}
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, object.StorageFault("lock refs", lockPath, errors.New("timed out waiting for lock"))
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, object.StorageFault("lock refs", lockPath, err)
	}
}

// ValidateBranchName rejects names that cannot be stored in HEAD or used as
// a reflog path.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidBranchName)
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: %q ends in .lock", ErrInvalidBranchName, name)
	}
	for _, r := range name {
		if r <= ' ' || r == 0x7f || strings.ContainsRune(`:\*?[~^`, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidBranchName, name, r)
		}
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
		}
	}
	return nil
}
