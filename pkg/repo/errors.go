package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/cirrus/pkg/object"
)

var (
	ErrUnbornBranch        = errors.New("branch has no commits yet")
	ErrUnknownBranch       = errors.New("unknown branch")
	ErrBranchAlreadyExists = errors.New("branch already exists")
	ErrNothingToCommit     = errors.New("nothing to commit")
	ErrDetachedHead        = errors.New("HEAD is detached")
	ErrInvalidBranchName   = errors.New("invalid branch name")
	ErrNotARepository      = errors.New("not a repository")
	ErrRepositoryExists    = errors.New("repository already exists")
	ErrNoIndex             = errors.New("repository has no staging index")
	ErrNoCloud             = errors.New("no cloud root configured")
	ErrPathOutsideRepo     = errors.New("path is outside the repository")
	ErrPathNotInSnapshot   = errors.New("path not in snapshot")
	ErrCloudIsLocal        = errors.New("cloud root is inside the local repository")
	ErrCurrentBranch       = errors.New("cannot delete the current branch")
	ErrInvalidAuthor       = errors.New("invalid author")

	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// RefUpdateReflogError indicates the branch update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Branch  string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"set branch %q: %s (old=%s new=%s): %v",
		e.Branch,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}
