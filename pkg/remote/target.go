package remote

import (
	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/pkg/errors"
)

var (
	// ErrNonFastForward reports a cloud tip that is not an ancestor of the
	// local tip.
	ErrNonFastForward = errors.New("non-fast-forward update")
	// ErrObjectMismatch reports an object whose content does not hash to the
	// id it was stored or transferred under.
	ErrObjectMismatch = errors.New("object id mismatch")
)

// Target is the receiving side of a push: an object store plus branch refs.
// *repo.Repo implements it, so a cloud replica opened with repo.OpenCloud
// can be passed directly.
type Target interface {
	HasObject(h object.Hash) bool
	WriteObject(objType object.ObjectType, data []byte) (object.Hash, error)
	ResolveBranch(name string) (object.Hash, error)
	SetBranch(name string, h object.Hash) error
}

var _ Target = (*repo.Repo)(nil)

// ObjectRecord is one object scheduled for transfer.
type ObjectRecord struct {
	Hash object.Hash
	Type object.ObjectType
	Data []byte
}

// targetTip returns the cloud tip of branch, or "" when the cloud has never
// seen the branch or it is unborn there.
func targetTip(t Target, branch string) (object.Hash, error) {
	tip, err := t.ResolveBranch(branch)
	switch {
	case err == nil:
		return tip, nil
	case errors.Is(err, repo.ErrUnknownBranch), errors.Is(err, repo.ErrUnbornBranch):
		return "", nil
	default:
		return "", errors.Wrapf(err, "resolve cloud branch %q", branch)
	}
}
