package remote

import (
	"fmt"

	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/pkg/errors"
)

// SyncState classifies a local branch against its cloud counterpart.
type SyncState int

const (
	StateUpToDate SyncState = iota
	StateAhead              // cloud tip is an ancestor of the local tip
	StateNew                // cloud has no tip for the branch
	StateDiverged           // cloud tip is not an ancestor of the local tip
)

func (s SyncState) String() string {
	switch s {
	case StateUpToDate:
		return "up-to-date"
	case StateAhead:
		return "ahead"
	case StateNew:
		return "new"
	case StateDiverged:
		return "diverged"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// Comparison is the result of Compare.
type Comparison struct {
	Branch  string
	Local   object.Hash
	Cloud   object.Hash
	State   SyncState
	Missing int // objects a push would transfer
}

// Compare reports how a push of branch would go without writing anything.
// An empty branch means the branch HEAD is attached to.
func Compare(local *repo.Repo, cloud Target, branch string) (*Comparison, error) {
	branch, localTip, err := localBranchTip(local, branch)
	if err != nil {
		return nil, errors.Wrap(err, "compare")
	}
	cloudTip, err := targetTip(cloud, branch)
	if err != nil {
		return nil, errors.Wrap(err, "compare")
	}

	cmp := &Comparison{Branch: branch, Local: localTip, Cloud: cloudTip}
	switch {
	case cloudTip == localTip:
		cmp.State = StateUpToDate
		return cmp, nil
	case cloudTip == "":
		cmp.State = StateNew
	default:
		ok, err := isAncestor(local.Store, cloudTip, localTip)
		if err != nil {
			return nil, errors.Wrap(err, "compare")
		}
		cmp.State = StateDiverged
		if ok {
			cmp.State = StateAhead
		}
	}

	for _, err := range local.Store.WalkReachable(localTip, object.WalkOptions{FollowParents: true, Skip: cloud.HasObject}) {
		if err != nil {
			return nil, errors.Wrap(err, "compare")
		}
		cmp.Missing++
	}
	return cmp, nil
}
