package remote

import (
	"context"

	"github.com/google/uuid"
	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PushOptions configures Push.
type PushOptions struct {
	// Branch defaults to the branch HEAD is attached to.
	Branch string
	// Force skips the fast-forward check.
	Force bool
	// Logger defaults to the local repository's logger.
	Logger *logrus.Entry
}

// PushResult describes a completed push.
type PushResult struct {
	PushID   string
	Branch   string
	Old      object.Hash // cloud tip before the push; empty if none
	New      object.Hash
	Objects  int   // objects written to the cloud
	Bytes    int64 // uncompressed bytes written
	UpToDate bool
	Created  bool // the cloud had no tip for Branch
}

// Push copies every object reachable from the local branch tip that the
// cloud lacks, children before parents, and only then advances the cloud
// branch. Any failure before the ref update leaves the cloud ref as it was.
func Push(ctx context.Context, local *repo.Repo, cloud Target, opts PushOptions) (*PushResult, error) {
	if c, ok := cloud.(*repo.Repo); ok {
		if err := local.CheckCloudRoot(c.RootDir); err != nil {
			return nil, errors.Wrap(err, "push")
		}
	}
	branch, localTip, err := localBranchTip(local, opts.Branch)
	if err != nil {
		return nil, errors.Wrap(err, "push")
	}
	cloudTip, err := targetTip(cloud, branch)
	if err != nil {
		return nil, errors.Wrap(err, "push")
	}

	res := &PushResult{
		PushID:  uuid.NewString(),
		Branch:  branch,
		Old:     cloudTip,
		New:     localTip,
		Created: cloudTip == "",
	}
	logger := opts.Logger
	if logger == nil {
		logger = local.Logger()
	}
	log := logger.WithFields(logrus.Fields{
		"push_id": res.PushID,
		"branch":  branch,
		"local":   localTip.Short(),
	})

	if cloudTip == localTip {
		res.UpToDate = true
		log.Debug("cloud already up to date")
		return res, nil
	}
	if cloudTip != "" && !opts.Force {
		ok, err := isAncestor(local.Store, cloudTip, localTip)
		if err != nil {
			return nil, errors.Wrap(err, "push")
		}
		if !ok {
			return nil, errors.Wrapf(ErrNonFastForward, "push %q: cloud tip %s is not an ancestor of %s",
				branch, cloudTip.Short(), localTip.Short())
		}
	}

	plan, err := planTransfer(local.Store, localTip, cloud.HasObject)
	if err != nil {
		return nil, errors.Wrap(err, "push")
	}
	log.WithField("objects", len(plan)).Debug("transfer planned")

	for _, rec := range plan {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "push %q aborted after %d objects", branch, res.Objects)
		}
		if err := writeVerifiedObject(cloud, rec); err != nil {
			log.WithError(err).WithField("object", rec.Hash.Short()).Warn("object transfer failed")
			return nil, errors.Wrapf(err, "push %q aborted after %d objects", branch, res.Objects)
		}
		res.Objects++
		res.Bytes += int64(len(rec.Data))
	}

	if err := cloud.SetBranch(branch, localTip); err != nil {
		if !errors.Is(err, repo.ErrRefUpdatedButReflogAppendFailed) {
			return nil, errors.Wrapf(err, "push %q: advance cloud branch", branch)
		}
		log.WithError(err).Warn("cloud branch advanced without reflog entry")
	}
	log.WithFields(logrus.Fields{
		"objects": res.Objects,
		"bytes":   res.Bytes,
		"old":     cloudTip.Short(),
	}).Debug("push complete")
	return res, nil
}

// PushAll pushes every local branch that has commits, in name order, each
// one exactly as Push would. Unborn branches are skipped. A cloud branch
// only moves once its own objects are stored; branches pushed before a
// failure keep their new tips and later branches are not attempted. The
// results of completed pushes are returned alongside any error.
func PushAll(ctx context.Context, local *repo.Repo, cloud Target, opts PushOptions) ([]*PushResult, error) {
	branches, err := local.ListBranches()
	if err != nil {
		return nil, errors.Wrap(err, "push all")
	}
	var results []*PushResult
	for _, b := range branches {
		if b.Tip == "" {
			continue
		}
		branchOpts := opts
		branchOpts.Branch = b.Name
		res, err := Push(ctx, local, cloud, branchOpts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// localBranchTip resolves the branch to push and its local tip.
func localBranchTip(local *repo.Repo, branch string) (string, object.Hash, error) {
	if branch != "" {
		tip, err := local.ResolveBranch(branch)
		if err != nil {
			return "", "", err
		}
		return branch, tip, nil
	}
	head, err := local.ReadHead()
	if err != nil {
		return "", "", err
	}
	switch head.Kind {
	case repo.HeadDetached:
		return "", "", repo.ErrDetachedHead
	case repo.HeadUnborn:
		return "", "", errors.Wrapf(repo.ErrUnbornBranch, "branch %q", head.Branch)
	}
	return head.Branch, head.Commit, nil
}

// writeVerifiedObject checks that rec's content matches its id on both the
// sending and receiving side.
func writeVerifiedObject(t Target, rec ObjectRecord) error {
	if computed := object.HashObject(rec.Type, rec.Data); computed != rec.Hash {
		return errors.Wrapf(ErrObjectMismatch, "local object %s hashes to %s", rec.Hash, computed)
	}
	written, err := t.WriteObject(rec.Type, rec.Data)
	if err != nil {
		return errors.Wrapf(err, "write object %s", rec.Hash)
	}
	if written != rec.Hash {
		return errors.Wrapf(ErrObjectMismatch, "object %s stored as %s", rec.Hash, written)
	}
	return nil
}

// isAncestor reports whether ancestor is on the parent chain of tip.
func isAncestor(store *object.Store, ancestor, tip object.Hash) (bool, error) {
	if !store.Has(ancestor) {
		return false, nil
	}
	for cur := tip; cur != ""; {
		if cur == ancestor {
			return true, nil
		}
		c, err := store.ReadCommit(cur)
		if err != nil {
			return false, errors.Wrapf(err, "read commit %s", cur)
		}
		cur = c.Parent
	}
	return false, nil
}
