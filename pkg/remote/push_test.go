package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *repo.Repo {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	return r
}

func newCloud(t *testing.T) *repo.Repo {
	t.Helper()
	c, err := repo.OpenCloud(filepath.Join(t.TempDir(), "cloud"), true)
	require.NoError(t, err)
	return c
}

func commitFile(t *testing.T, r *repo.Repo, name, content, msg string) object.Hash {
	t.Helper()
	p := filepath.Join(r.RootDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	require.NoError(t, r.Add([]string{name}))
	h, err := r.Commit(msg, "tester")
	require.NoError(t, err)
	return h
}

func reachable(t *testing.T, r *repo.Repo, tip object.Hash) []object.Hash {
	t.Helper()
	var out []object.Hash
	for h, err := range r.Store.WalkReachable(tip, object.WalkOptions{FollowParents: true}) {
		require.NoError(t, err)
		out = append(out, h)
	}
	return out
}

// recordingTarget wraps a Target, records successful writes and can fail
// the Nth write with a simulated storage fault.
type recordingTarget struct {
	Target
	failAt  int
	calls   int
	written []object.Hash
}

func (f *recordingTarget) WriteObject(objType object.ObjectType, data []byte) (object.Hash, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return "", &object.StorageError{Op: "write", Path: "simulated", Err: errors.New("disk full")}
	}
	h, err := f.Target.WriteObject(objType, data)
	if err == nil {
		f.written = append(f.written, h)
	}
	return h, err
}

func TestPushScenario(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	c1 := commitFile(t, local, "x.txt", "hello", "first")
	commit, err := local.Store.ReadCommit(c1)
	require.NoError(t, err)
	blob := object.HashObject(object.TypeBlob, []byte("hello"))

	res, err := Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	assert.Equal(t, "main", res.Branch)
	assert.True(t, res.Created)
	assert.Equal(t, 3, res.Objects)
	assert.NotEmpty(t, res.PushID)

	tip, err := cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c1, tip)
	assert.True(t, cloud.HasObject(commit.TreeHash))
	assert.True(t, cloud.HasObject(blob))

	require.NoError(t, local.CreateBranch("dev"))
	require.NoError(t, local.Switch("dev"))
	c2 := commitFile(t, local, "y.txt", "world", "second")

	second, err := local.Store.ReadCommit(c2)
	require.NoError(t, err)
	assert.Equal(t, c1, second.Parent)
	mainTip, err := local.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c1, mainTip)

	rec := &recordingTarget{Target: cloud}
	res, err = Push(ctx, local, rec, PushOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dev", res.Branch)
	// Only C2, its tree and the y.txt blob are new.
	assert.Equal(t, 3, res.Objects)
	assert.ElementsMatch(t,
		[]object.Hash{c2, second.TreeHash, object.HashObject(object.TypeBlob, []byte("world"))},
		rec.written)
	assert.NotContains(t, rec.written, c1)
	assert.NotContains(t, rec.written, blob)

	devTip, err := cloud.ResolveBranch("dev")
	require.NoError(t, err)
	assert.Equal(t, c2, devTip)
	cloudMain, err := cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c1, cloudMain)
}

func TestPushCompleteness(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	commitFile(t, local, "a.txt", "a", "one")
	commitFile(t, local, "dir/b.txt", "b", "two")
	tip := commitFile(t, local, "dir/sub/c.txt", "c", "three")

	_, err := Push(context.Background(), local, cloud, PushOptions{})
	require.NoError(t, err)

	for _, h := range reachable(t, local, tip) {
		assert.True(t, cloud.HasObject(h), "cloud missing %s", h)
	}
	cloudTip, err := cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, tip, cloudTip)

	report, err := cloud.VerifyConnectivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(reachable(t, local, tip)), report.Objects)
}

func TestPushWritesChildrenFirst(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	commitFile(t, local, "a.txt", "a", "one")
	commitFile(t, local, "d/b.txt", "b", "two")
	commitFile(t, local, "d/e/c.txt", "c", "three")

	rec := &recordingTarget{Target: cloud}
	_, err := Push(context.Background(), local, rec, PushOptions{})
	require.NoError(t, err)

	seen := map[object.Hash]bool{}
	for _, h := range rec.written {
		objType, data, err := local.Store.Read(h)
		require.NoError(t, err)
		refs, err := object.References(objType, data)
		require.NoError(t, err)
		for _, ref := range refs {
			assert.True(t, seen[ref], "%s written before its reference %s", h.Short(), ref.Short())
		}
		seen[h] = true
	}
}

func TestPushAtomicityOnStorageFault(t *testing.T) {
	local := newLocal(t)
	ctx := context.Background()

	c1 := commitFile(t, local, "a.txt", "a", "one")
	require.NoError(t, local.CreateBranch("base"))
	commitFile(t, local, "b.txt", "b", "two")
	c3 := commitFile(t, local, "c.txt", "c", "three")

	// c2 and c3 each add a commit, a tree and a blob.
	const missing = 6
	var cloud *repo.Repo
	for failAt := 1; failAt <= missing; failAt++ {
		cloud = newCloud(t)
		_, err := Push(ctx, local, cloud, PushOptions{Branch: "base"})
		require.NoError(t, err)
		require.NoError(t, cloud.SetBranch("main", c1))

		faulty := &recordingTarget{Target: cloud, failAt: failAt}
		_, err = Push(ctx, local, faulty, PushOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, object.ErrStorageFault)
		assert.Len(t, faulty.written, failAt-1)

		tip, err := cloud.ResolveBranch("main")
		require.NoError(t, err)
		assert.Equal(t, c1, tip, "cloud ref moved after fault at write %d", failAt)
	}

	// Retrying against the partially written cloud completes the push.
	res, err := Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	assert.Equal(t, c3, res.New)
	assert.Equal(t, 1, res.Objects)
	tip, err := cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c3, tip)
}

func TestPushFaultOnNewBranchLeavesNoRef(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	commitFile(t, local, "a.txt", "a", "one")

	_, err := Push(context.Background(), local, &recordingTarget{Target: cloud, failAt: 2}, PushOptions{})
	require.ErrorIs(t, err, object.ErrStorageFault)

	_, err = cloud.ResolveBranch("main")
	assert.ErrorIs(t, err, repo.ErrUnknownBranch)
}

func TestPushCloudRefFaultLeavesRef(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	c1 := commitFile(t, local, "a.txt", "a", "one")
	_, err := Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	c2 := commitFile(t, local, "b.txt", "b", "two")

	// A lock left behind by another writer keeps the branches map busy.
	lock := filepath.Join(cloud.RootDir, repo.RefsDir, repo.BranchesFile+".lock")
	require.NoError(t, os.Mkdir(lock, 0o755))
	_, err = Push(ctx, local, cloud, PushOptions{})
	require.ErrorIs(t, err, object.ErrStorageFault)

	require.NoError(t, os.Remove(lock))
	tip, err := cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c1, tip)
	assert.True(t, cloud.HasObject(c2), "objects are written before the ref")

	res, err := Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Objects)
	tip, err = cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c2, tip)
}

func TestPushRejectsCloudInsideLocal(t *testing.T) {
	local := newLocal(t)
	commitFile(t, local, "a.txt", "a", "one")
	ctx := context.Background()

	_, err := Push(ctx, local, local, PushOptions{})
	require.ErrorIs(t, err, repo.ErrCloudIsLocal)

	nested, err := repo.OpenCloud(filepath.Join(local.RootDir, "replica"), true)
	require.NoError(t, err)
	_, err = Push(ctx, local, nested, PushOptions{})
	require.ErrorIs(t, err, repo.ErrCloudIsLocal)
	_, err = nested.ResolveBranch("main")
	assert.ErrorIs(t, err, repo.ErrUnknownBranch)
}

func TestPushAll(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	require.NoError(t, local.CreateBranch("empty"))
	c1 := commitFile(t, local, "a.txt", "a", "one")
	require.NoError(t, local.CreateBranch("dev"))
	require.NoError(t, local.Switch("dev"))
	c2 := commitFile(t, local, "b.txt", "b", "two")

	results, err := PushAll(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "dev", results[0].Branch)
	assert.Equal(t, "main", results[1].Branch)
	// dev carries c1's objects, so main has nothing left to send.
	assert.Equal(t, 6, results[0].Objects)
	assert.Zero(t, results[1].Objects)

	for branch, want := range map[string]object.Hash{"main": c1, "dev": c2} {
		tip, err := cloud.ResolveBranch(branch)
		require.NoError(t, err)
		assert.Equal(t, want, tip, branch)
	}
	_, err = cloud.ResolveBranch("empty")
	assert.ErrorIs(t, err, repo.ErrUnknownBranch)

	results, err = PushAll(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.UpToDate, res.Branch)
	}
}

func TestPushAllStopsAtFault(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	commitFile(t, local, "a.txt", "a", "one")
	require.NoError(t, local.CreateBranch("dev"))
	require.NoError(t, local.Switch("dev"))
	commitFile(t, local, "b.txt", "b", "two")

	// The first branch, dev, fails on its second object write.
	results, err := PushAll(ctx, local, &recordingTarget{Target: cloud, failAt: 2}, PushOptions{})
	require.ErrorIs(t, err, object.ErrStorageFault)
	assert.Empty(t, results)
	for _, branch := range []string{"dev", "main"} {
		_, err := cloud.ResolveBranch(branch)
		assert.ErrorIs(t, err, repo.ErrUnknownBranch, branch)
	}
}

func TestPushUpToDate(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	commitFile(t, local, "a.txt", "a", "one")

	_, err := Push(context.Background(), local, cloud, PushOptions{})
	require.NoError(t, err)

	rec := &recordingTarget{Target: cloud}
	res, err := Push(context.Background(), local, rec, PushOptions{})
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Zero(t, res.Objects)
	assert.Zero(t, rec.calls)
}

func TestPushNonFastForward(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	c1 := commitFile(t, local, "a.txt", "a", "one")
	c2 := commitFile(t, local, "a.txt", "b", "two")
	_, err := Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)

	// Rewind local main and build a divergent commit.
	require.NoError(t, local.SetBranch("main", c1))
	c3 := commitFile(t, local, "a.txt", "c", "three")

	_, err = Push(ctx, local, cloud, PushOptions{})
	require.ErrorIs(t, err, ErrNonFastForward)
	tip, err := cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c2, tip)

	res, err := Push(ctx, local, cloud, PushOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, c2, res.Old)
	assert.Equal(t, 3, res.Objects)
	tip, err = cloud.ResolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, c3, tip)
}

func TestPushHeadStates(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	_, err := Push(ctx, local, cloud, PushOptions{})
	require.ErrorIs(t, err, repo.ErrUnbornBranch)

	c1 := commitFile(t, local, "a.txt", "a", "one")
	require.NoError(t, local.Detach(c1))
	_, err = Push(ctx, local, cloud, PushOptions{})
	require.ErrorIs(t, err, repo.ErrDetachedHead)

	// An explicit branch still works while detached.
	res, err := Push(ctx, local, cloud, PushOptions{Branch: "main"})
	require.NoError(t, err)
	assert.Equal(t, c1, res.New)

	_, err = Push(ctx, local, cloud, PushOptions{Branch: "nope"})
	require.ErrorIs(t, err, repo.ErrUnknownBranch)
}

func TestPushCancelled(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	commitFile(t, local, "a.txt", "a", "one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Push(ctx, local, cloud, PushOptions{})
	require.ErrorIs(t, err, context.Canceled)

	_, err = cloud.ResolveBranch("main")
	assert.ErrorIs(t, err, repo.ErrUnknownBranch)
}

func TestPushDetectsMismatchedTarget(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	commitFile(t, local, "a.txt", "a", "one")

	_, err := Push(context.Background(), local, lyingTarget{cloud}, PushOptions{})
	require.ErrorIs(t, err, ErrObjectMismatch)
	_, err = cloud.ResolveBranch("main")
	assert.ErrorIs(t, err, repo.ErrUnknownBranch)
}

// lyingTarget reports a wrong id for every write.
type lyingTarget struct {
	Target
}

func (l lyingTarget) WriteObject(objType object.ObjectType, data []byte) (object.Hash, error) {
	if _, err := l.Target.WriteObject(objType, data); err != nil {
		return "", err
	}
	return object.HashBytes(data), nil
}

func TestCompare(t *testing.T) {
	local := newLocal(t)
	cloud := newCloud(t)
	ctx := context.Background()

	c1 := commitFile(t, local, "a.txt", "a", "one")
	cmp, err := Compare(local, cloud, "")
	require.NoError(t, err)
	assert.Equal(t, StateNew, cmp.State)
	assert.Equal(t, 3, cmp.Missing)

	_, err = Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	cmp, err = Compare(local, cloud, "main")
	require.NoError(t, err)
	assert.Equal(t, StateUpToDate, cmp.State)
	assert.Zero(t, cmp.Missing)

	commitFile(t, local, "b.txt", "b", "two")
	cmp, err = Compare(local, cloud, "")
	require.NoError(t, err)
	assert.Equal(t, StateAhead, cmp.State)
	assert.Equal(t, c1, cmp.Cloud)
	assert.Equal(t, 3, cmp.Missing)

	_, err = Push(ctx, local, cloud, PushOptions{})
	require.NoError(t, err)
	require.NoError(t, local.SetBranch("main", c1))
	commitFile(t, local, "c.txt", "c", "three")
	cmp, err = Compare(local, cloud, "")
	require.NoError(t, err)
	assert.Equal(t, StateDiverged, cmp.State)
}
