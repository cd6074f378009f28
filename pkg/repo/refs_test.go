package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/cirrus/pkg/object"
)

func TestInitLayout(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	head, err := os.ReadFile(filepath.Join(dir, RefsDir, HeadFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(head)) != "branch:main" {
		t.Errorf("HEAD = %q", head)
	}
	branches, err := os.ReadFile(filepath.Join(dir, RefsDir, BranchesFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(branches), `"main": ""`) {
		t.Errorf("branches = %s", branches)
	}
	if _, err := os.Stat(filepath.Join(dir, StoreDir)); err != nil {
		t.Errorf("store dir: %v", err)
	}

	if _, err := r.ResolveHead(); !errors.Is(err, ErrUnbornBranch) {
		t.Errorf("ResolveHead on fresh repo = %v, want ErrUnbornBranch", err)
	}
	if _, err := Init(dir); !errors.Is(err, ErrRepositoryExists) {
		t.Errorf("second Init = %v, want ErrRepositoryExists", err)
	}
}

func TestOpenSearchesUpward(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	r, err := Open(sub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want, _ := filepath.Abs(dir)
	if r.RootDir != want {
		t.Errorf("RootDir = %s, want %s", r.RootDir, want)
	}
	if !r.IsLocal() {
		t.Error("opened repo should be local")
	}

	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotARepository) {
		t.Errorf("Open(empty) = %v, want ErrNotARepository", err)
	}
}

func TestOpenCloud(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cloud")
	if _, err := OpenCloud(dir, false); !errors.Is(err, ErrNotARepository) {
		t.Fatalf("OpenCloud(create=false) = %v, want ErrNotARepository", err)
	}
	cloud, err := OpenCloud(dir, true)
	if err != nil {
		t.Fatalf("OpenCloud: %v", err)
	}
	if cloud.IsLocal() {
		t.Error("cloud repo should not be local")
	}
	branches, err := cloud.ListBranches()
	if err != nil || len(branches) != 0 {
		t.Errorf("fresh cloud branches = %+v, %v", branches, err)
	}
	if _, err := cloud.ReadIndex(); !errors.Is(err, ErrNoIndex) {
		t.Errorf("cloud ReadIndex = %v, want ErrNoIndex", err)
	}
	if _, err := cloud.ResolveBranch("main"); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("cloud ResolveBranch = %v, want ErrUnknownBranch", err)
	}
	if _, err := OpenCloud(dir, false); err != nil {
		t.Errorf("reopen cloud: %v", err)
	}
}

func TestCheckCloudRoot(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, root := range []string{
		r.RootDir,
		filepath.Join(r.RootDir, "replica"),
		filepath.Join(r.RootDir, "a", "b", ".."),
	} {
		if err := r.CheckCloudRoot(root); !errors.Is(err, ErrCloudIsLocal) {
			t.Errorf("CheckCloudRoot(%s) = %v, want ErrCloudIsLocal", root, err)
		}
	}
	for _, root := range []string{
		filepath.Join(t.TempDir(), "cloud"),
		r.RootDir + "-cloud",
		filepath.Dir(r.RootDir),
	} {
		if err := r.CheckCloudRoot(root); err != nil {
			t.Errorf("CheckCloudRoot(%s) = %v, want nil", root, err)
		}
	}

	dir := t.TempDir()
	opts := InitOptions{CloudRoot: filepath.Join(dir, "cloud")}
	if _, err := InitWithOptions(dir, opts); !errors.Is(err, ErrCloudIsLocal) {
		t.Errorf("InitWithOptions(nested cloud) = %v, want ErrCloudIsLocal", err)
	}
	if isRepoRoot(dir) {
		t.Error("rejected init still laid out a repository")
	}
}

func TestSetBranchRequiresStoredCommit(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	missing := object.HashBytes([]byte("nowhere"))
	if err := r.SetBranch("main", missing); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("SetBranch(missing) = %v, want ErrObjectNotFound", err)
	}
	blob, err := r.Store.WriteBlob(&object.Blob{Data: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetBranch("main", blob); err == nil {
		t.Error("SetBranch to a blob should fail")
	}
}

func TestSetBranchCreatesAndOverwrites(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	c1 := mustCommit(t, r, "one")
	addFile(t, r, "a.txt", "b")
	c2 := mustCommit(t, r, "two")

	if err := r.SetBranch("release", c1); err != nil {
		t.Fatalf("SetBranch(create): %v", err)
	}
	if err := r.SetBranch("release", c2); err != nil {
		t.Fatalf("SetBranch(overwrite): %v", err)
	}
	if tip, _ := r.ResolveBranch("release"); tip != c2 {
		t.Errorf("release = %s, want %s", tip, c2)
	}
}

func TestSetBranchFaultIsStorageFault(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	c1 := mustCommit(t, r, "one")

	branches := r.branchesPath()
	if err := os.Remove(branches); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(branches, 0o755); err != nil {
		t.Fatal(err)
	}
	err := r.SetBranch("main", c1)
	if !errors.Is(err, object.ErrStorageFault) {
		t.Fatalf("SetBranch = %v, want ErrStorageFault", err)
	}
	var serr *object.StorageError
	if !errors.As(err, &serr) || serr.Path != branches {
		t.Errorf("error = %#v, want StorageError for %s", err, branches)
	}
	if _, err := r.ListBranches(); !errors.Is(err, object.ErrStorageFault) {
		t.Errorf("ListBranches = %v, want ErrStorageFault", err)
	}
}

func TestSetBranchLockTimeout(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	c1 := mustCommit(t, r, "one")

	saved := refLockWaitLimit
	refLockWaitLimit = 50 * time.Millisecond
	t.Cleanup(func() { refLockWaitLimit = saved })

	if err := os.Mkdir(r.branchesPath()+".lock", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := r.SetBranch("release", c1); !errors.Is(err, object.ErrStorageFault) {
		t.Fatalf("SetBranch with held lock = %v, want ErrStorageFault", err)
	}
	if _, err := r.ResolveBranch("release"); !errors.Is(err, ErrUnknownBranch) {
		t.Errorf("release after failed update = %v, want ErrUnknownBranch", err)
	}
}

func TestReadHeadMalformed(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(r.headPath(), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadHead(); err == nil {
		t.Error("ReadHead accepted a malformed HEAD")
	}
	if err := os.WriteFile(r.headPath(), []byte("commit:zzz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadHead(); err == nil {
		t.Error("ReadHead accepted an invalid detached id")
	}
}

func TestValidateBranchName(t *testing.T) {
	good := []string{"main", "feature/x", "v1.2", "user-name_1"}
	bad := []string{"", "-x", "/x", "x/", "a//b", "a/../b", "has space", "a:b", "x.lock", "a~1", "..", "."}
	for _, name := range good {
		if err := ValidateBranchName(name); err != nil {
			t.Errorf("ValidateBranchName(%q) = %v", name, err)
		}
	}
	for _, name := range bad {
		if err := ValidateBranchName(name); !errors.Is(err, ErrInvalidBranchName) {
			t.Errorf("ValidateBranchName(%q) = %v, want ErrInvalidBranchName", name, err)
		}
	}
}

func TestReflog(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	c1 := mustCommit(t, r, "one")
	addFile(t, r, "a.txt", "b")
	c2 := mustCommit(t, r, "two\n\nbody")

	entries, err := r.ReadReflog("", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("reflog has %d entries, want 2", len(entries))
	}
	if entries[0].OldHash != c1 || entries[0].NewHash != c2 || entries[0].Reason != "commit: two" {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[1].OldHash != "" || entries[1].NewHash != c1 {
		t.Errorf("oldest entry = %+v", entries[1])
	}

	limited, err := r.ReadReflog("main", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limited reflog = %+v, %v", limited, err)
	}
	none, err := r.ReadReflog("other", 0)
	if err != nil || none != nil {
		t.Errorf("reflog of unknown branch = %+v, %v", none, err)
	}
}

func TestRefUpdateReflogError(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	c1 := mustCommit(t, r, "one")

	// A directory where the reflog file should be makes the append fail.
	if err := os.MkdirAll(r.reflogPath("blocked"), 0o755); err != nil {
		t.Fatal(err)
	}
	err := r.SetBranch("blocked", c1)
	if !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		t.Fatalf("SetBranch = %v, want ErrRefUpdatedButReflogAppendFailed", err)
	}
	var rerr *RefUpdateReflogError
	if !errors.As(err, &rerr) || rerr.NewHash != c1 {
		t.Errorf("error = %#v", err)
	}
	if tip, _ := r.ResolveBranch("blocked"); tip != c1 {
		t.Errorf("ref update was not kept: %s", tip)
	}
}

func TestVerifyConnectivity(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	mustCommit(t, r, "one")
	addFile(t, r, "b.txt", "b")
	c2 := mustCommit(t, r, "two")

	report, err := r.VerifyConnectivity(t.Context())
	if err != nil {
		t.Fatalf("VerifyConnectivity: %v", err)
	}
	// 2 commits, 2 trees, 2 blobs.
	if report.Refs != 1 || report.Objects != 6 {
		t.Errorf("report = %+v", report)
	}

	c, _ := r.Store.ReadCommit(c2)
	if err := os.Remove(filepath.Join(r.Store.Dir(), string(c.Parent[:2]), string(c.Parent[2:]))); err != nil {
		t.Fatal(err)
	}
	if _, err := r.VerifyConnectivity(t.Context()); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("VerifyConnectivity with dangling parent = %v, want ErrObjectNotFound", err)
	}
}
