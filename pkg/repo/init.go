package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/cirrus/pkg/object"
)

// InitOptions configures a new local repository.
type InitOptions struct {
	DefaultBranch    string
	Author           string
	CloudRoot        string
	Compression      bool
	CompressionLevel int
}

// Init creates a new local repository at path with default settings.
func Init(path string) (*Repo, error) {
	return InitWithOptions(path, InitOptions{})
}

// InitWithOptions creates the .store/ and .refs/ layout, an unborn default
// branch with HEAD attached to it, and .cirrus.toml. It fails with
// ErrRepositoryExists if path already holds a repository.
func InitWithOptions(path string, opts InitOptions) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	if isRepoRoot(abs) {
		return nil, fmt.Errorf("init: %w at %s", ErrRepositoryExists, abs)
	}

	branch := strings.TrimSpace(opts.DefaultBranch)
	if branch == "" {
		branch = DefaultBranch
	}
	if err := ValidateBranchName(branch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	if cloud := strings.TrimSpace(opts.CloudRoot); cloud != "" {
		if err := checkCloudRoot(abs, cloud); err != nil {
			return nil, fmt.Errorf("init: %w", err)
		}
	}

	cfg := DefaultConfig()
	cfg.Core.DefaultBranch = branch
	cfg.Core.Author = strings.TrimSpace(opts.Author)
	cfg.Core.Compression = opts.Compression
	cfg.Core.CompressionLevel = opts.CompressionLevel
	cfg.Cloud.Root = strings.TrimSpace(opts.CloudRoot)

	r := newRepo(abs, true, storeOptions(cfg)...)
	if err := r.createLayout(branch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.log.WithField("branch", branch).Debug("initialized repository")
	return r, nil
}

// Open searches upward from path for a repository root and opens it as a
// local repository.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		if isRepoRoot(cur) {
			cfg, err := readConfigFile(filepath.Join(cur, ConfigFile))
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return newRepo(cur, true, storeOptions(cfg)...), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: %w (or any parent up to /)", ErrNotARepository)
		}
		cur = parent
	}
}

// OpenCloud opens the cloud replica rooted exactly at path. When create is
// set and path holds no replica yet, an empty one is laid out: no branches
// and HEAD naming the default branch.
func OpenCloud(path string, create bool) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open cloud: abs path: %w", err)
	}
	r := newRepo(abs, false)
	if isRepoRoot(abs) {
		return r, nil
	}
	if !create {
		return nil, fmt.Errorf("open cloud %s: %w", abs, ErrNotARepository)
	}
	if err := r.createLayout(""); err != nil {
		return nil, fmt.Errorf("open cloud: %w", err)
	}
	r.log.Debug("created cloud replica")
	return r, nil
}

// createLayout makes the directories and ref files. An empty branch leaves
// the branches map empty and points HEAD at DefaultBranch.
func (r *Repo) createLayout(branch string) error {
	for _, d := range []string{
		r.Store.Dir(),
		filepath.Join(r.refsDir(), LogsDir),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", d, err)
		}
	}

	branches := map[string]object.Hash{}
	headBranch := DefaultBranch
	if branch != "" {
		branches[branch] = ""
		headBranch = branch
	}
	if err := r.writeBranches(branches); err != nil {
		return err
	}
	return r.writeHead(symbolicPrefix + headBranch)
}

// CheckCloudRoot rejects a cloud root that is r's own root or lies inside
// its working tree, where pushes would write into the tree being tracked.
func (r *Repo) CheckCloudRoot(root string) error {
	return checkCloudRoot(r.RootDir, root)
}

func checkCloudRoot(localRoot, cloudRoot string) error {
	abs, err := filepath.Abs(cloudRoot)
	if err != nil {
		return fmt.Errorf("cloud root: abs path: %w", err)
	}
	if within(localRoot, abs) || within(evalSymlinks(localRoot), evalSymlinks(abs)) {
		return fmt.Errorf("cloud root %s: %w %s", abs, ErrCloudIsLocal, localRoot)
	}
	return nil
}

// within reports whether p is dir or below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// evalSymlinks resolves p, or the nearest existing parent of p, so that a
// root not yet created still compares against its resolved parent.
func evalSymlinks(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p
	}
	return filepath.Join(evalSymlinks(parent), filepath.Base(p))
}

func isRepoRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, StoreDir))
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, RefsDir, HeadFile))
	return err == nil
}

func storeOptions(cfg *Config) []object.StoreOption {
	if cfg == nil || !cfg.Core.Compression {
		return nil
	}
	return []object.StoreOption{object.WithCompression(cfg.Core.CompressionLevel)}
}
