package repo

import (
	"path/filepath"

	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/sirupsen/logrus"
)

// On-disk layout, relative to a repository root.
const (
	StoreDir     = ".store"
	RefsDir      = ".refs"
	HeadFile     = "HEAD"
	BranchesFile = "branches"
	LogsDir      = "logs"
	IndexFile    = ".index"
	ConfigFile   = ".cirrus.toml"
	IgnoreFile   = ".cirrusignore"

	DefaultBranch = "main"
)

// Repo represents an opened repository. A local repository owns a staging
// index and a config file; a cloud replica only has objects and refs.
type Repo struct {
	RootDir string        // repository root
	Store   *object.Store // content-addressed object store

	local bool
	log   *logrus.Entry
}

func newRepo(root string, local bool, opts ...object.StoreOption) *Repo {
	return &Repo{
		RootDir: root,
		Store:   object.NewStore(filepath.Join(root, StoreDir), opts...),
		local:   local,
		log:     logrus.WithField("repo", root),
	}
}

// IsLocal reports whether r has a staging index.
func (r *Repo) IsLocal() bool {
	return r.local
}

// Logger returns the entry r logs through.
func (r *Repo) Logger() *logrus.Entry {
	return r.log
}

// SetLogger replaces the logger; the repo field is added to entry.
func (r *Repo) SetLogger(entry *logrus.Entry) {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	r.log = entry.WithField("repo", r.RootDir)
}

// HasObject reports whether the object store holds h.
func (r *Repo) HasObject(h object.Hash) bool {
	return r.Store.Has(h)
}

// WriteObject stores an object and returns its id.
func (r *Repo) WriteObject(objType object.ObjectType, data []byte) (object.Hash, error) {
	return r.Store.Write(objType, data)
}

// ReadObject loads an object by id.
func (r *Repo) ReadObject(h object.Hash) (object.ObjectType, []byte, error) {
	return r.Store.Read(h)
}

func (r *Repo) refsDir() string {
	return filepath.Join(r.RootDir, RefsDir)
}

func (r *Repo) headPath() string {
	return filepath.Join(r.refsDir(), HeadFile)
}

func (r *Repo) branchesPath() string {
	return filepath.Join(r.refsDir(), BranchesFile)
}
