package object

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: <dir>/ab/cdef0123...
type Store struct {
	dir   string
	codec codec
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCompression stores new objects as zstd frames at the given level
// (1 fastest .. 4 best, anything else selects the default level).
func WithCompression(level int) StoreOption {
	return func(s *Store) { s.codec = newCodec(true, level) }
}

// NewStore creates a Store rooted at dir. Shard directories are created
// lazily on first write.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.dir, string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(h) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. The stored record is
// the envelope "type len\0content", zstd framed when compression is on.
// Writing an object that already exists is a no-op.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if _, err := parseObjectType(string(objType)); err != nil {
		return "", err
	}
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw := append(envelopeHeader(objType, len(data)), data...)
	stored, err := s.codec.encode(raw)
	if err != nil {
		return "", StorageFault("object write", string(h), err)
	}

	dir := filepath.Join(s.dir, string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", StorageFault("object write mkdir", dir, err)
	}

	dest := s.objectPath(h)
	pending, err := renameio.TempFile(dir, dest)
	if err != nil {
		return "", StorageFault("object write tmpfile", dest, err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(stored); err != nil {
		return "", StorageFault("object write", dest, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", StorageFault("object write rename", dest, err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(h) {
		return "", nil, errors.Wrapf(ErrObjectNotFound, "object read %q", h)
	}
	path := s.objectPath(h)
	stored, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, errors.Wrapf(ErrObjectNotFound, "object read %s", h)
		}
		return "", nil, StorageFault("object read", path, err)
	}
	raw, err := s.codec.decode(stored)
	if err != nil {
		return "", nil, StorageFault("object read", path, err)
	}
	objType, content, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, StorageFault("object read", path, err)
	}
	return objType, content, nil
}

// parseEnvelope splits "type len\0content" and checks the declared length.
func parseEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, errors.New("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typeName, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, errors.Errorf("invalid header %q", header)
	}
	objType, err := parseObjectType(typeName)
	if err != nil {
		return "", nil, err
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "invalid length %q", lenStr)
	}
	if len(content) != length {
		return "", nil, errors.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

func parseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit:
		return t, nil
	default:
		return "", errors.Errorf("unsupported object type %q", s)
	}
}

// List returns every stored object hash, sorted.
func (s *Store) List() ([]Hash, error) {
	shards, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, StorageFault("object list", s.dir, err)
	}
	var out []Hash
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		shardDir := filepath.Join(s.dir, shard.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			return nil, StorageFault("object list", shardDir, err)
		}
		for _, f := range files {
			h := Hash(shard.Name() + f.Name())
			if f.IsDir() || !ValidHash(h) {
				continue
			}
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree validates, serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	if err := ValidateTree(tr); err != nil {
		return "", errors.Wrap(err, "write tree")
	}
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, StorageFault("object read", string(h), err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	if !ValidHash(c.TreeHash) {
		return "", errors.Errorf("write commit: bad tree hash %q", c.TreeHash)
	}
	if c.Parent != "" && !ValidHash(c.Parent) {
		return "", errors.Errorf("write commit: bad parent hash %q", c.Parent)
	}
	// Header values are single lines.
	if strings.ContainsAny(c.Author, "\r\n") {
		return "", errors.Errorf("write commit: author %q spans lines", c.Author)
	}
	if strings.ContainsAny(c.Signature, "\r\n") {
		return "", errors.New("write commit: signature spans lines")
	}
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, StorageFault("object read", string(h), err)
	}
	return c, nil
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, errors.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}
