package object

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrObjectNotFound reports a reference to an id the store does not hold.
	ErrObjectNotFound = errors.New("object not found")
	// ErrStorageFault is matched by every *StorageError.
	ErrStorageFault = errors.New("storage fault")
)

// StorageError describes an I/O or on-disk format failure while reading or
// writing a stored record.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, ErrStorageFault, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, ErrStorageFault, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFault
}

// StorageFault wraps err as a *StorageError for the record at path.
func StorageFault(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
