package object

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
)

// VerifyOptions controls Store.Verify.
type VerifyOptions struct {
	// Concurrency bounds the number of objects hashed at once. Zero picks
	// GOMAXPROCS.
	Concurrency int
}

// VerifySummary counts the objects Verify checked, per kind.
type VerifySummary struct {
	Objects int
	Blobs   int
	Trees   int
	Commits int
}

// Verify re-reads every stored object, checks that its content hashes to
// its id and that trees and commits parse. The first failure cancels the
// remaining work and is returned.
func (s *Store) Verify(ctx context.Context, opts VerifyOptions) (*VerifySummary, error) {
	hashes, err := s.List()
	if err != nil {
		return nil, err
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var blobs, trees, commits atomic.Int64
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, h := range hashes {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			objType, data, err := s.Read(h)
			if err != nil {
				return errors.Wrapf(err, "verify %s", h)
			}
			if actual := HashObject(objType, data); actual != h {
				return StorageFault("verify", string(h), errors.Errorf("hash mismatch (computed %s)", actual))
			}
			if _, err := References(objType, data); err != nil {
				return StorageFault("verify", string(h), err)
			}
			switch objType {
			case TypeBlob:
				blobs.Add(1)
			case TypeTree:
				trees.Add(1)
			case TypeCommit:
				commits.Add(1)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	summary := &VerifySummary{
		Blobs:   int(blobs.Load()),
		Trees:   int(trees.Load()),
		Commits: int(commits.Load()),
	}
	summary.Objects = summary.Blobs + summary.Trees + summary.Commits
	return summary, nil
}
