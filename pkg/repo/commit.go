package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/sirupsen/logrus"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitOptions tunes CommitWithOptions.
type CommitOptions struct {
	// Author defaults to core.author from config, then "unknown".
	Author string
	Signer CommitSigner
	// Now defaults to time.Now.
	Now func() time.Time
}

// Commit creates a commit from the staged changes.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithOptions(message, CommitOptions{Author: author})
}

// CommitWithOptions creates a commit from the staged changes:
//
//  1. Read the index; an empty index is ErrNothingToCommit.
//  2. Overlay the staged entries on HEAD's snapshot and write the trees.
//  3. Take HEAD's commit, if any, as parent.
//  4. Write the commit object, signed when opts.Signer is set.
//  5. Advance the current branch, or HEAD itself when detached.
//  6. Clear the index.
//
// Any failure up to and including the ref update in step 5 leaves refs and
// the index untouched; a reflog append failure after the ref moved is only
// logged. If clearing the index fails the new commit id is returned along
// with the error.
func (r *Repo) CommitWithOptions(message string, opts CommitOptions) (object.Hash, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if idx.Len() == 0 {
		return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
	}

	author, err := r.commitAuthor(opts.Author)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	head, snapshot, err := r.headSnapshot()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	overlayIndex(snapshot, idx)
	treeHash, err := r.BuildTree(snapshot)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parent:    head.Commit,
		Author:    author,
		Timestamp: now().Unix(),
		Message:   message,
	}
	if opts.Signer != nil {
		signature, err := opts.Signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	if head.Kind == HeadDetached {
		if err := r.writeHead(detachedPrefix + string(commitHash)); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	} else if err := r.setBranch(head.Branch, commitHash, "commit: "+firstLine(message)); err != nil {
		if !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
			return "", fmt.Errorf("commit: %w", err)
		}
		r.log.WithError(err).Warn("branch advanced without reflog entry")
	}

	r.log.WithFields(logrus.Fields{
		"commit": commitHash,
		"parent": head.Commit,
		"branch": head.Branch,
		"files":  len(snapshot),
	}).Debug("created commit")

	if err := r.ClearIndex(); err != nil {
		return commitHash, fmt.Errorf("commit: %w", err)
	}
	return commitHash, nil
}

func (r *Repo) commitAuthor(author string) (string, error) {
	if author = strings.TrimSpace(author); author == "" {
		cfg, err := r.ReadConfig()
		if err != nil {
			return "", err
		}
		author = strings.TrimSpace(cfg.Core.Author)
	}
	if author == "" {
		return "unknown", nil
	}
	if strings.ContainsAny(author, "\r\n") {
		return "", fmt.Errorf("%w: %q spans lines", ErrInvalidAuthor, author)
	}
	return author, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// LogEntry pairs a commit with its id.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log follows parent links from start, newest first. limit <= 0 walks the
// whole chain.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start
	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})
		current = c.Parent
	}
	return entries, nil
}
