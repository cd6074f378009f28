package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/cirrus/pkg/object"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ReflogEntry records one movement of a branch tip.
type ReflogEntry struct {
	Branch    string
	OldHash   object.Hash // empty when the branch was unborn
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

func (r *Repo) reflogPath(branch string) string {
	return filepath.Join(r.refsDir(), LogsDir, filepath.FromSlash(branch))
}

func (r *Repo) appendReflog(branch string, oldHash, newHash object.Hash, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	reason = strings.ReplaceAll(reason, "\n", " ")

	logPath := r.reflogPath(branch)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return object.StorageFault("reflog mkdir", filepath.Dir(logPath), err)
	}

	old := string(oldHash)
	if old == "" {
		old = zeroHash
	}
	newVal := string(newHash)
	if newVal == "" {
		newVal = zeroHash
	}
	line := fmt.Sprintf("%s %s %d %s\n", old, newVal, time.Now().Unix(), reason)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return object.StorageFault("reflog open", logPath, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return object.StorageFault("reflog write", logPath, err)
	}
	return nil
}

// ReadReflog returns the reflog of branch, newest first. An empty branch
// means the branch HEAD is attached to. limit <= 0 returns every entry.
func (r *Repo) ReadReflog(branch string, limit int) ([]ReflogEntry, error) {
	if strings.TrimSpace(branch) == "" {
		head, err := r.ReadHead()
		if err != nil {
			return nil, err
		}
		if head.Kind == HeadDetached {
			return nil, fmt.Errorf("read reflog: %w", ErrDetachedHead)
		}
		branch = head.Branch
	}
	if err := ValidateBranchName(branch); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	f, err := os.Open(r.reflogPath(branch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, object.StorageFault("read reflog", r.reflogPath(branch), err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Branch:    branch,
			OldHash:   fromReflogHash(parts[0]),
			NewHash:   fromReflogHash(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, object.StorageFault("read reflog", r.reflogPath(branch), err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func fromReflogHash(s string) object.Hash {
	if s == zeroHash {
		return ""
	}
	return object.Hash(s)
}
