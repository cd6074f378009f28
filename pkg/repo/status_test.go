package repo

import (
	"testing"
)

func TestStatus(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	addFile(t, r, "b.txt", "b")
	addFile(t, r, "same.txt", "same")
	mustCommit(t, r, "one")

	addFile(t, r, "a.txt", "a2")
	addFile(t, r, "c.txt", "c")
	addFile(t, r, "same.txt", "same")
	if _, err := r.Remove([]string{"b.txt"}); err != nil {
		t.Fatal(err)
	}

	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []struct {
		path   string
		status FileStatus
	}{
		{"a.txt", StatusModified},
		{"b.txt", StatusDeleted},
		{"c.txt", StatusNew},
	}
	if len(entries) != len(want) {
		t.Fatalf("status = %+v", entries)
	}
	for i, w := range want {
		if entries[i].Path != w.path || entries[i].Status != w.status {
			t.Errorf("entries[%d] = %+v, want %s %s", i, entries[i], w.path, w.status)
		}
	}
	if entries[0].OldHash == "" || entries[0].Hash == entries[0].OldHash {
		t.Errorf("modified entry hashes = %+v", entries[0])
	}
}

func TestStatusUnbornHead(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", "a")
	entries, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Status != StatusNew {
		t.Errorf("status = %+v", entries)
	}
}
