package object

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"testing"
)

func benchmarkStores(b *testing.B) map[string]*Store {
	return map[string]*Store{
		"plain": NewStore(b.TempDir()),
		"zstd":  NewStore(b.TempDir(), WithCompression(2)),
	}
}

// BenchmarkStoreWriteSmall writes distinct 100-byte blobs so every write
// misses the Has fast path.
func BenchmarkStoreWriteSmall(b *testing.B) {
	for name, s := range benchmarkStores(b) {
		b.Run(name, func(b *testing.B) {
			payloads := make([][]byte, b.N)
			for i := range payloads {
				buf := make([]byte, 100)
				if _, err := rand.Read(buf); err != nil {
					b.Fatalf("rand.Read: %v", err)
				}
				payloads[i] = buf
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Write(TypeBlob, payloads[i]); err != nil {
					b.Fatalf("Write: %v", err)
				}
			}
		})
	}
}

func BenchmarkStoreReadText(b *testing.B) {
	payload := bytes.Repeat([]byte("package main\n\nfunc main() { println(\"hello\") }\n"), 256)
	for name, s := range benchmarkStores(b) {
		b.Run(name, func(b *testing.B) {
			h, err := s.Write(TypeBlob, payload)
			if err != nil {
				b.Fatalf("Write: %v", err)
			}

			b.SetBytes(int64(len(payload)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := s.Read(h); err != nil {
					b.Fatalf("Read: %v", err)
				}
			}
		})
	}
}

var marshalTreeBenchmarkSink []byte

func BenchmarkMarshalTree(b *testing.B) {
	tr := &TreeObj{}
	for i := 0; i < 1000; i++ {
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: fmt.Sprintf("file-%04d.go", i),
			Mode: TreeModeFile,
			Hash: HashBytes([]byte{byte(i), byte(i >> 8)}),
		})
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		marshalTreeBenchmarkSink = MarshalTree(tr)
	}
}

func BenchmarkWalkReachableChain(b *testing.B) {
	s := NewStore(b.TempDir())
	var tip Hash
	for i := 0; i < 200; i++ {
		blob, err := s.WriteBlob(&Blob{Data: []byte(fmt.Sprintf("rev %d", i))})
		if err != nil {
			b.Fatal(err)
		}
		tree, err := s.WriteTree(&TreeObj{Entries: []TreeEntry{{Name: "f", Mode: TreeModeFile, Hash: blob}}})
		if err != nil {
			b.Fatal(err)
		}
		tip, err = s.WriteCommit(&CommitObj{TreeHash: tree, Parent: tip, Author: "bench", Timestamp: int64(i), Message: "m"})
		if err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, err := range s.WalkReachable(tip, WalkOptions{FollowParents: true}) {
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}
