// ABOUTME: Performance benchmarks for the version backends
// ABOUTME: Measures save throughput and reload latency per backend

package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nainya/grantdraft/pkg/version"
)

func benchSnapshot(i int) version.Snapshot {
	return version.Snapshot{
		"topic":   "Water quality",
		"goals":   "Monitor rivers",
		"outline": fmt.Sprintf("Outline revision %d", i),
		"budget":  map[string]any{"equipment": 1200.0, "travel": float64(i)},
	}
}

func BenchmarkSave(b *testing.B) {
	for _, kind := range Kinds {
		b.Run(kind, func(b *testing.B) {
			backend, err := Open(kind, filepath.Join(b.TempDir(), "history"))
			if err != nil {
				b.Fatal(err)
			}
			store := version.NewStore(version.Options{Backend: backend})
			defer store.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				store.Save(benchSnapshot(i), "Edited outline")
			}
			b.StopTimer()

			if err := store.LastPersistError(); err != nil {
				b.Fatal(err)
			}
		})
	}
}

func BenchmarkLoad(b *testing.B) {
	const numVersions = 500

	for _, kind := range Kinds {
		b.Run(kind, func(b *testing.B) {
			path := filepath.Join(b.TempDir(), "history")
			backend, err := Open(kind, path)
			if err != nil {
				b.Fatal(err)
			}
			store := version.NewStore(version.Options{Backend: backend})
			for i := 0; i < numVersions; i++ {
				store.Save(benchSnapshot(i), "Edited outline")
			}
			store.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				backend, err := Open(kind, path)
				if err != nil {
					b.Fatal(err)
				}
				entries, err := backend.Load()
				if err != nil {
					b.Fatal(err)
				}
				if len(entries) != numVersions {
					b.Fatalf("expected %d versions, got %d", numVersions, len(entries))
				}
				backend.Close()
			}
		})
	}
}
