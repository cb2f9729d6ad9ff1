package usecase

import (
	"testing"

	"kb/internal/domain"
)

func entry(path string, size, mtime int64) domain.ManifestEntry {
	return domain.ManifestEntry{
		Path:      path,
		Signature: domain.Signature{Size: size, ModTime: mtime},
	}
}

func scanned(path string, size, mtime int64) domain.FileInfo {
	return domain.FileInfo{
		Path:      path,
		Signature: domain.Signature{Size: size, ModTime: mtime},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		manifest  map[string]domain.ManifestEntry
		scan      []domain.FileInfo
		added     int
		modified  int
		removed   int
		unchanged int
	}{
		{
			name:     "empty manifest, fresh scan",
			manifest: map[string]domain.ManifestEntry{},
			scan:     []domain.FileInfo{scanned("a.txt", 10, 1), scanned("b.txt", 20, 2)},
			added:    2,
		},
		{
			name: "all unchanged",
			manifest: map[string]domain.ManifestEntry{
				"a.txt": entry("a.txt", 10, 1),
			},
			scan:      []domain.FileInfo{scanned("a.txt", 10, 1)},
			unchanged: 1,
		},
		{
			name: "modified by mtime",
			manifest: map[string]domain.ManifestEntry{
				"a.txt": entry("a.txt", 10, 1),
			},
			scan:     []domain.FileInfo{scanned("a.txt", 10, 5)},
			modified: 1,
		},
		{
			name: "modified by size",
			manifest: map[string]domain.ManifestEntry{
				"a.txt": entry("a.txt", 10, 1),
			},
			scan:     []domain.FileInfo{scanned("a.txt", 11, 1)},
			modified: 1,
		},
		{
			name: "removed",
			manifest: map[string]domain.ManifestEntry{
				"a.txt": entry("a.txt", 10, 1),
			},
			scan:    nil,
			removed: 1,
		},
		{
			name: "mixed",
			manifest: map[string]domain.ManifestEntry{
				"keep.txt": entry("keep.txt", 10, 1),
				"mod.txt":  entry("mod.txt", 10, 1),
				"gone.txt": entry("gone.txt", 10, 1),
			},
			scan: []domain.FileInfo{
				scanned("keep.txt", 10, 1),
				scanned("mod.txt", 10, 9),
				scanned("new.txt", 5, 3),
			},
			added:     1,
			modified:  1,
			removed:   1,
			unchanged: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Classify(tt.manifest, tt.scan)

			if len(changes.Added) != tt.added {
				t.Errorf("added: got %d, want %d", len(changes.Added), tt.added)
			}
			if len(changes.Modified) != tt.modified {
				t.Errorf("modified: got %d, want %d", len(changes.Modified), tt.modified)
			}
			if len(changes.Removed) != tt.removed {
				t.Errorf("removed: got %d, want %d", len(changes.Removed), tt.removed)
			}
			if len(changes.Unchanged) != tt.unchanged {
				t.Errorf("unchanged: got %d, want %d", len(changes.Unchanged), tt.unchanged)
			}
		})
	}
}

// The classification must partition the union of manifest paths and scanned
// paths: every path appears in exactly one bucket.
func TestClassify_Partition(t *testing.T) {
	manifest := map[string]domain.ManifestEntry{
		"a.txt": entry("a.txt", 1, 1),
		"b.txt": entry("b.txt", 2, 2),
		"c.txt": entry("c.txt", 3, 3),
	}
	scan := []domain.FileInfo{
		scanned("b.txt", 2, 2),
		scanned("c.txt", 3, 9),
		scanned("d.txt", 4, 4),
	}

	changes := Classify(manifest, scan)

	seen := make(map[string]int)
	for _, f := range changes.Added {
		seen[f.Path]++
	}
	for _, f := range changes.Modified {
		seen[f.Path]++
	}
	for _, p := range changes.Removed {
		seen[p]++
	}
	for _, p := range changes.Unchanged {
		seen[p]++
	}

	union := map[string]bool{}
	for p := range manifest {
		union[p] = true
	}
	for _, f := range scan {
		union[f.Path] = true
	}

	if len(seen) != len(union) {
		t.Fatalf("expected %d classified paths, got %d", len(union), len(seen))
	}
	for p, n := range seen {
		if n != 1 {
			t.Errorf("path %s classified %d times", p, n)
		}
	}
}
