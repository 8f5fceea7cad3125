package store

import (
	"path/filepath"
	"testing"

	"ragchat/internal/port"
)

func buildIndex(t *testing.T, items []port.VectorItem, dim int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")

	w, err := NewIndexWriter(path, "mock-embedding", dim, 1700000000)
	if err != nil {
		t.Fatalf("NewIndexWriter: %v", err)
	}
	if err := w.Append(items); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestWriteAndOpenRoundTrip(t *testing.T) {
	items := []port.VectorItem{
		{ID: "a", Vector: []float32{1, 0}, Content: "first", Metadata: map[string]string{"source": "a.md"}},
		{ID: "b", Vector: []float32{0, 1}, Content: "second"},
		{ID: "c", Vector: []float32{1, 1}, Content: "third"},
	}
	path := buildIndex(t, items, 2)

	idx, err := OpenBoltVectorIndex(path)
	if err != nil {
		t.Fatalf("OpenBoltVectorIndex: %v", err)
	}

	if idx.Count() != 3 {
		t.Errorf("expected 3 entries, got %d", idx.Count())
	}
	if idx.Dimension() != 2 {
		t.Errorf("expected dimension 2, got %d", idx.Dimension())
	}

	m := idx.Manifest()
	if m.EmbeddingModel != "mock-embedding" {
		t.Errorf("unexpected manifest model %q", m.EmbeddingModel)
	}
	if m.Entries != 3 {
		t.Errorf("manifest entries = %d, want 3", m.Entries)
	}
	if m.BuiltAtUnix != 1700000000 {
		t.Errorf("manifest built_at = %d, want 1700000000", m.BuiltAtUnix)
	}
}

func TestSearchOrdering(t *testing.T) {
	items := []port.VectorItem{
		{ID: "east", Vector: []float32{1, 0}, Content: "points east"},
		{ID: "north", Vector: []float32{0, 1}, Content: "points north"},
		{ID: "northeast", Vector: []float32{1, 1}, Content: "points northeast"},
	}
	idx, err := OpenBoltVectorIndex(buildIndex(t, items, 2))
	if err != nil {
		t.Fatalf("OpenBoltVectorIndex: %v", err)
	}

	results, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	want := []string{"east", "northeast", "north"}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("result[%d] = %s, want %s", i, results[i].ID, id)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not descending at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
	if results[0].Metadata != nil {
		t.Errorf("unexpected metadata on %s: %v", results[0].ID, results[0].Metadata)
	}
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	// Identical vectors score identically against any query; the result
	// order must then follow insertion order, on every call.
	items := []port.VectorItem{
		{ID: "tie-1", Vector: []float32{1, 1}, Content: "one"},
		{ID: "tie-2", Vector: []float32{1, 1}, Content: "two"},
		{ID: "tie-3", Vector: []float32{1, 1}, Content: "three"},
	}
	idx, err := OpenBoltVectorIndex(buildIndex(t, items, 2))
	if err != nil {
		t.Fatalf("OpenBoltVectorIndex: %v", err)
	}

	for run := 0; run < 5; run++ {
		results, err := idx.Search([]float32{1, 1}, 3)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for i, want := range []string{"tie-1", "tie-2", "tie-3"} {
			if results[i].ID != want {
				t.Fatalf("run %d: result[%d] = %s, want %s", run, i, results[i].ID, want)
			}
		}
	}
}

func TestSearchTopKBound(t *testing.T) {
	items := []port.VectorItem{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}
	idx, err := OpenBoltVectorIndex(buildIndex(t, items, 2))
	if err != nil {
		t.Fatalf("OpenBoltVectorIndex: %v", err)
	}

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("k larger than index: expected 2 results, got %d", len(results))
	}

	results, err = idx.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx, err := OpenBoltVectorIndex(buildIndex(t, []port.VectorItem{
		{ID: "a", Vector: []float32{1, 0}},
	}, 2))
	if err != nil {
		t.Fatalf("OpenBoltVectorIndex: %v", err)
	}

	if _, err := idx.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Error("expected error for mismatched query dimension")
	}
}

func TestAppendDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	w, err := NewIndexWriter(path, "mock-embedding", 2, 0)
	if err != nil {
		t.Fatalf("NewIndexWriter: %v", err)
	}
	defer w.Close()

	err = w.Append([]port.VectorItem{{ID: "bad", Vector: []float32{1, 2, 3}}})
	if err == nil {
		t.Error("expected error for mismatched vector dimension")
	}
}

func TestOpenMissingArtifact(t *testing.T) {
	_, err := OpenBoltVectorIndex(filepath.Join(t.TempDir(), "nope.db"))
	if err == nil {
		t.Error("expected error for missing artifact")
	}
}

func TestOpenEmptyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	w, err := NewIndexWriter(path, "mock-embedding", 2, 0)
	if err != nil {
		t.Fatalf("NewIndexWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := OpenBoltVectorIndex(path); err == nil {
		t.Error("expected error for empty artifact")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
