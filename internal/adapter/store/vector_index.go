// Package store persists the vector index artifact in a bbolt file.
//
// The artifact is produced by the offline index build and opened read-only
// at serve time. Entries are keyed by a monotonic sequence so insertion
// order survives the round trip; search ties are broken by that order.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"go.etcd.io/bbolt"

	"ragchat/internal/port"
)

var (
	bucketVectors  = []byte("vectors")
	bucketManifest = []byte("manifest")
	keyManifest    = []byte("index_manifest")
)

// Manifest records how the artifact was built. The serving process refuses
// an artifact whose dimension or model disagrees with the configured
// embedding provider.
type Manifest struct {
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
	Entries        int    `json:"entries"`
	BuiltAtUnix    int64  `json:"built_at_unix"`
}

type storedVector struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"v"`
	Content  string            `json:"c"`
	Metadata map[string]string `json:"m,omitempty"`
}

// BoltVectorIndex holds the artifact's entries in memory, in insertion
// order, and answers brute-force cosine nearest-neighbor queries.
type BoltVectorIndex struct {
	manifest Manifest
	entries  []storedVector
}

// OpenBoltVectorIndex loads an existing artifact for serving. A missing
// file, missing manifest or empty index is reported as an error: serving
// without an index has no meaningful fallback.
func OpenBoltVectorIndex(path string) (*BoltVectorIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index artifact not found at %s: %w", path, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open index artifact: %w", err)
	}
	defer db.Close()

	idx := &BoltVectorIndex{}

	err = db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketManifest)
		if mb == nil {
			return fmt.Errorf("artifact has no manifest bucket (not a ragchat index?)")
		}
		raw := mb.Get(keyManifest)
		if raw == nil {
			return fmt.Errorf("artifact manifest missing")
		}
		if err := json.Unmarshal(raw, &idx.manifest); err != nil {
			return fmt.Errorf("failed to parse manifest: %w", err)
		}

		vb := tx.Bucket(bucketVectors)
		if vb == nil {
			return fmt.Errorf("artifact has no vectors bucket")
		}
		// bbolt iterates keys in byte order; big-endian sequence keys make
		// that identical to insertion order.
		return vb.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt vector entry %x: %w", k, err)
			}
			if len(stored.Vector) != idx.manifest.Dimension {
				return fmt.Errorf("entry %s has dimension %d, manifest says %d",
					stored.ID, len(stored.Vector), idx.manifest.Dimension)
			}
			idx.entries = append(idx.entries, stored)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if len(idx.entries) == 0 {
		return nil, fmt.Errorf("index artifact at %s is empty", path)
	}

	return idx, nil
}

// Manifest returns the build metadata of the loaded artifact.
func (s *BoltVectorIndex) Manifest() Manifest {
	return s.manifest
}

// Dimension returns the fixed vector dimension of the index.
func (s *BoltVectorIndex) Dimension() int {
	return s.manifest.Dimension
}

// Count returns the number of entries in the index.
func (s *BoltVectorIndex) Count() int {
	return len(s.entries)
}

// Search finds the k nearest entries by cosine similarity. The returned
// slice is ordered by decreasing score; equal scores keep insertion order.
func (s *BoltVectorIndex) Search(query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.manifest.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.manifest.Dimension, len(query))
	}
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}

	scores := make([]scored, len(s.entries))
	for i, entry := range s.entries {
		scores[i] = scored{idx: i, score: cosineSimilarity(query, entry.Vector)}
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]port.VectorResult, k)
	for i := 0; i < k; i++ {
		entry := s.entries[scores[i].idx]
		results[i] = port.VectorResult{
			ID:       entry.ID,
			Score:    scores[i].score,
			Content:  entry.Content,
			Metadata: entry.Metadata,
		}
	}

	return results, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ port.VectorIndex = (*BoltVectorIndex)(nil)

// IndexWriter appends entries to a new artifact during the offline build.
type IndexWriter struct {
	db       *bbolt.DB
	model    string
	dim      int
	entries  int
	builtAt  int64
	finished bool
}

// NewIndexWriter creates (or truncates) the artifact at path for the given
// embedding model and dimension.
func NewIndexWriter(path, embeddingModel string, dimension int, builtAtUnix int64) (*IndexWriter, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to replace existing artifact: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create index artifact: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketManifest} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &IndexWriter{db: db, model: embeddingModel, dim: dimension, builtAt: builtAtUnix}, nil
}

// Append stores items in order. Every vector must match the declared
// dimension; a mismatch here means the embedder is misconfigured.
func (w *IndexWriter) Append(items []port.VectorItem) error {
	return w.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, item := range items {
			if len(item.Vector) != w.dim {
				return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", item.ID, w.dim, len(item.Vector))
			}

			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)

			data, err := json.Marshal(storedVector{
				ID:       item.ID,
				Vector:   item.Vector,
				Content:  item.Content,
				Metadata: item.Metadata,
			})
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
			w.entries++
		}
		return nil
	})
}

// Close writes the manifest and closes the artifact. Must be called once.
func (w *IndexWriter) Close() error {
	if w.finished {
		return nil
	}
	w.finished = true

	err := w.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(Manifest{
			EmbeddingModel: w.model,
			Dimension:      w.dim,
			Entries:        w.entries,
			BuiltAtUnix:    w.builtAt,
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketManifest).Put(keyManifest, data)
	})
	if cerr := w.db.Close(); err == nil {
		err = cerr
	}
	return err
}
