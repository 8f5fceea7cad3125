package port

// VectorItem is one indexed entry: an embedding plus the passage it encodes.
type VectorItem struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// VectorResult is a nearest-neighbor hit. Higher score is more similar.
type VectorResult struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}

// VectorIndex answers nearest-neighbor queries over precomputed embeddings.
// Read-only at serve time; implementations must be safe for concurrent reads.
type VectorIndex interface {
	// Search returns up to k entries ordered by decreasing similarity.
	// Entries with equal scores keep their original insertion order.
	Search(query []float32, k int) ([]VectorResult, error)

	// Dimension returns the fixed vector dimension of the index.
	Dimension() int

	// Count returns the number of entries in the index.
	Count() int
}
