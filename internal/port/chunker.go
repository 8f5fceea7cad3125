package port

import "ragchat/internal/domain"

// Chunker splits documents into indexable chunks.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
