// Package chunker splits knowledge-base documents into retrieval-sized
// pieces along paragraph boundaries.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// ParagraphChunker groups consecutive paragraphs until a word budget is
// reached, carrying a configurable paragraph overlap into the next chunk so
// answers spanning a boundary stay retrievable.
type ParagraphChunker struct {
	maxWords     int
	overlapParas int
}

func NewParagraphChunker(maxWords, overlapParas int) *ParagraphChunker {
	if maxWords <= 0 {
		maxWords = 300
	}
	if overlapParas < 0 {
		overlapParas = 0
	}
	return &ParagraphChunker{
		maxWords:     maxWords,
		overlapParas: overlapParas,
	}
}

func (c *ParagraphChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	paras := splitParagraphs(doc.Content)
	if len(paras) == 0 {
		return nil, nil
	}

	var chunks []domain.Chunk
	start := 0

	for start < len(paras) {
		end := start
		words := 0

		for end < len(paras) {
			paraWords := len(strings.Fields(paras[end]))
			if words > 0 && words+paraWords > c.maxWords {
				break
			}
			words += paraWords
			end++
		}

		// A single oversized paragraph still becomes one chunk.
		if end == start {
			end = start + 1
		}

		text := strings.Join(paras[start:end], "\n\n")
		chunks = append(chunks, domain.Chunk{
			ID:     chunkID(doc.ID, len(chunks), text),
			DocID:  doc.ID,
			Source: doc.Source,
			Text:   text,
		})

		if end >= len(paras) {
			break
		}

		next := end - c.overlapParas
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

func splitParagraphs(content string) []string {
	var paras []string
	for _, p := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

func chunkID(docID string, ordinal int, text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%d:%s", docID, ordinal, hex.EncodeToString(h[:8]))
}
