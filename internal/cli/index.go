package cli

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragchat/internal/adapter/chunker"
	"ragchat/internal/adapter/fs"
	"ragchat/internal/adapter/store"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the vector index artifact from knowledge-base documents",
	Long: `Build the vector index artifact from text documents in the given
directory. Each document is chunked along paragraph boundaries, embedded,
and written to the artifact configured under index.path.

A document whose first line is "source: <url>" reports that URL as the
provenance of its passages; otherwise the relative file path is used.

Examples:
  ragchat index ./docs
  ragchat index /srv/knowledge-base`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	chk := chunker.NewParagraphChunker(cfg.Index.ChunkWords, cfg.Index.OverlapParas)

	fmt.Printf("Scanning %s...\n", path)
	files, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("failed to scan documents: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents matched the include patterns under %s", path)
	}

	var chunks []domain.Chunk
	for _, f := range files {
		content, err := fs.ReadFile(f.Path)
		if err != nil {
			fmt.Printf("Warning: skipping %s: %v\n", f.Path, err)
			continue
		}

		rel, err := filepath.Rel(path, f.Path)
		if err != nil {
			rel = f.Path
		}

		doc := domain.Document{
			ID:      hashString(rel),
			Path:    f.Path,
			Source:  documentSource(rel, &content),
			Content: content,
		}

		docChunks, err := chk.Chunk(doc)
		if err != nil {
			return fmt.Errorf("failed to chunk %s: %w", rel, err)
		}
		chunks = append(chunks, docChunks...)
	}

	if len(chunks) == 0 {
		return fmt.Errorf("documents produced no chunks")
	}

	artifact := indexPath(cfg, GetRootDir())
	writer, err := store.NewIndexWriter(artifact, embedder.ModelName(), embedder.Dimension(), time.Now().Unix())
	if err != nil {
		return err
	}
	defer writer.Close()

	fmt.Printf("Embedding %d chunks from %d documents...\n", len(chunks), len(files))

	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	batchSize := cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	ctx := context.Background()
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		embeddings, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}

		items := make([]port.VectorItem, len(batch))
		for j, c := range batch {
			items[j] = port.VectorItem{
				ID:      c.ID,
				Vector:  embeddings[j],
				Content: c.Text,
				Metadata: map[string]string{
					"source": c.Source,
					"doc_id": c.DocID,
				},
			}
		}

		if err := writer.Append(items); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}
		bar.Set(end)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}

	fmt.Printf("\nIndex build complete:\n")
	fmt.Printf("  Documents: %d\n", len(files))
	fmt.Printf("  Passages:  %d\n", len(chunks))
	fmt.Printf("  Artifact:  %s\n", artifact)
	return nil
}

// documentSource extracts a "source: <url>" first line as provenance and
// strips it from the content; otherwise the relative path is the source.
func documentSource(rel string, content *string) string {
	lines := strings.SplitN(*content, "\n", 2)
	first := strings.TrimSpace(lines[0])
	if strings.HasPrefix(first, "source:") {
		if len(lines) > 1 {
			*content = lines[1]
		} else {
			*content = ""
		}
		return strings.TrimSpace(strings.TrimPrefix(first, "source:"))
	}
	return rel
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
