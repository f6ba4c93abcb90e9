package domain

import "context"

// Embedder converts free text into numeric vectors of a fixed dimension.
type Embedder interface {
	Name() string
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Generator produces text for a prompt. Model and temperature are fixed per instance.
type Generator interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Chunker splits document records into nodes suitable for retrieval indexing.
type Chunker interface {
	Chunk(record DocumentRecord) ([]Node, error)
}

// Extractor reads a single file into one or more records.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]DocumentRecord, error)
}

// Parser converts a batch of files into records in one call. The batch
// either succeeds as a whole or fails as a whole.
type Parser interface {
	Parse(ctx context.Context, paths []string) ([]DocumentRecord, error)
}
