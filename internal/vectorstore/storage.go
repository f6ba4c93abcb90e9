package vectorstore

import (
	"time"

	"docqa/internal/domain"
)

// Storage holds node vectors and supports similarity search.
type Storage interface {
	Init(dimension int) error
	Upsert(nodes []domain.Node, vectors [][]float64) error
	Search(vector []float64, topK int) ([]domain.SearchResult, error)
	Entries() ([]domain.Node, [][]float64)
	Dimension() int
	Len() int
}

// Snapshot is the persisted state of an index: nodes, their vectors and the
// embedding model that produced them.
type Snapshot struct {
	EmbedderName  string
	EmbedderModel string
	Dimension     int
	CreatedAt     time.Time
	Nodes         []domain.Node
	Vectors       [][]float64
}
