package memory

import (
	"errors"
	"math"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Ensure Storage implements the interface.
var _ vectorstore.Storage = (*Storage)(nil)

// DefaultTopK is used when Search is called with a non-positive topK.
const DefaultTopK = 5

// ErrDimensionMismatch is returned when a vector does not match the store dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Vectors are L2-normalized on the way in.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	nodes     []domain.Node
}

func NewStorage() *Storage { return &Storage{} }

// Init resets the store. A zero dimension is allowed for an empty index.
func (s *Storage) Init(dimension int) error {
	if dimension < 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.nodes = nil
	return nil
}

func (s *Storage) Upsert(nodes []domain.Node, vectors [][]float64) error {
	if len(nodes) != len(vectors) {
		return errors.New("nodes and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return ErrDimensionMismatch
		}
	}
	for _, v := range vectors {
		s.vectors = append(s.vectors, normalized(v))
	}
	s.nodes = append(s.nodes, nodes...)
	return nil
}

// Search returns the topK nodes by cosine similarity, best first.
func (s *Storage) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	query := normalized(vector)
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = dot(s.vectors[i], query)
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		results = append(results, domain.SearchResult{Node: s.nodes[j], Score: scores[j]})
	}
	return results, nil
}

// Entries returns copies of the stored nodes and their vectors, in insertion order.
func (s *Storage) Entries() ([]domain.Node, [][]float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := append([]domain.Node(nil), s.nodes...)
	vectors := make([][]float64, len(s.vectors))
	for i, v := range s.vectors {
		vectors[i] = append([]float64(nil), v...)
	}
	return nodes, vectors
}

// Dimension returns the configured vector dimension.
func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Len returns the number of stored nodes.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func normalized(v []float64) []float64 {
	out := append([]float64(nil), v...)
	norm := math.Sqrt(dot(v, v))
	if norm > 0 {
		for i := range out {
			out[i] /= norm
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// argsortDesc orders indexes by descending score; ties keep insertion order.
func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
