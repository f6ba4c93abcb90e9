// Package index builds, persists, reloads and queries the vector index over
// ingested documents.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/prompt"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/bolt"
	"docqa/internal/vectorstore/memory"
)

const defaultBatchSize = 32

// Options configures building and querying an index.
type Options struct {
	StorageDir string
	BatchSize  int
	TopK       int
	Chunker    domain.Chunker
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.TopK <= 0 {
		o.TopK = config.DefaultTopK
	}
	if o.Chunker == nil {
		o.Chunker = chunker.NewSentenceChunker(5, 1)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Response is the answer to a query together with the nodes it was grounded on.
type Response struct {
	Text    string
	Sources []domain.SearchResult
}

// Index is a queryable vector index. An index obtained from Open has no
// providers until Rebind is called.
type Index struct {
	store         vectorstore.Storage
	embedderName  string
	embedderModel string
	createdAt     time.Time
	topK          int
	logger        *zap.Logger

	mu  sync.RWMutex
	gen domain.Generator
	emb domain.Embedder
}

// Build chunks and embeds records, then persists the index to opts.StorageDir.
// An empty record set fails with domain.ErrEmptyCorpus before anything is written.
func Build(ctx context.Context, records []domain.DocumentRecord, gen domain.Generator, emb domain.Embedder, opts Options) (*Index, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if gen == nil || emb == nil {
		return nil, errors.New("build index: generator and embedder are required")
	}
	opts = opts.withDefaults()
	start := time.Now()

	var nodes []domain.Node
	for _, r := range records {
		ns, err := opts.Chunker.Chunk(r)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.SourcePath, err)
		}
		nodes = append(nodes, ns...)
	}

	vectors := make([][]float64, 0, len(nodes))
	for i := 0; i < len(nodes); i += opts.BatchSize {
		end := i + opts.BatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		texts := make([]string, 0, end-i)
		for _, n := range nodes[i:end] {
			texts = append(texts, n.Text)
		}
		vecs, err := emb.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed nodes: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed nodes: got %d vectors for %d texts", len(vecs), len(texts))
		}
		vectors = append(vectors, vecs...)
		opts.Logger.Debug("embedded nodes", zap.Int("done", end), zap.Int("total", len(nodes)))
	}

	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	store := memory.NewStorage()
	if err := store.Init(dimension); err != nil {
		return nil, err
	}
	if err := store.Upsert(nodes, vectors); err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	idx := &Index{
		store:         store,
		embedderName:  emb.Name(),
		embedderModel: emb.Model(),
		createdAt:     time.Now().UTC(),
		topK:          opts.TopK,
		logger:        opts.Logger,
		gen:           gen,
		emb:           emb,
	}
	if err := bolt.Persist(opts.StorageDir, idx.snapshot()); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	opts.Logger.Info("index built",
		zap.Int("records", len(records)),
		zap.Int("nodes", len(nodes)),
		zap.Int("dimension", dimension),
		zap.String("embedder", emb.Name()),
		zap.String("storage_dir", opts.StorageDir),
		zap.Duration("elapsed", time.Since(start)))
	return idx, nil
}

// Open reads a persisted index from dir. The returned index is unbound.
func Open(dir string, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	snap, err := bolt.Open(dir)
	if err != nil {
		return nil, err
	}
	store := memory.NewStorage()
	if err := store.Init(snap.Dimension); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndexStorage, err)
	}
	if err := store.Upsert(snap.Nodes, snap.Vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndexStorage, err)
	}
	opts.Logger.Info("index opened",
		zap.String("storage_dir", dir),
		zap.Int("nodes", len(snap.Nodes)),
		zap.String("embedder_model", snap.EmbedderModel))
	return &Index{
		store:         store,
		embedderName:  snap.EmbedderName,
		embedderModel: snap.EmbedderModel,
		createdAt:     snap.CreatedAt,
		topK:          opts.TopK,
		logger:        opts.Logger,
	}, nil
}

// Load opens a persisted index and binds the providers to it. Nothing is re-embedded.
func Load(ctx context.Context, dir string, gen domain.Generator, emb domain.Embedder, opts Options) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := Open(dir, opts)
	if err != nil {
		return nil, err
	}
	if err := idx.Rebind(gen, emb); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebind attaches the providers used for queries. An embedder for a different
// model than the one the index was built with is accepted with a warning.
func (idx *Index) Rebind(gen domain.Generator, emb domain.Embedder) error {
	if gen == nil || emb == nil {
		return errors.New("rebind: generator and embedder are required")
	}
	if idx.embedderModel != "" && emb.Model() != idx.embedderModel {
		idx.logger.Warn("embedder differs from the one the index was built with",
			zap.String("index_model", idx.embedderModel),
			zap.String("embedder_model", emb.Model()))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.gen = gen
	idx.emb = emb
	return nil
}

func (idx *Index) providers() (domain.Generator, domain.Embedder, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.gen == nil || idx.emb == nil {
		return nil, nil, domain.ErrUnboundIndex
	}
	return idx.gen, idx.emb, nil
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return idx.store.Len() }

// EmbedderModel returns the embedding model the index was built with.
func (idx *Index) EmbedderModel() string { return idx.embedderModel }

// Retrieve returns the topK nodes most similar to question. When vector
// similarity carries no signal it ranks nodes by word overlap instead.
func (idx *Index) Retrieve(ctx context.Context, question string, topK int) ([]domain.SearchResult, error) {
	_, emb, err := idx.providers()
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = idx.topK
	}
	vecs, err := emb.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	if isZero(vecs[0]) {
		return idx.lexicalSearch(question, topK), nil
	}
	res, err := idx.store.Search(vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return idx.lexicalSearch(question, topK), nil
	}
	return res, nil
}

// Query retrieves context for question and asks the bound generator.
// Generator failures are *domain.GenerationProviderError.
func (idx *Index) Query(ctx context.Context, question string) (Response, error) {
	gen, _, err := idx.providers()
	if err != nil {
		return Response{}, err
	}
	sources, err := idx.Retrieve(ctx, question, idx.topK)
	if err != nil {
		return Response{}, err
	}
	text, err := gen.Complete(ctx, prompt.QA(sources, question))
	if err != nil {
		var gerr *domain.GenerationProviderError
		if !errors.As(err, &gerr) {
			err = &domain.GenerationProviderError{Provider: gen.Name(), Err: err}
		}
		return Response{}, err
	}
	idx.logger.Debug("query answered",
		zap.Int("sources", len(sources)),
		zap.Int("answer_len", len(text)))
	return Response{Text: text, Sources: sources}, nil
}

func (idx *Index) snapshot() *vectorstore.Snapshot {
	nodes, vectors := idx.store.Entries()
	return &vectorstore.Snapshot{
		EmbedderName:  idx.embedderName,
		EmbedderModel: idx.embedderModel,
		Dimension:     idx.store.Dimension(),
		CreatedAt:     idx.createdAt,
		Nodes:         nodes,
		Vectors:       vectors,
	}
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
