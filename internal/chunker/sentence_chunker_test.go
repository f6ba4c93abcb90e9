package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestChunk_GroupsSentencesWithOverlap(t *testing.T) {
	rec := domain.NewDocumentRecord("/data/a.txt",
		"One. Two! Three? Four. Five.", "page 2", map[string]any{domain.MetaExtractor: "simple"})

	nodes, err := NewSentenceChunker(2, 1).Chunk(rec)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	want := []string{"One. Two!", "Two! Three?", "Three? Four.", "Four. Five."}
	for i, n := range nodes {
		assert.Equal(t, want[i], n.Text)
		assert.Equal(t, i, n.Index)
		assert.Equal(t, rec.ID, n.DocumentID)
		assert.Equal(t, "/data/a.txt", n.SourcePath)
		assert.Equal(t, "page 2", n.Label)
		assert.Equal(t, "simple", n.Metadata[domain.MetaExtractor])
		assert.NotEmpty(t, n.ID)
	}
	assert.NotEqual(t, nodes[0].ID, nodes[1].ID)
}

func TestChunk_KeepsTrailingFragment(t *testing.T) {
	rec := domain.NewDocumentRecord("a.md", "First sentence. a heading without a period", "", nil)

	nodes, err := NewSentenceChunker(5, 0).Chunk(rec)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "First sentence. a heading without a period", nodes[0].Text)
}

func TestChunk_NoPunctuation(t *testing.T) {
	rec := domain.NewDocumentRecord("a.csv", "name: Ada, role: engineer", "", nil)

	nodes, err := NewSentenceChunker(5, 1).Chunk(rec)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "name: Ada, role: engineer", nodes[0].Text)
}

func TestChunk_BlankRecord(t *testing.T) {
	nodes, err := NewSentenceChunker(5, 1).Chunk(domain.NewDocumentRecord("scan.pdf", "  \n ", "", nil))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestChunk_MetadataIsCopied(t *testing.T) {
	rec := domain.NewDocumentRecord("a.txt", "One. Two.", "", nil)
	nodes, err := NewSentenceChunker(1, 0).Chunk(rec)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	nodes[0].Metadata["extra"] = true
	_, leaked := rec.Metadata["extra"]
	assert.False(t, leaked)
	_, leaked = nodes[1].Metadata["extra"]
	assert.False(t, leaked)
}

func TestNewSentenceChunker_ClampsOverlap(t *testing.T) {
	c := NewSentenceChunker(2, 5)
	nodes, err := c.Chunk(domain.NewDocumentRecord("a.txt", "A. B. C.", "", nil))
	require.NoError(t, err)
	// overlap clamped to 1, so the window still advances
	assert.Len(t, nodes, 2)
}
