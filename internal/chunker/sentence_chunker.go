package chunker

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"docqa/internal/domain"
)

// Ensure SentenceChunker implements the interface.
var _ domain.Chunker = (*SentenceChunker)(nil)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// overlap must leave room to advance
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk splits a record into nodes. Each node inherits the record's source,
// label and a copy of its metadata. A blank record yields no nodes.
func (c *SentenceChunker) Chunk(record domain.DocumentRecord) ([]domain.Node, error) {
	sentences := c.sentences(record.Text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var nodes []domain.Node
	i := 0
	idx := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		nodes = append(nodes, domain.Node{
			ID:         uuid.NewString(),
			DocumentID: record.ID,
			SourcePath: record.SourcePath,
			Label:      record.Label,
			Index:      idx,
			Text:       strings.Join(sentences[i:end], " "),
			Metadata:   domain.CopyMetadata(record.Metadata),
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		idx++
	}
	return nodes, nil
}

// sentences returns the trimmed sentences of text, keeping any trailing
// fragment that has no terminal punctuation.
func (c *SentenceChunker) sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range c.splitter.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
