// Package extractive is an offline generator that answers with the context
// sentences that best match the query.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/prompt"
)

// Ensure Generator implements the interface.
var _ domain.Generator = (*Generator)(nil)

// DefaultMaxSentences is the answer length when none is configured.
const DefaultMaxSentences = 3

// Generator ranks context sentences by query overlap and word frequency
// (stopwords filtered).
type Generator struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	splitter     *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates an extractive generator.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Generator{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		splitter:     regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n])`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the provider identifier.
func (g *Generator) Name() string { return "extractive" }

// Model names the ranking method.
func (g *Generator) Model() string { return "frequency" }

// Complete answers from the context embedded in a QA prompt. A prompt
// without context, or of another shape, yields an empty answer.
func (g *Generator) Complete(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.GenerationProviderError{Provider: g.Name(), Err: err}
	}
	text, query, ok := prompt.ParseQA(p)
	if !ok || text == "" {
		return "", nil
	}
	return g.summarize(text, query), nil
}

func (g *Generator) summarize(text, query string) string {
	sentences := g.sentences(text)
	if len(sentences) == 0 {
		return ""
	}

	qset := make(map[string]struct{})
	for _, tok := range g.tokens(query) {
		qset[tok] = struct{}{}
	}

	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range g.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := g.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			sscore += freq[tok]
			// query terms dominate plain frequency
			if _, ok := qset[tok]; ok {
				sscore += 2
			}
		}
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := g.maxSentences
	if n > len(scores) {
		n = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (g *Generator) sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range g.splitter.FindAllStringIndex(text, -1) {
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

func (g *Generator) tokens(text string) []string {
	raw := g.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := g.stopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
