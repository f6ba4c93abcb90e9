// Package prompt renders the question-answering prompt sent to generators.
package prompt

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

const separator = "---------------------"

const qaTemplate = "Context information is below.\n" +
	separator + "\n" +
	"%s\n" +
	separator + "\n" +
	"Given the context information and not prior knowledge, answer the query.\n" +
	"Query: %s\n" +
	"Answer: "

// headerKeys are the node metadata keys shown above each context block.
var headerKeys = []string{domain.MetaPageLabel, domain.MetaFilePath}

// QA renders the prompt for query over the retrieved nodes.
func QA(results []domain.SearchResult, query string) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, contextBlock(r.Node))
	}
	return fmt.Sprintf(qaTemplate, strings.Join(blocks, "\n\n"), query)
}

func contextBlock(n domain.Node) string {
	var header []string
	for _, k := range headerKeys {
		if v, ok := n.Metadata[k]; ok && fmt.Sprint(v) != "" {
			header = append(header, k+": "+fmt.Sprint(v))
		}
	}
	if len(header) == 0 {
		return n.Text
	}
	return strings.Join(header, "\n") + "\n\n" + n.Text
}

// ParseQA splits a prompt produced by QA back into its context text (block
// headers removed) and query. ok is false for prompts of any other shape.
func ParseQA(p string) (context, query string, ok bool) {
	parts := strings.SplitN(p, separator, 3)
	if len(parts) != 3 {
		return "", "", false
	}
	_, rest, found := strings.Cut(parts[2], "Query: ")
	if !found {
		return "", "", false
	}
	query, _, _ = strings.Cut(rest, "\nAnswer:")

	var lines []string
	for _, line := range strings.Split(parts[1], "\n") {
		if isHeader(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), strings.TrimSpace(query), true
}

func isHeader(line string) bool {
	for _, k := range headerKeys {
		if strings.HasPrefix(line, k+": ") {
			return true
		}
	}
	return false
}
