package extractor

import (
	"context"
	"os/exec"
	"strings"
)

// CommandRunner runs an external program and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// pdfText asks pdftotext (poppler-utils) for the text layer. When the tool is
// missing, fails, or finds no text, the printable runs of data are used.
func (e *Extractor) pdfText(ctx context.Context, path string, data []byte) string {
	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil || strings.TrimSpace(string(out)) == "" {
		return printableText(data)
	}
	return strings.TrimSpace(string(out))
}
