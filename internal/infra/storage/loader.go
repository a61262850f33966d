package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Supported reports whether a file name has an ingestible extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".md", ".txt":
		return true
	}
	return false
}

// extractText turns a raw document into plain text, one page per paragraph
// for PDFs.
func extractText(ctx context.Context, name string, data []byte) (string, error) {
	var (
		docs []schema.Document
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		docs, err = documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
	case ".md", ".txt":
		docs, err = documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	default:
		return "", fmt.Errorf("unsupported document type: %s", name)
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", name, err)
	}
	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := strings.TrimSpace(d.PageContent); s != "" {
			pages = append(pages, s)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
