package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

// Dir reads the corpus from a local folder, recursively.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir { return &Dir{Root: root} }

// Files lists the ingestible files under Root in lexical order.
func (d *Dir) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.Root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && Supported(e.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.Root, err)
	}
	sort.Strings(files)
	return files, nil
}

func (d *Dir) Documents(ctx context.Context) ([]knowledge.Document, error) {
	files, err := d.Files()
	if err != nil {
		return nil, err
	}
	docs := make([]knowledge.Document, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		text, err := extractText(ctx, path, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, knowledge.Document{Name: filepath.Base(path), Content: text})
	}
	return docs, nil
}
