package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirDocumentsReadsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ipc.md"), []byte("## 153A\nPromoting enmity."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "acts", "scst.txt"), []byte("Atrocities Act."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.docx"), []byte("skip"), 0o600))

	docs, err := NewDir(root).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "scst.txt", docs[0].Name)
	assert.Equal(t, "Atrocities Act.", docs[0].Content)
	assert.Equal(t, "ipc.md", docs[1].Name)
	assert.Contains(t, docs[1].Content, "Promoting enmity.")
}

func TestDirMissingRoot(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "nope")).Documents(context.Background())
	assert.Error(t, err)
}

func TestSupportedAndContentType(t *testing.T) {
	assert.True(t, Supported("IPC.PDF"))
	assert.True(t, Supported("rules.md"))
	assert.False(t, Supported("video.mp4"))
	assert.Equal(t, "application/pdf", contentType("a.pdf"))
	assert.Equal(t, "text/markdown", contentType("a.md"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}

func TestExtractTextRejectsUnknownType(t *testing.T) {
	_, err := extractText(context.Background(), "a.docx", []byte("x"))
	assert.Error(t, err)
}
