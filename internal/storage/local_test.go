package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSave(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "http://localhost:8000/media/")
	require.NoError(t, err)

	url, err := l.Save(context.Background(), "government_ids", "7_scan.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/media/government_ids/7_scan.png", url)

	body, err := os.ReadFile(filepath.Join(root, "government_ids", "7_scan.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
}

func TestLocalSaveStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root, "/media")
	require.NoError(t, err)

	url, err := l.Save(context.Background(), "../../etc", "../passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/media/etc/passwd", url)
	assert.FileExists(t, filepath.Join(root, "etc", "passwd"))
}

func TestLocalSaveHonoursCancelledContext(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/media")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Save(ctx, "government_ids", "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
