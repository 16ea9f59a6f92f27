package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps uploads on disk under Root. They are served from BaseURL.
type Local struct {
	Root    string
	BaseURL string
}

func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root %s: %w", root, err)
	}
	return &Local{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes r to Root/dir/name and returns its public URL.
func (l *Local) Save(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir = filepath.Base(filepath.Clean("/" + dir))
	name = filepath.Base(name)
	if dir == "/" || name == "." || name == "/" {
		return "", fmt.Errorf("invalid upload path %q/%q", dir, name)
	}

	target := filepath.Join(l.Root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	f, err := os.CreateTemp(target, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(target, name)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return l.BaseURL + "/" + dir + "/" + name, nil
}
