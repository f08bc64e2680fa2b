package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore keeps uploaded files on the local filesystem. It is used when no
// Cloudinary credentials are configured.
type FSStore struct {
	base      string
	publicURL string
}

// NewFSStore creates the base directory if needed. publicURL is the prefix
// under which the files are served.
func NewFSStore(base, publicURL string) (*FSStore, error) {
	if base == "" {
		base = "./data/uploads"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FSStore{base: base, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *FSStore) Dir() string {
	return s.base
}

// Upload writes the reader under name and returns its public URL.
func (s *FSStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	key, err := cleanKey(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}

	return s.publicURL + "/" + key, nil
}

// Open returns the stored file for key.
func (s *FSStore) Open(name string) (io.ReadCloser, error) {
	key, err := cleanKey(name)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.base, filepath.FromSlash(key)))
}

// cleanKey rejects names that would escape the base directory.
func cleanKey(name string) (string, error) {
	key := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		return "", errors.New("empty key")
	}
	return key, nil
}
