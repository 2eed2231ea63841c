package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SafeJoin joins target under root/sub, refusing paths that climb out.
func SafeJoin(root, sub, target string) string {
	cleanTarget := filepath.Clean(target)
	if strings.Contains(cleanTarget, "..") || filepath.IsAbs(cleanTarget) {
		return ""
	}
	return filepath.Join(root, sub, cleanTarget)
}

// LocalStore keeps blobs in a directory served by the HTTP layer under
// BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := SafeJoin(s.Dir, "", key)
	if fullPath == "" {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", err
	}
	return s.BaseURL + "/" + filepath.ToSlash(filepath.Clean(key)), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath := SafeJoin(s.Dir, "", key)
	if fullPath == "" {
		return fmt.Errorf("invalid media key %q", key)
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
