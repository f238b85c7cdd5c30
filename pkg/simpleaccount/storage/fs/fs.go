package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

// Backend is a filesystem implementation of the simpleaccount.BlobStore
// interface. Each bucket is a directory under BaseDir.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// Upload writes the reader's content to bucket/key
func (b *Backend) Upload(ctx context.Context, bucket, key string, reader io.Reader) error {
	filePath, err := b.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// List walks the bucket directory and returns the slash separated keys
// starting with prefix
func (b *Backend) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	root, err := b.bucketPath(bucket)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes each key. Missing files are ignored and directories left
// empty are pruned.
func (b *Backend) Delete(ctx context.Context, bucket string, keys []string) error {
	root, err := b.bucketPath(bucket)
	if err != nil {
		return err
	}

	failed := make(map[string]error)
	for _, key := range keys {
		filePath, err := b.objectPath(bucket, key)
		if err != nil {
			failed[key] = err
			continue
		}
		if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			failed[key] = err
			continue
		}
		pruneEmptyDirs(root, filepath.Dir(filePath))
	}

	if len(failed) > 0 {
		return &simpleaccount.BlobDeleteError{Bucket: bucket, Failed: failed}
	}
	return nil
}

func (b *Backend) bucketPath(bucket string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("%w: bucket %q", simpleaccount.ErrInvalidBlobKey, bucket)
	}
	return filepath.Join(b.baseDir, bucket), nil
}

func (b *Backend) objectPath(bucket, key string) (string, error) {
	root, err := b.bucketPath(bucket)
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("%w: key %q", simpleaccount.ErrInvalidBlobKey, key)
	}
	return filepath.Join(root, filepath.FromSlash(key)), nil
}

// pruneEmptyDirs removes dir and its parents up to, not including, root while
// they are empty.
func pruneEmptyDirs(root, dir string) {
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
