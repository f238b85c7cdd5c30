package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

const deleteConcurrency = 8

// Config options for the Google Cloud Storage backend
type Config struct {
	// BucketPrefix is prepended to logical bucket names. Underscores become
	// hyphens, so "profile_images" maps to "<prefix>profile-images".
	BucketPrefix string
	// BucketNames overrides the mapping for individual logical buckets.
	BucketNames map[string]string

	// CredentialsFile is a service account key file. Empty means application
	// default credentials.
	CredentialsFile string
	// EmulatorHost points the client at a fake-gcs-server style emulator,
	// e.g. "localhost:4443" or "http://localhost:4443".
	EmulatorHost string
}

// Backend is a Google Cloud Storage implementation of the simpleaccount.BlobStore interface
type Backend struct {
	client *storage.Client
	config Config
}

// New creates a new GCS storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	var opts []option.ClientOption
	if endpoint := emulatorEndpoint(config.EmulatorHost); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	} else {
		if config.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
		}
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Backend{client: client, config: config}, nil
}

// emulatorEndpoint turns an emulator host such as "localhost:4443" into the
// JSON API endpoint the client talks to.
func emulatorEndpoint(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host + "/storage/v1/"
}

// Close releases the underlying client
func (b *Backend) Close() error {
	return b.client.Close()
}

// BucketName returns the GCS bucket backing a logical bucket.
func (b *Backend) BucketName(bucket string) string {
	if name, ok := b.config.BucketNames[bucket]; ok && name != "" {
		return name
	}
	return b.config.BucketPrefix + strings.ReplaceAll(bucket, "_", "-")
}

// Upload streams reader into bucket/key
func (b *Backend) Upload(ctx context.Context, bucket, key string, reader io.Reader) error {
	w := b.client.Bucket(b.BucketName(bucket)).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// List returns the object names under prefix. A missing bucket holds no keys.
func (b *Backend) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := b.client.Bucket(b.BucketName(bucket)).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Delete removes keys concurrently. Objects that no longer exist are skipped.
func (b *Backend) Delete(ctx context.Context, bucket string, keys []string) error {
	handle := b.client.Bucket(b.BucketName(bucket))

	var mu sync.Mutex
	failed := make(map[string]error)

	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			err := handle.Object(key).Delete(ctx)
			if err == nil || errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
				return nil
			}
			mu.Lock()
			failed[key] = fmt.Errorf("failed to delete GCS object: %w", err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return &simpleaccount.BlobDeleteError{Bucket: bucket, Failed: failed}
	}
	return nil
}
