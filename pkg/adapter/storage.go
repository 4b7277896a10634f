package adapter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Storage is the interface for chat history blob persistence
type Storage interface {
	// Put returns a writer to save a history blob to storage
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get loads a history blob from storage
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	writer := obj.NewWriter(ctx)
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

// localStorage implements Storage on the local filesystem, for development
// deployments without a bucket.
type localStorage struct {
	dir string
}

// NewLocalStorage creates a Storage rooted at dir, creating it if needed.
func NewLocalStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &localStorage{dir: dir}, nil
}

// keyPath maps a blob key to a file path, flattening separators so keys like
// "histories/guest@example.com.json" stay inside the root directory.
func (s *localStorage) keyPath(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe)
}

func (s *localStorage) Put(_ context.Context, key string) (io.WriteCloser, error) {
	f, err := os.Create(s.keyPath(key))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create history file", goerr.V("key", key))
	}
	return f, nil
}

func (s *localStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.keyPath(key))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open history file", goerr.V("key", key))
	}
	return f, nil
}
