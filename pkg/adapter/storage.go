package adapter

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
)

// Storage is the interface for session archive storage. Archives hold the
// full conversation metadata history, including superseded entities and
// every list snapshot, for offline debugging.
type Storage interface {
	// Put returns a writer for the archive object of a session
	Put(ctx context.Context, id model.SessionID) (io.WriteCloser, error)
	// Get loads a session archive
	Get(ctx context.Context, id model.SessionID) (io.ReadCloser, error)
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

func archiveKey(id model.SessionID) string {
	return "sessions/" + string(id) + ".json"
}

func (s *storageClient) Put(ctx context.Context, id model.SessionID) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(archiveKey(id))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, id model.SessionID) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(archiveKey(id))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session archive", goerr.Value("session_id", id))
	}

	return reader, nil
}
