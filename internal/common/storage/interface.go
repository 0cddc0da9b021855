package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the object operations used for submission artifacts.
type ObjectStorage interface {
	// EnsureBucket creates the bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads size bytes from reader. A size of -1 streams until EOF.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, size int64, contentType string) error

	// OpenObject opens an object for random access.
	// Caller must close the returned object.
	OpenObject(ctx context.Context, bucket, objectKey string) (Object, error)

	// StatObject returns metadata for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// Object is a readable, seekable handle on stored data.
type Object interface {
	io.Reader
	io.ReaderAt
	io.Closer
	Size() int64
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
