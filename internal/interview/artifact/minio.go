package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"assesy/internal/common/storage"
	pkgerrors "assesy/pkg/errors"
)

const defaultPrefix = "submissions/"

// ObjectStore keeps artifacts in an object storage bucket.
type ObjectStore struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
}

func NewObjectStore(ctx context.Context, client storage.ObjectStorage, bucket string) (*ObjectStore, error) {
	if client == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if err := client.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &ObjectStore{storage: client, bucket: bucket, prefix: defaultPrefix}, nil
}

func (s *ObjectStore) SaveDetails(ctx context.Context, token string, details json.RawMessage) error {
	data, err := prettyDetails(details)
	if err != nil {
		return err
	}
	if err := s.storage.PutObject(ctx, s.bucket, s.prefix+detailsKey(token), bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "upload submission details failed")
	}
	return nil
}

func (s *ObjectStore) SaveCode(ctx context.Context, token string, r io.Reader, size int64) error {
	if size <= 0 {
		size = -1
	}
	if err := s.storage.PutObject(ctx, s.bucket, s.prefix+codeKey(token), r, size, "application/zip"); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.StorageError, "upload submission code failed")
	}
	return nil
}

func (s *ObjectStore) ReadDetails(ctx context.Context, token string) (json.RawMessage, error) {
	obj, err := s.open(ctx, token, detailsKey(token))
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "read submission details failed")
	}
	return json.RawMessage(data), nil
}

func (s *ObjectStore) OpenCode(ctx context.Context, token string) (Archive, error) {
	return s.open(ctx, token, codeKey(token))
}

func (s *ObjectStore) HasCode(ctx context.Context, token string) (bool, error) {
	_, err := s.storage.StatObject(ctx, s.bucket, s.prefix+codeKey(token))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotFound) {
		return false, nil
	}
	return false, pkgerrors.Wrapf(err, pkgerrors.StorageError, "stat submission code failed")
}

func (s *ObjectStore) open(ctx context.Context, token, key string) (storage.Object, error) {
	obj, err := s.storage.OpenObject(ctx, s.bucket, s.prefix+key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, submissionNotFound(token)
		}
		return nil, pkgerrors.Wrapf(err, pkgerrors.StorageError, "open submission object failed")
	}
	return obj, nil
}

var _ Store = (*ObjectStore)(nil)
