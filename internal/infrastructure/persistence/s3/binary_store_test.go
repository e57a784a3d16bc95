package s3

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

var ctx = context.Background()

type storedObject struct {
	content     []byte
	contentType string
	metadata    map[string]string
}

type fakeObjectAPI struct {
	mu      sync.Mutex
	objects map[string]storedObject
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: map[string]storedObject{}}
}

func noSuchKey() error {
	return minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storedObject{
		content:     content,
		contentType: opts.ContentType,
		metadata:    opts.UserMetadata,
	}
	return minio.UploadInfo{Key: key, Size: size}, nil
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, noSuchKey()
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (f *fakeObjectAPI) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectAPI) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return minio.ObjectInfo{}, noSuchKey()
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(obj.content))}, nil
}

func TestBinaryStore_RoundTrip(t *testing.T) {
	api := newFakeObjectAPI()
	store := NewWithClient(api, "antbox")

	meta := repository.BinaryMetadata{Title: "report.pdf", Parent: "folder-1", Mimetype: "application/pdf"}
	require.NoError(t, store.Write(ctx, "acme", "n1", []byte("pdf bytes"), meta))

	content, err := store.Read(ctx, "acme", "n1")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), content)

	obj := api.objects["acme/n1"]
	assert.Equal(t, "application/pdf", obj.contentType)
	assert.Equal(t, "report.pdf", obj.metadata["title"])

	t.Run("write replaces", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "acme", "n1", []byte("v2"), meta))
		content, err := store.Read(ctx, "acme", "n1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), content)
	})

	t.Run("tenants do not collide", func(t *testing.T) {
		_, err := store.Read(ctx, "other", "n1")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNodeFileNotFound, apperrors.Code(err))
	})
}

func TestBinaryStore_MissingObject(t *testing.T) {
	store := NewWithClient(newFakeObjectAPI(), "antbox")

	_, err := store.Read(ctx, "acme", "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNodeFileNotFound, apperrors.Code(err))

	err = store.Delete(ctx, "acme", "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNodeFileNotFound, apperrors.Code(err))
}

func TestBinaryStore_Delete(t *testing.T) {
	api := newFakeObjectAPI()
	store := NewWithClient(api, "antbox")

	require.NoError(t, store.Write(ctx, "acme", "n1", []byte("x"), repository.BinaryMetadata{}))
	require.NoError(t, store.Delete(ctx, "acme", "n1"))

	_, err := store.Read(ctx, "acme", "n1")
	assert.True(t, apperrors.IsNotFound(err))
}
