// Package s3 implements the binary store on any S3-compatible object store.
// Objects are keyed tenant/uuid; the node record remains the source of truth
// for names and mimetypes, the object metadata is advisory.
package s3

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// ObjectAPI is the slice of the object store API the store uses; tests
// substitute a fake.
type ObjectAPI interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// minioAdapter narrows *minio.Client to ObjectAPI; GetObject's concrete
// return type keeps the client from satisfying the interface directly.
type minioAdapter struct {
	*minio.Client
}

func (a minioAdapter) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucket, key, opts)
}

// BinaryStore keeps node binaries in one bucket.
type BinaryStore struct {
	client ObjectAPI
	bucket string
}

// Options configures the S3 connection.
type Options struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// New connects to the object store. Plain http endpoints disable TLS, which
// keeps local minio setups working.
func New(opts Options) (*BinaryStore, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, "parsing s3 endpoint")
	}

	client, err := minio.New(u.Host, &minio.Options{
		Region: opts.Region,
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: u.Scheme != "http",
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "creating s3 client")
	}
	return &BinaryStore{client: minioAdapter{client}, bucket: opts.Bucket}, nil
}

// NewWithClient builds a store over an existing client, for tests.
func NewWithClient(client ObjectAPI, bucket string) *BinaryStore {
	return &BinaryStore{client: client, bucket: bucket}
}

var _ repository.BinaryStore = (*BinaryStore)(nil)

// Write uploads the stream, replacing any previous object under the uuid.
func (s *BinaryStore) Write(ctx context.Context, tenant, uuid string, content []byte, meta repository.BinaryMetadata) error {
	contentType := meta.Mimetype
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(tenant, uuid),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"title":  meta.Title,
				"parent": meta.Parent,
			},
		})
	if err != nil {
		return apperrors.Wrap(err, "uploading binary")
	}
	return nil
}

// Read downloads the object; a missing key reports NodeFileNotFound. The
// object store surfaces missing keys lazily on the first read, so both the
// open and the read are checked.
func (s *BinaryStore) Read(ctx context.Context, tenant, uuid string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(tenant, uuid), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.NewNodeFileNotFound(uuid)
		}
		return nil, apperrors.Wrap(err, "downloading binary")
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.NewNodeFileNotFound(uuid)
		}
		return nil, apperrors.Wrap(err, "downloading binary")
	}
	return content, nil
}

// Delete removes the object; a missing key reports NodeFileNotFound so the
// cascade logic can tell absence from transport failures.
func (s *BinaryStore) Delete(ctx context.Context, tenant, uuid string) error {
	key := objectKey(tenant, uuid)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return domain.NewNodeFileNotFound(uuid)
		}
		return apperrors.Wrap(err, "checking binary")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.Wrap(err, "deleting binary")
	}
	return nil
}

func objectKey(tenant, uuid string) string {
	return tenant + "/" + uuid
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
