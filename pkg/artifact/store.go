package artifact

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("object not found")

// Store is the object storage holding datasets, job results and compiled workflow results.
type Store interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PutFile(ctx context.Context, key, path string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	RemoveRecursive(ctx context.Context, prefix string) error
	PresignedGetURL(ctx context.Context, key string) (string, error)
	URI(key string) string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type MinioStore struct {
	cfg    *storeConfig
	client *minio.Client
}

func NewMinioStore(opts ...Opts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the object store client")
	}

	return &MinioStore{cfg: cfg, client: client}, nil
}

func (s *MinioStore) Bucket() string {
	return s.cfg.bucket
}

func (s *MinioStore) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.cfg.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrapf(err, "failed to put object %s", key)
	}
	return nil
}

func (s *MinioStore) PutFile(ctx context.Context, key, path string) error {
	if _, err := s.client.FPutObject(ctx, s.cfg.bucket, key, path, minio.PutObjectOptions{}); err != nil {
		return errors.Wrapf(err, "failed to upload %s to %s", path, key)
	}
	return nil
}

func (s *MinioStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.cfg.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(err, key)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, s.wrap(err, key)
	}
	return data, nil
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if err := s.wrap(err, key); !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return false, nil
}

func (s *MinioStore) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	for obj := range s.client.ListObjects(ctx, s.cfg.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(obj.Err, "failed to list objects under %s", prefix)
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objects, nil
}

// RemoveRecursive removes every object under prefix. It returns ErrNotFound when the prefix is empty.
func (s *MinioStore) RemoveRecursive(ctx context.Context, prefix string) error {
	objects, err := s.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return errors.Wrapf(ErrNotFound, "nothing under %s", prefix)
	}

	toRemove := make(chan minio.ObjectInfo, len(objects))
	for _, o := range objects {
		toRemove <- minio.ObjectInfo{Key: o.Key}
	}
	close(toRemove)

	for rErr := range s.client.RemoveObjects(ctx, s.cfg.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return errors.Wrapf(rErr.Err, "failed to remove %s", rErr.ObjectName)
		}
	}

	zap.S().Named("artifact").Debugw("removed objects", "prefix", prefix, "count", len(objects))
	return nil
}

func (s *MinioStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.cfg.bucket, key, s.cfg.urlExpiry, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to presign %s", key)
	}
	return u.String(), nil
}

func (s *MinioStore) URI(key string) string {
	return uriScheme + s.cfg.bucket + "/" + key
}

func (s *MinioStore) wrap(err error, key string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, "%s", key)
	}
	return errors.Wrapf(err, "failed to read object %s", key)
}
