package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/infra/logging"
)

const minioMetaOriginalName = "Original-Name"

// MinioStoreConfig holds configuration for the MinIO/S3-backed object store.
type MinioStoreConfig struct {
	Endpoint  string `env:"ENDPOINT"  default:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" default:"minioadmin"`
	SecretKey string `env:"SECRET_KEY" default:"minioadmin"`
	UseSSL    bool   `env:"USE_SSL"   default:"false"`

	// BucketPrefix is prepended to the logical store name to build the
	// bucket name, e.g. prefix "mediakit-" and store "images" yields the
	// bucket "mediakit-images".
	BucketPrefix string `env:"BUCKET_PREFIX" default:"mediakit-"`
}

// MinioStore implements Store on top of a MinIO/S3 bucket.
// Each logical store maps to its own bucket; object metadata rides on the
// object's content type and user metadata.
type MinioStore struct {
	client *minio.Client
	bucket string
	log    logging.Logger
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore creates a new MinioStore for the given logical store name,
// creating the backing bucket if it does not exist yet.
func NewMinioStore(
	ctx context.Context,
	name string,
	cfg MinioStoreConfig,
) (*MinioStore, error) {
	bucket := cfg.BucketPrefix + name

	log := logging.GetLogger("repo.objectstore.minio_store").With(
		logging.Group("store",
			"endpoint", cfg.Endpoint,
			"bucket", bucket,
		),
	)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new client: %w", err)
	}

	store := &MinioStore{
		client: client,
		bucket: bucket,
		log:    log,
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	log.DebugContext(ctx, "init storage")

	return store, nil
}

func (ms *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := ms.client.BucketExists(ctx, ms.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}

	if exists {
		return nil
	}

	if err := ms.client.MakeBucket(ctx, ms.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}

	return nil
}

func (ms *MinioStore) Exists(ctx context.Context, key domain.ObjectKey) bool {
	_, err := ms.client.StatObject(ctx, ms.bucket, key.String(), minio.StatObjectOptions{})

	return err == nil
}

func (ms *MinioStore) Fetch(ctx context.Context, key domain.ObjectKey) (obj *domain.Object, err error) {
	defer func() {
		log := ms.log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "object fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "object fetched", "size", obj.Size())
		}
	}()

	reader, err := ms.client.GetObject(ctx, ms.bucket, key.String(), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer reader.Close()

	info, err := reader.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat object: %w", ms.normalizeErr(err))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", ms.normalizeErr(err))
	}

	return domain.NewObject(key, body, domain.ObjectMeta{
		ContentType:  info.ContentType,
		OriginalName: info.UserMetadata[minioMetaOriginalName],
	}), nil
}

func (ms *MinioStore) Store(ctx context.Context, obj *domain.Object) (err error) {
	defer func() {
		log := ms.log.With(logging.Group("object", "key", obj.Key))
		if err != nil {
			log.ErrorContext(ctx, "object store failed", "error", err)
		} else {
			log.DebugContext(ctx, "object stored", "size", obj.Size())
		}
	}()

	opts := minio.PutObjectOptions{ //nolint:exhaustruct
		ContentType: obj.Meta.ContentType,
	}
	if obj.Meta.OriginalName != "" {
		opts.UserMetadata = map[string]string{minioMetaOriginalName: obj.Meta.OriginalName}
	}

	if _, err := ms.client.PutObject(
		ctx, ms.bucket, obj.Key.String(),
		bytes.NewReader(obj.Body), obj.Size(), opts,
	); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

func (ms *MinioStore) Delete(ctx context.Context, key domain.ObjectKey) (err error) {
	defer func() {
		log := ms.log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "object delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "object deleted")
		}
	}()

	if !ms.Exists(ctx, key) {
		return domain.ErrObjectNotFound
	}

	if err := ms.client.RemoveObject(ctx, ms.bucket, key.String(), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	return nil
}

// normalizeErr maps the S3 "NoSuchKey" error onto domain.ErrObjectNotFound
// so callers can dispatch with errors.Is regardless of driver.
func (ms *MinioStore) normalizeErr(err error) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return errors.Join(domain.ErrObjectNotFound, err)
	}

	return err
}
