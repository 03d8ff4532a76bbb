package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/infra/logging"
	"github.com/mkrupp/mediakit/internal/util/encoding"
)

const (
	dirPrefixLength = 2 // 16^2 = 256 directories
	dirPrefixDepth  = 2 // 256^2 = 65,536 directories
)

// FileSystemStoreConfig holds configuration for the filesystem-based object store.
type FileSystemStoreConfig struct {
	// Basedir is the root directory for object storage
	Basedir string `env:"BASEDIR" default:"var/storage/objects"`
}

// FileSystemStore implements Store using the local filesystem.
// Object keys are hashed into a sharded directory hierarchy to keep directory
// sizes bounded; the payload lives in a .bin file with a sidecar .json file
// holding the key and metadata.
type FileSystemStore struct {
	name string
	cfg  FileSystemStoreConfig
	log  logging.Logger
}

var _ Store = (*FileSystemStore)(nil)

type fileSystemSidecar struct {
	Key  domain.ObjectKey  `json:"key"`
	Meta domain.ObjectMeta `json:"meta"`
}

// NewFileSystemStore creates a new FileSystemStore for the given logical
// store name. The store's objects live under <basedir>/<name>/.
// Returns an error if the base directory cannot be created.
func NewFileSystemStore(
	ctx context.Context,
	name string,
	cfg FileSystemStoreConfig,
) (*FileSystemStore, error) {
	log := logging.GetLogger("repo.objectstore.filesystem_store").With(
		logging.Group("store",
			"basedir", cfg.Basedir,
			"name", name,
		),
	)

	store := &FileSystemStore{
		name: name,
		cfg:  cfg,
		log:  log,
	}

	if err := os.MkdirAll(filepath.Join(cfg.Basedir, name), 0o755); err != nil {
		log.ErrorContext(ctx, "init storage failed", "error", err)

		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	log.DebugContext(ctx, "init storage")

	return store, nil
}

func (fsStore *FileSystemStore) Exists(ctx context.Context, key domain.ObjectKey) bool {
	_, err := os.Stat(fsStore.dataFilename(key))

	return err == nil
}

func (fsStore *FileSystemStore) Fetch(ctx context.Context, key domain.ObjectKey) (obj *domain.Object, err error) {
	defer func() {
		log := fsStore.log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "object fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "object fetched", "size", obj.Size())
		}
	}()

	body, err := os.ReadFile(fsStore.dataFilename(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read data: %w", errors.Join(domain.ErrObjectNotFound, err))
		}

		return nil, fmt.Errorf("read data: %w", err)
	}

	sidecarBytes, err := os.ReadFile(fsStore.metaFilename(key))
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	var sidecar fileSystemSidecar
	if err := json.Unmarshal(sidecarBytes, &sidecar); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}

	return domain.NewObject(key, body, sidecar.Meta), nil
}

func (fsStore *FileSystemStore) Store(ctx context.Context, obj *domain.Object) (err error) {
	filename := fsStore.dataFilename(obj.Key)

	defer func() {
		log := fsStore.log.With(logging.Group("object", "key", obj.Key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "object store failed", "error", err)
		} else {
			log.DebugContext(ctx, "object stored", "size", obj.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	sidecarBytes, err := json.Marshal(fileSystemSidecar{Key: obj.Key, Meta: obj.Meta})
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	if err := os.WriteFile(fsStore.metaFilename(obj.Key), sidecarBytes, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	// Data file is written last so Exists never observes an object whose
	// metadata is still missing.
	if err := os.WriteFile(filename, obj.Body, 0o644); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	return nil
}

func (fsStore *FileSystemStore) Delete(ctx context.Context, key domain.ObjectKey) (err error) {
	defer func() {
		log := fsStore.log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "object delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "object deleted")
		}
	}()

	if err := os.Remove(fsStore.dataFilename(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove data: %w", errors.Join(domain.ErrObjectNotFound, err))
		}

		return fmt.Errorf("remove data: %w", err)
	}

	if err := os.Remove(fsStore.metaFilename(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove meta: %w", err)
	}

	return nil
}

// basename hashes the object key into a fixed-width name and shards it into
// a directory structure like:
//
//	<basedir>/<store>/5f/56/5f56692f0df9ff68....
//
// Hashing makes arbitrary path-like keys safe to store without escaping.
func (fsStore *FileSystemStore) basename(key domain.ObjectKey) string {
	hash := sha256.Sum256([]byte(key))
	name := encoding.EncodeCrockfordB32LC(hash[:])

	parts := []string{fsStore.cfg.Basedir, fsStore.name}
	for i := 0; i < dirPrefixDepth*dirPrefixLength; i += dirPrefixLength {
		parts = append(parts, name[i:i+dirPrefixLength])
	}

	return filepath.Join(append(parts, name)...)
}

func (fsStore *FileSystemStore) dataFilename(key domain.ObjectKey) string {
	return fsStore.basename(key) + ".bin"
}

func (fsStore *FileSystemStore) metaFilename(key domain.ObjectKey) string {
	return fsStore.basename(key) + ".json"
}
