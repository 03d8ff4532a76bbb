package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/mediakit/internal/domain"
)

// ErrUnknownDriver is returned when the configured store driver is not recognized.
var ErrUnknownDriver = errors.New("unknown object store driver")

// Store defines the interface for key-value object storage with metadata.
// Implementations must provide at-least atomic single-key get/set semantics;
// no cross-key transactions are required.
type Store interface {
	// Exists checks if an object with the given key exists.
	Exists(ctx context.Context, key domain.ObjectKey) bool

	// Fetch retrieves an object and its metadata by key.
	// Returns domain.ErrObjectNotFound if no object exists under the key.
	Fetch(ctx context.Context, key domain.ObjectKey) (*domain.Object, error)

	// Store persists an object together with its metadata.
	// Storing under an existing key overwrites; callers rely on keys being
	// unique per upload, so an overwrite only ever happens when concurrent
	// writers race on an identical derivative.
	Store(ctx context.Context, obj *domain.Object) error

	// Delete removes the object with the given key.
	// Returns an error if the object doesn't exist or if deletion fails.
	Delete(ctx context.Context, key domain.ObjectKey) error
}

// Factory creates a Store for the given logical store name
// (e.g. "images", "images-cache").
// Returns an error if initialization fails.
type Factory func(ctx context.Context, name string) (Store, error)

// Config selects and configures the object store backend.
type Config struct {
	// Driver selects the backend: "filesystem", "minio" or "sqlite".
	Driver string `env:"DRIVER" default:"filesystem"`

	FileSystem FileSystemStoreConfig `envPrefix:"FS_"`
	Minio      MinioStoreConfig      `envPrefix:"MINIO_"`
	SQLite     SQLiteStoreConfig     `envPrefix:"SQLITE_"`
}

// NewFactory returns a Factory for the configured driver.
func NewFactory(cfg Config) Factory {
	return func(ctx context.Context, name string) (Store, error) {
		switch cfg.Driver {
		case "filesystem":
			return NewFileSystemStore(ctx, name, cfg.FileSystem)
		case "minio":
			return NewMinioStore(ctx, name, cfg.Minio)
		case "sqlite":
			return NewSQLiteStore(ctx, name, cfg.SQLite)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
		}
	}
}
