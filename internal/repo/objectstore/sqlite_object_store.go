package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/infra/logging"
)

// SQLiteStoreConfig holds configuration for the SQLite-backed object store.
type SQLiteStoreConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/objects.db"`
}

// SQLiteStore implements Store using a single SQLite database. All logical
// stores share one objects table, discriminated by the store column.
// Intended for single-node deployments where running MinIO is overkill.
type SQLiteStore struct {
	db        *sql.DB
	name      string
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore for the given logical store name.
// It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteStore(
	ctx context.Context,
	name string,
	cfg SQLiteStoreConfig,
) (*SQLiteStore, error) {
	log := logging.GetLogger("repo.objectstore.sqlite_store").With(
		logging.Group("store", "path", cfg.DatabasePath, "name", name),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	log.DebugContext(ctx, "init storage")

	return &SQLiteStore{
		db:        db,
		name:      name,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS objects (
			store         TEXT    NOT NULL,
			key           TEXT    NOT NULL,
			body          BLOB    NOT NULL,
			content_type  TEXT    NOT NULL,
			original_name TEXT    NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			PRIMARY KEY (store, key)
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (ss *SQLiteStore) Exists(ctx context.Context, key domain.ObjectKey) bool {
	var one int

	err := ss.db.QueryRowContext(ctx,
		"SELECT 1 FROM objects WHERE store = ? AND key = ?",
		ss.name, key.String(),
	).Scan(&one)

	return err == nil
}

func (ss *SQLiteStore) Fetch(ctx context.Context, key domain.ObjectKey) (obj *domain.Object, err error) {
	defer func() {
		log := ss.log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "object fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "object fetched", "size", obj.Size())
		}
	}()

	var (
		body         []byte
		contentType  string
		originalName string
	)

	err = ss.db.QueryRowContext(ctx,
		"SELECT body, content_type, original_name FROM objects WHERE store = ? AND key = ?",
		ss.name, key.String(),
	).Scan(&body, &contentType, &originalName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrObjectNotFound, err)
		}

		return nil, fmt.Errorf("query object: %w", err)
	}

	return domain.NewObject(key, body, domain.ObjectMeta{
		ContentType:  contentType,
		OriginalName: originalName,
	}), nil
}

func (ss *SQLiteStore) Store(ctx context.Context, obj *domain.Object) (err error) {
	defer func() {
		log := ss.log.With(logging.Group("object", "key", obj.Key))
		if err != nil {
			log.ErrorContext(ctx, "object store failed", "error", err)
		} else {
			log.DebugContext(ctx, "object stored", "size", obj.Size())
		}
	}()

	ss.writeLock.Lock()
	defer ss.writeLock.Unlock()

	if _, err := ss.db.ExecContext(ctx, `
		INSERT INTO objects (store, key, body, content_type, original_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (store, key) DO UPDATE SET
			body = excluded.body,
			content_type = excluded.content_type,
			original_name = excluded.original_name
	`,
		ss.name, obj.Key.String(), obj.Body,
		obj.Meta.ContentType, obj.Meta.OriginalName,
		time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert object: %w", err)
	}

	return nil
}

func (ss *SQLiteStore) Delete(ctx context.Context, key domain.ObjectKey) (err error) {
	defer func() {
		log := ss.log.With(logging.Group("object", "key", key))
		if err != nil {
			log.ErrorContext(ctx, "object delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "object deleted")
		}
	}()

	ss.writeLock.Lock()
	defer ss.writeLock.Unlock()

	result, err := ss.db.ExecContext(ctx,
		"DELETE FROM objects WHERE store = ? AND key = ?",
		ss.name, key.String(),
	)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrObjectNotFound
	}

	return nil
}

// Close closes the underlying database connection.
func (ss *SQLiteStore) Close() error {
	if err := ss.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
