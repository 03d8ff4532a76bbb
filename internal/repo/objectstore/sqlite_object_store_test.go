//go:build integration || all

package objectstore_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/infra/logging"

	. "github.com/mkrupp/mediakit/internal/repo/objectstore"
)

func setupSQLiteTestStore(t *testing.T, name string) *SQLiteStore {
	t.Helper()

	logging.Configure(context.TODO(), logging.LoggerConfig{
		OutputHandle: os.Stderr,
		Level:        "debug",
	}, "test")

	cfg := SQLiteStoreConfig{
		DatabasePath: filepath.Join(t.TempDir(), "objects.db"),
	}

	store, err := NewSQLiteStore(context.TODO(), name, cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLiteStore_StoreAndFetch(t *testing.T) {
	t.Parallel()

	store := setupSQLiteTestStore(t, "images")

	obj := domain.NewObject("uploads/123-abc.webp", []byte("webp bytes"), domain.ObjectMeta{
		ContentType:  "image/webp",
		OriginalName: "holiday.jpg",
	})

	if err := store.Store(context.TODO(), obj); err != nil {
		t.Fatalf("failed to store object: %v", err)
	}

	if !store.Exists(context.TODO(), obj.Key) {
		t.Error("expected object to exist after store")
	}

	got, err := store.Fetch(context.TODO(), obj.Key)
	if err != nil {
		t.Fatalf("failed to fetch object: %v", err)
	}

	if !bytes.Equal(got.Bytes(), obj.Bytes()) {
		t.Errorf("body mismatch: got %q, want %q", got.Bytes(), obj.Bytes())
	}

	if got.Meta != obj.Meta {
		t.Errorf("meta mismatch: got %+v, want %+v", got.Meta, obj.Meta)
	}
}

func TestSQLiteStore_Upsert(t *testing.T) {
	t.Parallel()

	store := setupSQLiteTestStore(t, "images-cache")
	key := domain.ObjectKey("transformed/x-q80-cover")

	for _, body := range []string{"first", "second"} {
		obj := domain.NewObject(key, []byte(body), domain.ObjectMeta{ContentType: "image/webp"})
		if err := store.Store(context.TODO(), obj); err != nil {
			t.Fatalf("failed to store object: %v", err)
		}
	}

	got, err := store.Fetch(context.TODO(), key)
	if err != nil {
		t.Fatalf("failed to fetch object: %v", err)
	}

	if string(got.Bytes()) != "second" {
		t.Errorf("expected upserted body, got %q", got.Bytes())
	}
}

func TestSQLiteStore_FetchMissing(t *testing.T) {
	t.Parallel()

	store := setupSQLiteTestStore(t, "images")

	_, err := store.Fetch(context.TODO(), "does-not-exist.jpg")
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestSQLiteStore_LogicalStoreIsolation(t *testing.T) {
	t.Parallel()

	// Two stores sharing one database file must not see each other's keys.
	dir := t.TempDir()
	cfg := SQLiteStoreConfig{DatabasePath: filepath.Join(dir, "objects.db")}

	images, err := NewSQLiteStore(context.TODO(), "images", cfg)
	if err != nil {
		t.Fatalf("failed to create images store: %v", err)
	}
	t.Cleanup(func() { _ = images.Close() })

	cache, err := NewSQLiteStore(context.TODO(), "images-cache", cfg)
	if err != nil {
		t.Fatalf("failed to create cache store: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	obj := domain.NewObject("shared-key", []byte("original"), domain.ObjectMeta{ContentType: "image/jpeg"})
	if err := images.Store(context.TODO(), obj); err != nil {
		t.Fatalf("failed to store object: %v", err)
	}

	if cache.Exists(context.TODO(), obj.Key) {
		t.Error("cache store sees key written to images store")
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	t.Parallel()

	store := setupSQLiteTestStore(t, "images")
	key := domain.ObjectKey("uploads/doomed.webp")

	obj := domain.NewObject(key, []byte("bytes"), domain.ObjectMeta{ContentType: "image/webp"})
	if err := store.Store(context.TODO(), obj); err != nil {
		t.Fatalf("failed to store object: %v", err)
	}

	if err := store.Delete(context.TODO(), key); err != nil {
		t.Fatalf("failed to delete object: %v", err)
	}

	if err := store.Delete(context.TODO(), key); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound on double delete, got %v", err)
	}
}
