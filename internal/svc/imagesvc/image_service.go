package imagesvc

import (
	"context"

	"github.com/mkrupp/mediakit/internal/domain"
)

// CacheStatus reports whether a served derivative came from the cache.
type CacheStatus string

const (
	// CacheStatusNone marks responses that never touch the derivative cache,
	// such as originals served without transformation.
	CacheStatusNone CacheStatus = ""

	// CacheStatusHit marks derivatives served from the cache.
	CacheStatusHit CacheStatus = "HIT"

	// CacheStatusMiss marks derivatives computed for this request.
	CacheStatusMiss CacheStatus = "MISS"
)

// ServeResult is the outcome of serving an image: the object to send and
// its cache status.
type ServeResult struct {
	Object *domain.Object
	Cache  CacheStatus
}

// ImageService defines the interface for serving and ingesting media objects.
type ImageService interface {
	// Serve retrieves the object with the given key, applying the transform
	// options when they request one. Transformed derivatives are cached;
	// the result reports whether the cache was hit.
	// Returns domain.ErrObjectNotFound if the object does not exist.
	Serve(ctx context.Context, key domain.ObjectKey, opts domain.TransformOptions) (ServeResult, error)

	// Ingest validates and stores an upload, re-encoding images where
	// applicable, and returns the generated key and public URL.
	Ingest(ctx context.Context, upload domain.Upload) (domain.UploadResult, error)
}
