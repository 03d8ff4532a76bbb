package imagesvc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/infra/logging"
	"github.com/mkrupp/mediakit/internal/repo/objectstore"
	"github.com/mkrupp/mediakit/internal/util/encoding"
	"github.com/mkrupp/mediakit/internal/util/uuid"
)

// BlobImageService implements ImageService on top of two object stores:
// one holding as-uploaded originals and one holding transformed derivatives.
type BlobImageService struct {
	images  objectstore.Store
	cache   objectstore.Store
	cfg     ImageConfig
	log     logging.Logger
	pending sync.WaitGroup
}

var _ ImageService = (*BlobImageService)(nil)

// NewBlobImageService creates a new BlobImageService with the given
// configuration, using the store factory to open the originals store and
// the derivative cache store.
// Returns an error if store initialization fails.
func NewBlobImageService(
	ctx context.Context,
	storeFactory objectstore.Factory,
	cfg ImageConfig,
) (*BlobImageService, error) {
	images, err := storeFactory(ctx, domain.StoreImages)
	if err != nil {
		return nil, fmt.Errorf("new images store: %w", err)
	}

	cache, err := storeFactory(ctx, domain.StoreImagesCache)
	if err != nil {
		return nil, fmt.Errorf("new cache store: %w", err)
	}

	//nolint:exhaustruct
	return &BlobImageService{
		images: images,
		cache:  cache,
		cfg:    cfg,
		log:    logging.GetLogger("svc.imagesvc.blob_image_service"),
	}, nil
}

// Serve implements ImageService.Serve.
//
// For requests that need a transform, the derivative cache is consulted
// before the original is fetched, so cache hits never read the original.
// Freshly computed derivatives are written back to the cache asynchronously;
// the response does not wait for the write.
func (imageSvc *BlobImageService) Serve(
	ctx context.Context,
	key domain.ObjectKey,
	opts domain.TransformOptions,
) (res ServeResult, err error) {
	log := imageSvc.log.With(logging.Group("image", "key", key))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image serve failed", "error", err)
		} else {
			log.DebugContext(ctx, "image served")
		}
	}()

	if key == "" {
		return ServeResult{}, domain.ErrNoObjectKey
	}

	if !opts.NeedsTransform() {
		original, err := imageSvc.images.Fetch(ctx, key)
		if err != nil {
			return ServeResult{}, fmt.Errorf("fetch original: %w", err)
		}

		return ServeResult{Object: original, Cache: CacheStatusNone}, nil
	}

	cacheKey := DeriveCacheKey(key, opts)
	log = log.With(logging.Group("image", "cacheKey", cacheKey))

	if imageSvc.cache.Exists(ctx, cacheKey) {
		cached, err := imageSvc.cache.Fetch(ctx, cacheKey)
		if err == nil {
			return ServeResult{Object: cached, Cache: CacheStatusHit}, nil
		}

		// A broken cache entry falls through to a fresh transform.
		log.WarnContext(ctx, "cache fetch failed", "error", err)
	}

	original, err := imageSvc.images.Fetch(ctx, key)
	if err != nil {
		return ServeResult{}, fmt.Errorf("fetch original: %w", err)
	}

	if !transformableTypes[original.Meta.ContentType] {
		// Videos and other opaque payloads are streamed through untouched.
		return ServeResult{Object: original, Cache: CacheStatusNone}, nil
	}

	transformed, outType, err := imageSvc.transformImage(ctx, original.Bytes(), original.Meta.ContentType, opts)
	if err != nil {
		return ServeResult{}, fmt.Errorf("transform image: %w", err)
	}

	derivative := domain.NewObject(cacheKey, transformed, domain.ObjectMeta{
		ContentType: outType,
	})

	imageSvc.storeDerivative(derivative)

	served := domain.NewObject(key, transformed, derivative.Meta)

	return ServeResult{Object: served, Cache: CacheStatusMiss}, nil
}

// Ingest implements ImageService.Ingest.
//
// Images other than GIFs are downscaled to fit the configured maximum
// dimension and re-encoded as WebP. GIFs and videos are stored byte-for-byte
// to preserve animation frames and avoid video processing.
func (imageSvc *BlobImageService) Ingest(
	ctx context.Context,
	upload domain.Upload,
) (res domain.UploadResult, err error) {
	log := imageSvc.log.With(logging.Group("upload",
		"filename", upload.Filename,
		"type", upload.ContentType,
		"size", upload.Size,
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "upload ingest failed", "error", err)
		} else {
			log.DebugContext(ctx, "upload ingested", logging.Group("upload", "key", res.Key))
		}
	}()

	var (
		isImage = imageUploadTypes[upload.ContentType]
		isVideo = videoUploadTypes[upload.ContentType]
	)

	if !isImage && !isVideo {
		return domain.UploadResult{}, fmt.Errorf(
			"%w: %q", domain.ErrUploadTypeNotSupported, upload.ContentType,
		)
	}

	maxSize := imageSvc.cfg.MaxImageSize
	if isVideo {
		maxSize = imageSvc.cfg.MaxVideoSize
	}

	if upload.Size > maxSize || int64(len(upload.Body)) > maxSize {
		return domain.UploadResult{}, fmt.Errorf(
			"%w: %d > %d", domain.ErrUploadTooLarge, upload.Size, maxSize,
		)
	}

	var (
		body  = upload.Body
		ctype = upload.ContentType
		ext   = uploadExtension(upload.Filename, isVideo)
	)

	if isImage && upload.ContentType != MIMETypeGIF {
		//nolint:exhaustruct
		body, ctype, err = imageSvc.transformImage(ctx, upload.Body, upload.ContentType, domain.TransformOptions{
			Width:   imageSvc.cfg.IngestMaxDimension,
			Height:  imageSvc.cfg.IngestMaxDimension,
			Quality: imageSvc.cfg.IngestQuality,
			Format:  domain.FormatWebP,
			Fit:     domain.FitInside,
		})
		if err != nil {
			return domain.UploadResult{}, fmt.Errorf("transform image: %w", err)
		}

		ext = "webp"
	}

	key, err := newUploadKey(ext)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("new upload key: %w", err)
	}

	object := domain.NewObject(key, body, domain.ObjectMeta{
		ContentType:  ctype,
		OriginalName: upload.Filename,
	})

	if err := imageSvc.images.Store(ctx, object); err != nil {
		return domain.UploadResult{}, fmt.Errorf("store: %w", err)
	}

	return domain.UploadResult{
		Key: key,
		URL: "/images/" + key.String(),
	}, nil
}

// Flush waits for all outstanding asynchronous cache writes to complete.
// Intended for shutdown and tests.
func (imageSvc *BlobImageService) Flush() {
	imageSvc.pending.Wait()
}

// storeDerivative persists a derivative to the cache without blocking the
// caller. Failures are logged and otherwise ignored; the derivative is
// simply recomputed on the next miss.
func (imageSvc *BlobImageService) storeDerivative(derivative *domain.Object) {
	imageSvc.pending.Add(1)

	go func() {
		defer imageSvc.pending.Done()

		// Detached from the request context so the write survives the response.
		ctx := context.Background()

		defer func() {
			if r := recover(); r != nil {
				imageSvc.log.ErrorContext(ctx, "cache store panicked", "error", r)
			}
		}()

		if err := imageSvc.cache.Store(ctx, derivative); err != nil {
			imageSvc.log.ErrorContext(ctx, "cache store failed",
				logging.Group("image", "cacheKey", derivative.Key), "error", err)
		}
	}()
}

func (imageSvc *BlobImageService) transformImage(
	ctx context.Context,
	data []byte,
	ctype string,
	opts domain.TransformOptions,
) (transformed []byte, outType string, err error) {
	log := imageSvc.log.With(logging.Group("image",
		"type", ctype,
		logging.Group("target",
			"width", opts.Width,
			"height", opts.Height,
			"quality", opts.Quality,
			"format", opts.Format,
			"fit", opts.Fit,
		),
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image transform failed", "error", err)
		} else {
			log.DebugContext(ctx, "image transformed", logging.Group("image", "outType", outType))
		}
	}()

	return transformImage(data, ctype, opts, imageSvc.cfg.Interpolator)
}

// uploadExtension derives the stored file extension from the original
// filename, falling back to a sensible default per media kind.
func uploadExtension(filename string, isVideo bool) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext != "" {
		return ext
	}

	if isVideo {
		return "mp4"
	}

	return "jpg"
}

// newUploadKey generates a collision-resistant object key of the form
// "uploads/<unix-millis>-<random>.<ext>".
func newUploadKey(ext string) (domain.ObjectKey, error) {
	id, err := uuid.New(uuid.UUIDv7)
	if err != nil {
		return "", fmt.Errorf("new uuid: %w", err)
	}

	key := fmt.Sprintf("uploads/%d-%s.%s",
		time.Now().UnixMilli(),
		encoding.EncodeCrockfordB32LC(id.Bytes()),
		ext,
	)

	return domain.ObjectKey(key), nil
}
