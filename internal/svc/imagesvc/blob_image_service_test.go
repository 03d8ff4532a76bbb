package imagesvc_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/repo/objectstore"
	"github.com/mkrupp/mediakit/internal/svc/imagesvc"
)

type mockStore struct {
	objects  map[domain.ObjectKey]*domain.Object
	m        *sync.Mutex
	fetchErr error
	storeErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		objects: make(map[domain.ObjectKey]*domain.Object),
		m:       &sync.Mutex{},
	}
}

func (m *mockStore) Exists(_ context.Context, key domain.ObjectKey) bool {
	m.m.Lock()
	defer m.m.Unlock()
	_, exists := m.objects[key]
	return exists
}

func (m *mockStore) Fetch(_ context.Context, key domain.ObjectKey) (*domain.Object, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.m.Lock()
	defer m.m.Unlock()
	obj, exists := m.objects[key]
	if !exists {
		return nil, domain.ErrObjectNotFound
	}
	return domain.NewObject(obj.Key, obj.Body, obj.Meta), nil
}

func (m *mockStore) Store(_ context.Context, obj *domain.Object) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.objects[obj.Key] = domain.NewObject(obj.Key, obj.Body, obj.Meta)
	return nil
}

func (m *mockStore) Delete(_ context.Context, key domain.ObjectKey) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *mockStore) put(key domain.ObjectKey, body []byte, ctype string) {
	m.m.Lock()
	defer m.m.Unlock()
	m.objects[key] = domain.NewObject(key, body, domain.ObjectMeta{ContentType: ctype})
}

func setupImageService(t *testing.T) (*imagesvc.BlobImageService, *mockStore, *mockStore) {
	t.Helper()

	images := newMockStore()
	cache := newMockStore()

	factory := func(_ context.Context, name string) (objectstore.Store, error) {
		switch name {
		case domain.StoreImages:
			return images, nil
		case domain.StoreImagesCache:
			return cache, nil
		default:
			return nil, errors.New("unknown store")
		}
	}

	svc, err := imagesvc.NewBlobImageService(context.Background(), factory, imagesvc.ImageConfig{
		Interpolator:       "catmullrom",
		IngestMaxDimension: 2000,
		IngestQuality:      80,
		MaxImageSize:       5 * 1024 * 1024,
		MaxVideoSize:       100 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("failed to create image service: %v", err)
	}

	return svc, images, cache
}

// makePNG encodes a solid-color PNG with the given dimensions.
func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			bitmap.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, bitmap); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	return buffer.Bytes()
}

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))

	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, bitmap, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	return buffer.Bytes()
}

func makeGIF(t *testing.T, width, height int) []byte {
	t.Helper()

	bitmap := image.NewPaletted(image.Rect(0, 0, width, height), color.Palette{
		color.RGBA{A: 255},
		color.RGBA{R: 255, G: 255, B: 255, A: 255},
	})

	var buffer bytes.Buffer
	if err := gif.Encode(&buffer, bitmap, nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}

	return buffer.Bytes()
}

// waitForCache polls the cache store until the key appears or the deadline
// expires. The derivative write is asynchronous, so tests have to wait.
func waitForCache(t *testing.T, cache *mockStore, key domain.ObjectKey) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cache.Exists(context.Background(), key) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("cache entry %q never appeared", key)
}

func TestBlobImageService_Serve_Passthrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  []byte
		ctype string
		opts  domain.TransformOptions
	}{
		{
			name:  "original without transform options",
			body:  []byte("raw image bytes"),
			ctype: "image/jpeg",
			opts:  domain.TransformOptions{Quality: 80, Fit: domain.FitCover},
		},
		{
			name:  "video ignores transform options",
			body:  []byte("raw video bytes"),
			ctype: "video/mp4",
			opts:  domain.TransformOptions{Width: 100, Quality: 80, Fit: domain.FitCover},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, images, _ := setupImageService(t)
			images.put("uploads/1-a.bin", tt.body, tt.ctype)

			res, err := svc.Serve(context.Background(), "uploads/1-a.bin", tt.opts)
			if err != nil {
				t.Fatalf("Serve() error = %v", err)
			}

			if res.Cache != imagesvc.CacheStatusNone {
				t.Errorf("Serve() cache = %q, want none", res.Cache)
			}
			if !bytes.Equal(res.Object.Bytes(), tt.body) {
				t.Error("Serve() body was modified")
			}
			if res.Object.Meta.ContentType != tt.ctype {
				t.Errorf("Serve() content type = %q, want %q", res.Object.Meta.ContentType, tt.ctype)
			}
		})
	}
}

func TestBlobImageService_Serve_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     domain.ObjectKey
		opts    domain.TransformOptions
		wantErr error
	}{
		{
			name:    "empty key",
			key:     "",
			opts:    domain.TransformOptions{Quality: 80, Fit: domain.FitCover},
			wantErr: domain.ErrNoObjectKey,
		},
		{
			name:    "missing original",
			key:     "uploads/404-zz.webp",
			opts:    domain.TransformOptions{Quality: 80, Fit: domain.FitCover},
			wantErr: domain.ErrObjectNotFound,
		},
		{
			name:    "missing original with transform",
			key:     "uploads/404-zz.webp",
			opts:    domain.TransformOptions{Width: 100, Quality: 80, Fit: domain.FitCover},
			wantErr: domain.ErrObjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := setupImageService(t)

			_, err := svc.Serve(context.Background(), tt.key, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBlobImageService_Serve_CacheMissThenHit(t *testing.T) {
	t.Parallel()

	svc, images, cache := setupImageService(t)
	images.put("uploads/1-a.png", makePNG(t, 200, 100), "image/png")

	opts := domain.TransformOptions{
		Width:   100,
		Quality: 80,
		Format:  domain.FormatPNG,
		Fit:     domain.FitCover,
	}

	// First request computes the derivative
	first, err := svc.Serve(context.Background(), "uploads/1-a.png", opts)
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if first.Cache != imagesvc.CacheStatusMiss {
		t.Errorf("first Serve() cache = %q, want MISS", first.Cache)
	}

	cacheKey := imagesvc.DeriveCacheKey("uploads/1-a.png", opts)
	waitForCache(t, cache, cacheKey)

	// Corrupt the original: a second request must be served from the cache
	// without touching it.
	images.put("uploads/1-a.png", []byte("not a png anymore"), "image/png")

	second, err := svc.Serve(context.Background(), "uploads/1-a.png", opts)
	if err != nil {
		t.Fatalf("second Serve() error = %v", err)
	}
	if second.Cache != imagesvc.CacheStatusHit {
		t.Errorf("second Serve() cache = %q, want HIT", second.Cache)
	}
	if !bytes.Equal(first.Object.Bytes(), second.Object.Bytes()) {
		t.Error("cached derivative differs from computed one")
	}
}

func TestBlobImageService_Serve_CacheStoreFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	svc, images, cache := setupImageService(t)
	images.put("uploads/1-a.png", makePNG(t, 200, 100), "image/png")
	cache.storeErr = errors.New("cache unavailable")

	opts := domain.TransformOptions{
		Width:   50,
		Quality: 80,
		Format:  domain.FormatPNG,
		Fit:     domain.FitCover,
	}

	res, err := svc.Serve(context.Background(), "uploads/1-a.png", opts)
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if res.Cache != imagesvc.CacheStatusMiss {
		t.Errorf("Serve() cache = %q, want MISS", res.Cache)
	}

	svc.Flush()
}

func TestBlobImageService_Ingest_Images(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		upload    func(t *testing.T) domain.Upload
		wantType  string
		wantExt   string
		unchanged bool
	}{
		{
			name: "jpeg is re-encoded as webp",
			upload: func(t *testing.T) domain.Upload {
				t.Helper()
				body := makeJPEG(t, 300, 200)
				return domain.Upload{
					Filename:    "photo.jpg",
					ContentType: "image/jpeg",
					Size:        int64(len(body)),
					Body:        body,
				}
			},
			wantType: "image/webp",
			wantExt:  ".webp",
		},
		{
			name: "png is re-encoded as webp",
			upload: func(t *testing.T) domain.Upload {
				t.Helper()
				body := makePNG(t, 300, 200)
				return domain.Upload{
					Filename:    "art.png",
					ContentType: "image/png",
					Size:        int64(len(body)),
					Body:        body,
				}
			},
			wantType: "image/webp",
			wantExt:  ".webp",
		},
		{
			name: "gif is stored byte-for-byte",
			upload: func(t *testing.T) domain.Upload {
				t.Helper()
				body := makeGIF(t, 50, 50)
				return domain.Upload{
					Filename:    "anim.gif",
					ContentType: "image/gif",
					Size:        int64(len(body)),
					Body:        body,
				}
			},
			wantType:  "image/gif",
			wantExt:   ".gif",
			unchanged: true,
		},
		{
			name: "video is stored byte-for-byte",
			upload: func(t *testing.T) domain.Upload {
				t.Helper()
				body := []byte("fake mp4 payload")
				return domain.Upload{
					Filename:    "clip.mp4",
					ContentType: "video/mp4",
					Size:        int64(len(body)),
					Body:        body,
				}
			},
			wantType:  "video/mp4",
			wantExt:   ".mp4",
			unchanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, images, _ := setupImageService(t)
			upload := tt.upload(t)

			res, err := svc.Ingest(context.Background(), upload)
			if err != nil {
				t.Fatalf("Ingest() error = %v", err)
			}

			if !strings.HasPrefix(res.Key.String(), "uploads/") {
				t.Errorf("Ingest() key = %q, want uploads/ prefix", res.Key)
			}
			if !strings.HasSuffix(res.Key.String(), tt.wantExt) {
				t.Errorf("Ingest() key = %q, want %s suffix", res.Key, tt.wantExt)
			}
			if res.URL != "/images/"+res.Key.String() {
				t.Errorf("Ingest() url = %q, want /images/%s", res.URL, res.Key)
			}

			stored, err := images.Fetch(context.Background(), res.Key)
			if err != nil {
				t.Fatalf("stored object missing: %v", err)
			}

			if stored.Meta.ContentType != tt.wantType {
				t.Errorf("stored content type = %q, want %q", stored.Meta.ContentType, tt.wantType)
			}
			if stored.Meta.OriginalName != upload.Filename {
				t.Errorf("stored original name = %q, want %q", stored.Meta.OriginalName, upload.Filename)
			}

			if tt.unchanged && !bytes.Equal(stored.Bytes(), upload.Body) {
				t.Error("stored body was modified")
			}
			if !tt.unchanged && bytes.Equal(stored.Bytes(), upload.Body) {
				t.Error("stored body was not re-encoded")
			}
		})
	}
}

func TestBlobImageService_Ingest_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		upload  domain.Upload
		wantErr error
	}{
		{
			name: "unsupported type",
			upload: domain.Upload{
				Filename:    "doc.pdf",
				ContentType: "application/pdf",
				Size:        10,
				Body:        []byte("%PDF-1.4"),
			},
			wantErr: domain.ErrUploadTypeNotSupported,
		},
		{
			name: "image over size limit",
			upload: domain.Upload{
				Filename:    "huge.jpg",
				ContentType: "image/jpeg",
				Size:        6 * 1024 * 1024,
				Body:        make([]byte, 16),
			},
			wantErr: domain.ErrUploadTooLarge,
		},
		{
			name: "video over size limit",
			upload: domain.Upload{
				Filename:    "huge.mp4",
				ContentType: "video/mp4",
				Size:        101 * 1024 * 1024,
				Body:        make([]byte, 16),
			},
			wantErr: domain.ErrUploadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, images, _ := setupImageService(t)

			_, err := svc.Ingest(context.Background(), tt.upload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tt.wantErr)
			}

			if len(images.objects) != 0 {
				t.Error("rejected upload was stored")
			}
		})
	}
}

func TestBlobImageService_Ingest_KeysAreUnique(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupImageService(t)
	body := []byte("fake mp4 payload")

	seen := make(map[domain.ObjectKey]bool)

	for i := 0; i < 10; i++ {
		res, err := svc.Ingest(context.Background(), domain.Upload{
			Filename:    "clip.mp4",
			ContentType: "video/mp4",
			Size:        int64(len(body)),
			Body:        body,
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if seen[res.Key] {
			t.Fatalf("Ingest() produced duplicate key %q", res.Key)
		}
		seen[res.Key] = true
	}
}
