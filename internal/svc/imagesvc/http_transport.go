package imagesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mkrupp/mediakit/internal/domain"
	"github.com/mkrupp/mediakit/internal/infra/logging"
	http_ "github.com/mkrupp/mediakit/internal/infra/transport/http"
)

var ErrPanic = errors.New("panic")

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// MultipartFileName is the form field name for file uploads.
	// Default is "file".
	MultipartFileName string `env:"MULTIPART_FILE_NAME" default:"file"`

	// MultipartFormMaxMemory is the maximum allowed memory for multipart form uploads.
	// Default is 10MB.
	MultipartFormMaxMemory int64 `env:"MULTIPART_FORM_MAX_SIZE" default:"10485760"`
}

// HTTPTransport handles HTTP requests for the image service.
// It provides endpoints for serving images and ingesting uploads.
type HTTPTransport struct {
	imageSvc ImageService
	log      logging.Logger
	cfg      HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
func NewHTTPTransport(imageSvc ImageService, cfg HTTPTransportConfig) *HTTPTransport {
	return &HTTPTransport{
		imageSvc: imageSvc,
		log:      logging.GetLogger("svc.imagesvc.http_transport"),
		cfg:      cfg,
	}
}

// ServeHTTP implements http.Handler and sets up routes for the image service endpoints:
// - GET /images/{key...}: Serve image by key, optionally transformed
// - POST /upload: Ingest a multipart upload
// - OPTIONS /upload: CORS preflight
// Other methods on /upload receive 405.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /images/{key...}", ht.HandleServe)
	mux.HandleFunc("POST /upload", ht.HandleUpload)
	mux.HandleFunc("OPTIONS /upload", ht.HandlePreflight)
	mux.HandleFunc("/upload", ht.HandleMethodNotAllowed)

	mux.ServeHTTP(w, r)
}

// HandleServe processes image requests. The remainder of the URL path is
// the object key; transform options come from the query string and the
// Accept header.
func (ht *HTTPTransport) HandleServe(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleServe(w, r)
}

func (ht *HTTPTransport) handleServe(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "image request failed", "error", err)
		} else {
			log.DebugContext(ctx, "image request served")
		}
	}(r.Context())

	// Every failure on this path is reported as 404 so probing requests
	// cannot distinguish missing keys from processing errors.
	defer func() {
		if r := recover(); r != nil {
			ht.writeNotFound(w)

			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	var (
		key  = domain.ObjectKey(r.PathValue("key"))
		opts = ParseTransformOptions(r.URL.Query(), r.Header.Get("Accept"))
	)

	res, err := ht.imageSvc.Serve(r.Context(), key, opts)
	if err != nil {
		ht.writeNotFound(w)

		return fmt.Errorf("serve: %w", err)
	}

	header := w.Header()
	header.Set("Content-Type", res.Object.Meta.ContentType)
	header.Set("Content-Length", strconv.FormatInt(res.Object.Size(), 10))
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	header.Set("Access-Control-Allow-Origin", "*")

	if res.Cache != CacheStatusNone {
		header.Set("X-Cache", string(res.Cache))
	}

	if _, err := res.Object.WriteTo(w); err != nil {
		return fmt.Errorf("write to: %w", err)
	}

	return nil
}

// HandleUpload processes upload requests.
// Expects a multipart form with a file field matching MultipartFileName config.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "upload accepted")
		}
	}(r.Context())

	if err := r.ParseMultipartForm(ht.cfg.MultipartFormMaxMemory); err != nil {
		ht.writeError(w, http.StatusBadRequest, "invalid multipart form")

		return fmt.Errorf("parse multipart form: %w", err)
	}

	file, fileHeader, err := r.FormFile(ht.cfg.MultipartFileName)
	if err != nil {
		ht.writeError(w, http.StatusBadRequest, "missing file field")

		return fmt.Errorf("form file: %w", err)
	}
	defer file.Close()

	buffer, err := io.ReadAll(file)
	if err != nil {
		ht.writeError(w, http.StatusBadRequest, "unreadable file")

		return fmt.Errorf("read %s: %w", fileHeader.Filename, err)
	}

	upload := domain.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        buffer,
	}

	res, err := ht.imageSvc.Ingest(r.Context(), upload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUploadTypeNotSupported):
			ht.writeError(w, http.StatusBadRequest, "unsupported file type")
		case errors.Is(err, domain.ErrUploadTooLarge):
			ht.writeError(w, http.StatusBadRequest, "file too large")
		default:
			ht.writeError(w, http.StatusInternalServerError, "upload failed")
		}

		return fmt.Errorf("ingest: %w", err)
	}

	ht.writeJSON(w, http.StatusCreated, uploadResponse{
		Success: true,
		URL:     res.URL,
		Key:     res.Key.String(),
	})

	return nil
}

// HandlePreflight answers CORS preflight requests on the upload endpoint.
func (ht *HTTPTransport) HandlePreflight(w http.ResponseWriter, _ *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type, Accept")

	w.WriteHeader(http.StatusNoContent)
}

// HandleMethodNotAllowed rejects unsupported methods on the upload endpoint.
func (ht *HTTPTransport) HandleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Key     string `json:"key,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (ht *HTTPTransport) writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.Error(w, "Not found", http.StatusNotFound)
}

func (ht *HTTPTransport) writeError(w http.ResponseWriter, status int, message string) {
	ht.writeJSON(w, status, errorResponse{Error: message})
}

func (ht *HTTPTransport) writeJSON(w http.ResponseWriter, status int, body any) {
	header := w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Access-Control-Allow-Origin", "*")

	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		ht.log.Error("encode response", "error", err)
	}
}
