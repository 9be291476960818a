package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/riders-api/riders"
)

// DefaultMaxUploadBytes bounds the in-memory part of multipart uploads.
const DefaultMaxUploadBytes int64 = 32 << 20

type Service interface {
	ListBuckets(ctx context.Context) ([]riders.Bucket, error)
	ListObjects(ctx context.Context, q riders.ListObjectsQuery) ([]riders.ObjectInfo, error)
	Upload(ctx context.Context, obj riders.PutObject, content io.Reader) (string, error)
	Download(ctx context.Context, bucket, key string) (riders.Object, error)
	Delete(ctx context.Context, bucket, key string) error
	Presign(ctx context.Context, bucket, key string) (string, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	// Name and Version are reported by the welcome endpoint.
	Name    string
	Version string

	// Verifier guards the storage routes. Nil means public access.
	Verifier TokenVerifier
	CORS     CORSConfig

	// StaticDir is served under /api/static. Empty disables it.
	StaticDir string

	// Metrics is mounted at /metrics when set, usually promhttp.HandlerFor.
	Metrics http.Handler

	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler provides the HTTP API of the riders service.
type Handler struct {
	config  HandlerConfig
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.Name == "" {
		cfg.Name = "Riders API"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:  cfg,
		service: service,
		logger:  logger,
	}
}

// Router returns an http.Handler with every route mounted under /api.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.logger))

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.Metrics != nil {
		r.Handle("/metrics", h.config.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.handleWelcome)
		r.Get("/health", h.handleHealth)
		r.Handle("/static/*", staticHandler("/api/static", h.config.StaticDir))

		r.Route("/storage", func(r chi.Router) {
			r.Use(AuthMiddleware(h.config.Verifier))

			r.Get("/buckets", h.handleListBuckets)
			r.Get("/buckets/{bucket}", h.handleListObjects)

			r.Post("/objects/{bucket}", h.handleUpload)
			r.Get("/objects/stream/{bucket}/{key}", h.handleDownload)
			r.Get("/objects/{bucket}/{key}", h.handleDownload)
			r.Delete("/objects/{bucket}/{key}", h.handleDelete)
			r.Get("/objects/{bucket}/{key}/presigned", h.handlePresigned)
		})
	})

	return r
}

func (h *Handler) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + h.config.Name,
		"version": h.config.Version,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusAccepted, MessageResponse{Message: "Accepted"})
}

func (h *Handler) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.ListBuckets(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	if buckets == nil {
		buckets = []riders.Bucket{}
	}

	_ = WriteJSON(w, http.StatusOK, buckets)
}

func (h *Handler) handleListObjects(w http.ResponseWriter, r *http.Request) {
	query := riders.ListObjectsQuery{
		Bucket: chi.URLParam(r, "bucket"),
		Prefix: r.URL.Query().Get("prefix"),
	}

	objects, err := h.service.ListObjects(r.Context(), query)
	if err != nil {
		HandleError(w, err)
		return
	}
	if objects == nil {
		objects = []riders.ObjectInfo{}
	}

	_ = WriteJSON(w, http.StatusOK, objects)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")

	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_form", "Expected multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_form", "Expected multipart form with a file field")
		return
	}
	defer func() { _ = file.Close() }()

	key := r.URL.Query().Get("key")
	if key == "" {
		key = header.Filename
	}

	obj := riders.PutObject{
		Bucket:      bucket,
		Key:         key,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}

	link, err := h.service.Upload(r.Context(), obj, file)
	if err != nil {
		if link == "" {
			HandleError(w, err)
			return
		}
		// The object is stored; only the event was lost.
		h.logger.Warn("upload event not delivered", "bucket", bucket, "key", key, "error", err)
	}

	_ = WriteJSON(w, http.StatusOK, link)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := location(w, r)
	if !ok {
		return
	}

	obj, err := h.service.Download(r.Context(), bucket, key)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	contentType := obj.Info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Info.ETag != "" {
		w.Header().Set("ETag", obj.Info.ETag)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": path.Base(key),
	}))

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("object stream interrupted", "bucket", bucket, "key", key, "error", err)
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := location(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), bucket, key); err != nil {
		if !errors.Is(err, riders.ErrEventNotPublished) {
			HandleError(w, err)
			return
		}
		// The object is gone; only the event was lost.
		h.logger.Warn("delete event not delivered", "bucket", bucket, "key", key, "error", err)
	}

	_ = WriteJSON(w, http.StatusOK, MessageResponse{Message: "File deleted"})
}

func (h *Handler) handlePresigned(w http.ResponseWriter, r *http.Request) {
	bucket, key, ok := location(w, r)
	if !ok {
		return
	}

	link, err := h.service.Presign(r.Context(), bucket, key)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, link)
}

// location returns the decoded bucket and key. chi matches on r.URL.RawPath
// when it is set ("docs%2Freport.pdf"), and only then are the parameters
// still escaped.
func location(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	bucket, key := chi.URLParam(r, "bucket"), chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return bucket, key, true
	}

	var err error
	if bucket, err = url.PathUnescape(bucket); err == nil {
		key, err = url.PathUnescape(key)
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid bucket or key")
		return "", "", false
	}
	return bucket, key, true
}
