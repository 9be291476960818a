package riders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ObjectStore defines the interface for bucket-based object storage.
// Implementations wrap an external SDK (see objectstore.S3) and must be safe
// for concurrent use.
//
// All methods accept a context for cancellation and timeout control.
type ObjectStore interface {
	// ListBuckets returns every bucket visible to the configured credentials.
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// ListObjects returns the objects of a bucket whose key starts with prefix.
	//
	// Returns:
	//   - []ObjectInfo: matching objects, empty (not nil) when none match
	//   - error: ErrNotFound if the bucket does not exist, or other store errors
	ListObjects(ctx context.Context, q ListObjectsQuery) ([]ObjectInfo, error)

	// Put stores content under obj.Bucket/obj.Key, overwriting any existing object.
	Put(ctx context.Context, obj PutObject, content io.Reader) error

	// Get opens an object for reading.
	//
	// The caller is responsible for closing Object.Body.
	// Returns ErrNotFound if the bucket or key does not exist.
	Get(ctx context.Context, bucket, key string) (Object, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// PresignGet returns a time-limited, credential-free URL for downloading an object.
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// EventPublisher announces storage mutations. queue.Producer builds one from a
// queue.Client.
type EventPublisher func(ctx context.Context, event StorageEvent) error

type StorageService struct {
	store         ObjectStore
	publish       EventPublisher
	presignExpiry time.Duration
	acl           string
	logger        *slog.Logger
}

// ServiceConfig holds configuration options for StorageService.
type ServiceConfig struct {
	PresignExpiry time.Duration // Lifetime of generated URLs (default: 1h)
	ACL           string        // Canned ACL applied on upload (default: public-read)
	Events        EventPublisher
	Logger        *slog.Logger
}

const (
	DefaultPresignExpiry = time.Hour
	DefaultACL           = "public-read"
)

func NewStorageService(store ObjectStore, cfg ServiceConfig) (*StorageService, error) {
	if store == nil {
		return nil, fmt.Errorf("new storage service: %w: store is required", ErrInvalidInput)
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	acl := cfg.ACL
	if acl == "" {
		acl = DefaultACL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageService{
		store:         store,
		publish:       cfg.Events,
		presignExpiry: expiry,
		acl:           acl,
		logger:        logger,
	}, nil
}

func (s *StorageService) ListBuckets(ctx context.Context) ([]Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets, err := s.store.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return buckets, nil
}

func (s *StorageService) ListObjects(ctx context.Context, q ListObjectsQuery) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	if !IsValidBucketName(q.Bucket) {
		return nil, fmt.Errorf("list objects %s: %w: invalid bucket name", q.Bucket, ErrInvalidInput)
	}

	objects, err := s.store.ListObjects(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list objects %s: %w", q.Bucket, err)
	}
	return objects, nil
}

// Upload stores content in a bucket and returns a presigned download URL for it.
//
// The object is written with the configured canned ACL. When an EventPublisher
// is configured an EventObjectCreated event is published after the write; a
// publish failure is returned to the caller but the object stays stored.
//
// Error types returned:
//   - ErrInvalidInput: invalid bucket name, invalid key or empty content type
//   - Wrapped store errors: issues writing the object or presigning the URL
//   - ErrEventNotPublished: the object is stored, wrapping ErrRouting or
//     ErrConnectivity from the queue
func (s *StorageService) Upload(ctx context.Context, obj PutObject, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	if err := validateLocation(obj.Bucket, obj.Key); err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}
	if obj.ACL == "" {
		obj.ACL = s.acl
	}

	if err := s.store.Put(ctx, obj, content); err != nil {
		return "", fmt.Errorf("upload object %s/%s: %w", obj.Bucket, obj.Key, err)
	}

	url, err := s.store.PresignGet(ctx, obj.Bucket, obj.Key, s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("upload object %s/%s: presign: %w", obj.Bucket, obj.Key, err)
	}

	if err := s.announce(ctx, EventObjectCreated, obj.Bucket, obj.Key); err != nil {
		return url, fmt.Errorf("upload object %s/%s: %w", obj.Bucket, obj.Key, err)
	}

	return url, nil
}

func (s *StorageService) Download(ctx context.Context, bucket, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, fmt.Errorf("download object: %w", err)
	}

	if err := validateLocation(bucket, key); err != nil {
		return Object{}, fmt.Errorf("download object: %w", err)
	}

	obj, err := s.store.Get(ctx, bucket, key)
	if err != nil {
		return Object{}, fmt.Errorf("download object %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// Delete removes an object and publishes EventObjectDeleted. A publish failure
// after the object is gone wraps ErrEventNotPublished.
func (s *StorageService) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := validateLocation(bucket, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := s.store.Delete(ctx, bucket, key); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}

	if err := s.announce(ctx, EventObjectDeleted, bucket, key); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *StorageService) Presign(ctx context.Context, bucket, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}

	if err := validateLocation(bucket, key); err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}

	url, err := s.store.PresignGet(ctx, bucket, key, s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign object %s/%s: %w", bucket, key, err)
	}
	return url, nil
}

func (s *StorageService) announce(ctx context.Context, typ EventType, bucket, key string) error {
	if s.publish == nil {
		return nil
	}

	event := StorageEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Bucket:     bucket,
		Key:        key,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn("storage event not published", "type", typ, "bucket", bucket, "key", key, "err", err)
		return fmt.Errorf("publish %s: %w: %w", typ, ErrEventNotPublished, err)
	}
	return nil
}

func validateLocation(bucket, key string) error {
	if !IsValidBucketName(bucket) {
		return fmt.Errorf("%w: invalid bucket name %q", ErrInvalidInput, bucket)
	}
	if !IsValidKey(key) {
		return fmt.Errorf("%w: invalid key %q", ErrInvalidInput, key)
	}
	return nil
}
