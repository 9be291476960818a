package objectstore

import (
	"context"
	"time"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/cache"
)

// CachedBuckets memoizes ListBuckets of the wrapped store for a TTL.
type CachedBuckets struct {
	riders.ObjectStore
	listBuckets func(context.Context, struct{}) ([]riders.Bucket, error)
}

// WithCachedBuckets wraps store so bucket listings are served from c.
func WithCachedBuckets(store riders.ObjectStore, c *cache.Cache, ttl time.Duration) *CachedBuckets {
	return &CachedBuckets{
		ObjectStore: store,
		listBuckets: cache.Memoize(c, "objectstore.ListBuckets", ttl,
			func(ctx context.Context, _ struct{}) ([]riders.Bucket, error) {
				return store.ListBuckets(ctx)
			}),
	}
}

func (s *CachedBuckets) ListBuckets(ctx context.Context) ([]riders.Bucket, error) {
	return s.listBuckets(ctx, struct{}{})
}
