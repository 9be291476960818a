// Package cache provides cache-aside access to a key-value store and a
// memoizing wrapper for functions.
//
// # Stores
//
// Cache talks to a Store. RedisStore speaks the Redis protocol through
// go-redis; the database package provides SQLite and PostgreSQL stores for
// deployments without Redis.
//
//	store, err := cache.NewRedisStoreWithOptions(&redis.Options{Addr: "localhost:6379"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c := cache.New(store)
//
// # Memoize
//
// Memoize wraps a function so repeated calls with equal arguments are served
// from the store:
//
//	lookup := cache.Memoize(c, "riders.lookup", time.Minute, func(ctx context.Context, id string) (Rider, error) {
//	    return repo.Find(ctx, id)
//	})
//	rider, err := lookup(ctx, "42")
//
// The key is the function name plus the base64 of the JSON-encoded arguments.
// Results are stored as JSON, so R must round-trip through encoding/json.
// Errors returned by the wrapped function are never cached.
//
// # Errors
//
// The cache never falls back to memory: unreachable stores surface as
// riders.ErrConnectivity and undecodable values as riders.ErrSerialization.
package cache
