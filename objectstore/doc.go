// Package objectstore implements riders.ObjectStore on S3-compatible storage
// using aws-sdk-go-v2.
//
// New loads the AWS configuration for the given region and, when set, static
// credentials and a custom endpoint (MinIO, LocalStack, Stowry). Path-style
// addressing is used for custom endpoints.
//
// CachedBuckets memoizes ListBuckets through a cache.Cache; all other
// operations go straight to the wrapped store.
package objectstore
