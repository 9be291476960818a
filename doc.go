// Package riders provides the domain layer of the Riders backend-for-frontend
// service: the error taxonomy shared by every hook and the object storage
// service exposed over HTTP.
//
// The reusable infrastructure lives in sub-packages:
//
//   - cache: cache-aside store access and function memoization (Redis or SQL)
//   - queue: AMQP client with topology declaration, publish and consume
//   - httpclient: outbound HTTP with concurrent fan-out (Fetch, Scrape, Batch)
//   - codec: base64, signed tokens and RSA key pairs
//   - generate: identifiers, timestamps, secrets and passwords
//
// # Key Components
//
//   - StorageService: validates bucket and key names and delegates to an ObjectStore
//   - ObjectStore: interface implemented by objectstore.S3
//   - EventPublisher: optional sink for storage events (queue.Client)
//
// # Errors
//
// Hooks never swallow errors. They wrap one of the sentinels in errors.go so
// callers can branch with errors.Is:
//
//	if errors.Is(err, riders.ErrConnectivity) {
//	    // store, broker or remote endpoint unreachable
//	}
//
// # Example Usage
//
//	service, err := riders.NewStorageService(store, riders.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buckets, err := service.ListBuckets(ctx)
package riders
