// Package http exposes the riders storage service over a chi router.
//
// # Routes
//
// Every route lives under /api:
//
//	GET    /api/                                     welcome message
//	GET    /api/health                               202 {"message":"Accepted"}
//	GET    /api/storage/buckets                      list buckets
//	GET    /api/storage/buckets/{bucket}?prefix=     list objects
//	POST   /api/storage/objects/{bucket}?key=        multipart "file" upload, returns a presigned URL
//	GET    /api/storage/objects/{bucket}/{key}       download as attachment
//	DELETE /api/storage/objects/{bucket}/{key}       {"message":"File deleted"}
//	GET    /api/storage/objects/{bucket}/{key}/presigned
//	GET    /api/storage/objects/stream/{bucket}/{key}
//	GET    /api/static/*                             files from HandlerConfig.StaticDir
//
// Keys containing slashes are sent URL-escaped ("docs%2Freport.pdf").
// /metrics is mounted at the root when HandlerConfig.Metrics is set.
//
// # Authentication
//
// Storage routes accept an optional TokenVerifier. When set, requests must
// carry "Authorization: Bearer <token>"; the decoded claims are available
// through ClaimsFromContext:
//
//	signer, _ := codec.NewSigner(secret)
//	handler := http.NewHandler(&http.HandlerConfig{Verifier: signer}, service)
//
// # Errors
//
// HandleError maps riders sentinel errors to JSON error responses:
// ErrNotFound 404, ErrInvalidInput 400, ErrAuthentication 401, ErrRouting 422,
// ErrSerialization 400, ErrConnectivity 503, ErrPartialBatch 502, anything
// else 500.
package http
