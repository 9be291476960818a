// Package codec provides stateless encoding helpers used across Riders:
// base64 for cache keys and payloads, HS256 signed tokens, and RSA key pairs.
package codec
