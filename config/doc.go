// Package config provides configuration loading and validation for riders.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (RIDERS_ prefix, plus a few unprefixed names)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// Every key maps to RIDERS_<SECTION>_<KEY>, e.g. redis.host is
// RIDERS_REDIS_HOST. The following unprefixed names are also read:
//
//	AMQP_URL               amqp.url
//	REDIS_HOST             redis.host
//	REDIS_PORT             redis.port
//	REDIS_PASSWORD         redis.password
//	AWS_ACCESS_KEY_ID      aws.access_key_id
//	AWS_SECRET_ACCESS_KEY  aws.secret_access_key
//	AWS_REGION             aws.region
//	DATABASE_URL           database.dsn
//	TOKEN_SECRET           auth.token_secret
//
// # Configuration Structure
//
//   - Server: port, static_dir, max_upload_size, presign_expiry, acl
//   - Cache: backend (redis, sqlite, postgres) and bucket_ttl
//   - Redis: host, port, password, db
//   - Database: type, dsn and table of the SQL cache backends
//   - AMQP: url, prefetch, confirm, durable, connect_retries, events_queue
//   - AWS: region, access keys, endpoint
//   - Auth: token_secret and whether storage routes require a token
//   - HTTP: outbound client timeout, concurrency and user agent
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
package config
