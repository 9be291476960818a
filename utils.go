package riders

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxKeyLength is the longest object key accepted, in bytes.
const MaxKeyLength = 1024

var (
	validBucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	validTableNameRegex  = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// IsValidTableName reports whether name can be used as a SQL cache table
// (lowercase letters, digits and underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// IsValidBucketName reports whether name follows S3 bucket naming rules:
// 3-63 characters of lowercase letters, digits, dots and hyphens, starting and
// ending with a letter or digit, without consecutive dots.
func IsValidBucketName(name string) bool {
	if !validBucketNameRegex.MatchString(name) {
		return false
	}
	return !strings.Contains(name, "..")
}

// IsValidKey validates that a key string meets the requirements for an object key.
// It checks that the key:
//   - is not empty, ".", or "/"
//   - is at most MaxKeyLength bytes
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - is valid UTF-8
//   - does not contain "." segments
//   - does not contain null bytes, control characters (< 0x20) or DEL (0x7f)
//
// Unlike bucket names, keys may contain spaces.
func IsValidKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}

	if len(k) > MaxKeyLength {
		return false
	}

	if k[0] == '/' || strings.HasSuffix(k, "/") {
		return false
	}

	if strings.Contains(k, "..") || strings.Contains(k, "//") {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	if strings.HasPrefix(k, "./") || strings.Contains(k, "/./") || strings.HasSuffix(k, "/.") {
		return false
	}

	for _, r := range k {
		if r < 0x20 || r == 0x7f || (unicode.IsSpace(r) && r != ' ') {
			return false
		}
	}

	return true
}
