// Package generate provides identifiers, timestamps and random values.
package generate

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/riders-api/riders"
)

const (
	// TimeLayout is the format returned by Now.
	TimeLayout = "2006-01-02 15:04:05"
	// SecretBytes is the entropy of a Secret before encoding.
	SecretBytes = 32
	// MaxNumber is the inclusive upper bound of Number.
	MaxNumber = 1000
	// DefaultPasswordLength is used by Password when length <= 0.
	DefaultPasswordLength = 16
	// PasswordAlphabet is the character set passwords are drawn from.
	PasswordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+"
)

// ID returns a random (version 4) UUID string.
func ID() string {
	return uuid.NewString()
}

// Now returns the local time formatted with TimeLayout.
func Now() string {
	return time.Now().Format(TimeLayout)
}

// Secret returns a URL-safe, unpadded base64 token of SecretBytes random bytes.
func Secret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Number returns a uniform random integer in [0, MaxNumber].
func Number() int {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxNumber+1))
	if err != nil {
		panic(fmt.Sprintf("generate number: %v", err))
	}
	return int(n.Int64())
}

// Password returns a random string of the given length drawn from PasswordAlphabet.
func Password(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}

	limit := big.NewInt(int64(len(PasswordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = PasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// Normalize converts v into its plain JSON shape (maps, slices, strings,
// float64, bool, nil) by a JSON round trip. Maps are returned unchanged.
func Normalize(v any) (any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w: %w", riders.ErrSerialization, err)
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize: %w: %w", riders.ErrSerialization, err)
	}
	return out, nil
}
