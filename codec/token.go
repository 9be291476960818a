package codec

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/riders-api/riders"
)

// TokenAlgorithm is the only signing algorithm accepted by EncodeToken and DecodeToken.
const TokenAlgorithm = "HS256"

var errEmptySecret = errors.New("secret cannot be empty")

// EncodeToken signs claims with secret using HS256.
func EncodeToken(claims map[string]any, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("encode token: %w: %w", riders.ErrInvalidInput, errEmptySecret)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("encode token: %w: %w", riders.ErrSerialization, err)
	}
	return signed, nil
}

// DecodeToken verifies token with secret and returns its claims.
// A bad signature, a malformed token, a different algorithm or an expired
// "exp" claim all wrap riders.ErrAuthentication.
func DecodeToken(token, secret string) (map[string]any, error) {
	if secret == "" {
		return nil, fmt.Errorf("decode token: %w: %w", riders.ErrInvalidInput, errEmptySecret)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{TokenAlgorithm}))
	if err != nil {
		return nil, fmt.Errorf("decode token: %w: %w", riders.ErrAuthentication, err)
	}
	return claims, nil
}

// Signer binds a shared secret so callers do not pass it around.
type Signer struct {
	secret string
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("new signer: %w: %w", riders.ErrInvalidInput, errEmptySecret)
	}
	return &Signer{secret: secret}, nil
}

func (s *Signer) Encode(claims map[string]any) (string, error) {
	return EncodeToken(claims, s.secret)
}

func (s *Signer) Decode(token string) (map[string]any, error) {
	return DecodeToken(token, s.secret)
}
