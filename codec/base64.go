package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/riders-api/riders"
)

// Encodable lists the inputs accepted by EncodeBase64.
type Encodable interface {
	string | []byte | map[string]any
}

// EncodeBase64 returns the standard base64 encoding of data.
//
// Maps are formatted with fmt before encoding, so the result decodes back to
// the map's display string ("map[a:1 b:2]") and never to the map itself.
func EncodeBase64[T Encodable](data T) string {
	var raw []byte
	switch v := any(data).(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case map[string]any:
		raw = []byte(fmt.Sprint(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeBase64 reverses EncodeBase64 for string and byte inputs.
func DecodeBase64(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w: %w", riders.ErrSerialization, err)
	}
	return raw, nil
}
