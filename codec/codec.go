// Package codec encodes account metadata for the write-ahead log and
// checkpoints.
//
// Persisted checkpoints record the codec name so they can be decoded after
// the default changes. Changing the codec of an existing write-ahead log is
// not supported.
package codec

import "fmt"

// Codec encodes and decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// EncodeMetadata encodes m with c. Empty metadata encodes to nil.
func EncodeMetadata(c Codec, m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("codec %s: encode metadata: %w", c.Name(), err)
	}
	return b, nil
}

// DecodeMetadata reverses EncodeMetadata. nil or empty input yields a nil map.
func DecodeMetadata(c Codec, data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if c == nil {
		c = Default
	}
	var m map[string]string
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("codec %s: decode metadata: %w", c.Name(), err)
	}
	return m, nil
}
