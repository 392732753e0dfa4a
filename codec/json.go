package codec

import (
	"bytes"
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Default is used for newly written logs and checkpoints.
var Default Codec = GoJSON{}

// GoJSON encodes with github.com/goccy/go-json. HTML characters are not
// escaped, so metadata values are stored as given.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.MarshalNoEscape(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.UnmarshalNoEscape(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// JSON encodes with encoding/json. Its output matches GoJSON byte for byte.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }
