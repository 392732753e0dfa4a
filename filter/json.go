package filter

import (
	"bytes"
	"fmt"
	"sort"

	gojson "github.com/goccy/go-json"
)

// Wire keys.
const (
	KeyIdentifiable = "Identifiable"
	KeyIs           = "Is"
	KeyStartsWith   = "StartsWith"
	KeyEndsWith     = "EndsWith"
	KeyContains     = "Contains"
	KeyAnd          = "And"
	KeyOr           = "Or"
	KeyNot          = "Not"
)

// Parse decodes a wire filter and validates it.
func Parse(data []byte) (Expr, error) {
	return parse(data, "", 0)
}

// MustParse is like Parse but panics on error.
func MustParse(data string) Expr {
	e, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return e
}

// Marshal encodes e in wire form.
func Marshal(e Expr) ([]byte, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}
	return gojson.Marshal(toWire(e))
}

// Wire adapts an Expr to encoding/json-compatible marshalling so it can be
// embedded in request and response bodies.
type Wire struct {
	Expr Expr
}

// MarshalJSON implements json.Marshaler.
func (w Wire) MarshalJSON() ([]byte, error) {
	return Marshal(w.Expr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *Wire) UnmarshalJSON(data []byte) error {
	e, err := Parse(data)
	if err != nil {
		return err
	}
	w.Expr = e
	return nil
}

func toWire(e Expr) any {
	switch v := e.(type) {
	case Is:
		return map[string]any{KeyIdentifiable: map[string]string{KeyIs: v.ID}}
	case StartsWith:
		return map[string]any{KeyIdentifiable: map[string]string{KeyStartsWith: v.Prefix}}
	case EndsWith:
		return map[string]any{KeyIdentifiable: map[string]string{KeyEndsWith: v.Suffix}}
	case Contains:
		return map[string]any{KeyIdentifiable: map[string]string{KeyContains: v.Substring}}
	case And:
		return map[string]any{KeyAnd: wireList(v)}
	case Or:
		return map[string]any{KeyOr: wireList(v)}
	case Not:
		return map[string]any{KeyNot: toWire(v.Expr)}
	default:
		return nil
	}
}

func wireList(exprs []Expr) []any {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		out[i] = toWire(e)
	}
	return out
}

func parse(data []byte, path string, depth int) (Expr, error) {
	if depth > MaxDepth {
		return nil, malformed(path, "nesting deeper than %d", MaxDepth)
	}
	key, raw, err := singleKey(data, path)
	if err != nil {
		return nil, err
	}

	p := joinPath(path, key)
	switch key {
	case KeyIdentifiable:
		return parseIdentifiable(raw, p)
	case KeyAnd, KeyOr:
		var items []gojson.RawMessage
		if err := gojson.Unmarshal(raw, &items); err != nil || isNull(raw) {
			return nil, &MalformedFilterError{Path: p, Reason: "expected array", cause: err}
		}
		if len(items) == 0 {
			return nil, malformed(p, "empty %s", key)
		}
		exprs := make([]Expr, len(items))
		for i, item := range items {
			sub, err := parse(item, fmt.Sprintf("%s[%d]", p, i), depth+1)
			if err != nil {
				return nil, err
			}
			exprs[i] = sub
		}
		if key == KeyAnd {
			return And(exprs), nil
		}
		return Or(exprs), nil
	case KeyNot:
		sub, err := parse(raw, p, depth+1)
		if err != nil {
			return nil, err
		}
		return Not{Expr: sub}, nil
	default:
		return nil, malformed(path, "unknown filter key %q", key)
	}
}

func parseIdentifiable(data []byte, path string) (Expr, error) {
	key, raw, err := singleKey(data, path)
	if err != nil {
		return nil, err
	}

	p := joinPath(path, key)
	var s string
	if isNull(raw) {
		return nil, malformed(p, "expected string, got null")
	}
	if err := gojson.Unmarshal(raw, &s); err != nil {
		return nil, &MalformedFilterError{Path: p, Reason: "expected string", cause: err}
	}

	switch key {
	case KeyIs:
		return Is{ID: s}, nil
	case KeyStartsWith:
		return StartsWith{Prefix: s}, nil
	case KeyEndsWith:
		return EndsWith{Suffix: s}, nil
	case KeyContains:
		return Contains{Substring: s}, nil
	default:
		return nil, malformed(path, "unknown predicate %q", key)
	}
}

// singleKey decodes a JSON object that must hold exactly one member.
func singleKey(data []byte, path string) (string, gojson.RawMessage, error) {
	if isNull(data) {
		return "", nil, malformed(path, "expected object, got null")
	}
	var obj map[string]gojson.RawMessage
	if err := gojson.Unmarshal(data, &obj); err != nil {
		return "", nil, &MalformedFilterError{Path: path, Reason: "expected object", cause: err}
	}
	if len(obj) != 1 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", nil, malformed(path, "expected exactly one key, got %d %v", len(obj), keys)
	}
	for k, v := range obj {
		return k, v, nil
	}
	return "", nil, nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
