// Package jsonutil provides deterministic JSON encoding. Webhook payloads
// are signed over this canonical form so receivers can verify signatures
// regardless of field order.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/patchgate-project/patchgate/pkg/model"
)

// EventPayload renders one notification event in the canonical form a
// webhook signature is computed over.
func EventPayload(ev model.Event) ([]byte, error) {
	return CanonicalMarshal(ev)
}

// CanonicalMarshal produces deterministic JSON: lexicographically
// sorted object keys, no insignificant whitespace, UTF-8. The value is
// round-tripped through encoding/json first so struct tags and
// omitempty apply before key ordering.
func CanonicalMarshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonical unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		return encodeObject(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		// string, float64, bool, nil
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(raw)
		return nil
	}
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
