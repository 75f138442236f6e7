package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// Reserved keys carrying snapshot metadata in server payloads.
const (
	KeyObjectID  = "objectId"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
	KeyClassName = "className"
)

// dateLayout is the millisecond precision UTC layout used by the server.
const dateLayout = "2006-01-02T15:04:05.000Z"

// FromServerData builds an existing-record snapshot from an already decoded
// server payload. Metadata keys are lifted out of data; the remaining entries
// become fields in ascending key order.
func FromServerData(className string, data map[string]any) (ObjectState, error) {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	m := NewMutableObjectState(className)
	for _, key := range keys {
		if err := applyServerField(m, key, data[key]); err != nil {
			return nil, err
		}
	}
	return finishServerState(m), nil
}

// DecodeObjectState decodes a JSON object into a snapshot, keeping the
// top-level key order of the payload. Numbers are kept as json.Number.
func DecodeObjectState(className string, data []byte) (ObjectState, error) {
	m := NewMutableObjectState(className)
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || string(trimmed) == "null" {
		return finishServerState(m), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("core: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("core: unexpected token %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("core: decode field %q: %w", key, err)
		}
		if err := applyServerField(m, key, value); err != nil {
			return nil, err
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, fmt.Errorf("core: trailing data after object: %w", err)
		}
		return nil, fmt.Errorf("core: trailing data after object: %v", tok)
	}
	return finishServerState(m), nil
}

// EncodeObjectState writes the snapshot as a JSON object: objectId and
// timestamps first, then fields in insertion order. Nested maps are written
// with sorted keys so the output is deterministic.
func EncodeObjectState(state ObjectState) ([]byte, error) {
	if state == nil {
		return nil, errors.New("core: cannot encode nil state")
	}

	var buf bytes.Buffer
	buf.Grow(state.Len() * 32) // heuristic
	buf.WriteByte('{')

	first := true
	writeEntry := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		child, err := marshalCanonicalJSON(value)
		if err != nil {
			return err
		}
		buf.Write(child)
		return nil
	}

	if id := state.ObjectID(); id != "" {
		if err := writeEntry(KeyObjectID, id); err != nil {
			return nil, err
		}
	}
	if t, ok := state.CreatedAt(); ok {
		if err := writeEntry(KeyCreatedAt, formatDate(t)); err != nil {
			return nil, err
		}
	}
	if t, ok := state.UpdatedAt(); ok {
		if err := writeEntry(KeyUpdatedAt, formatDate(t)); err != nil {
			return nil, err
		}
	}

	for key, value := range state.All() {
		if isReservedKey(key) {
			continue
		}
		if err := writeEntry(key, value); err != nil {
			return nil, fmt.Errorf("core: encode field %q: %w", key, err)
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func applyServerField(m *MutableObjectState, key string, value any) error {
	switch key {
	case KeyObjectID:
		id, ok := value.(string)
		if !ok {
			return fmt.Errorf("core: %s must be a string, got %T", KeyObjectID, value)
		}
		return m.SetObjectID(id)
	case KeyCreatedAt, KeyUpdatedAt:
		t, err := parseDate(value)
		if err != nil {
			return fmt.Errorf("core: invalid %s: %w", key, err)
		}
		if key == KeyCreatedAt {
			m.SetCreatedAt(t)
		} else {
			m.SetUpdatedAt(t)
		}
		return nil
	case KeyClassName:
		if name, ok := value.(string); ok && name != "" {
			m.SetClassName(name)
			return nil
		}
	}
	m.Set(key, value)
	return nil
}

// finishServerState mirrors the server contract: a freshly created record
// reports only createdAt, which is also its last update time.
func finishServerState(m *MutableObjectState) ObjectState {
	if m.createdAt != nil && m.updatedAt == nil {
		m.SetUpdatedAt(*m.createdAt)
	}
	return m.Freeze()
}

func parseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	case map[string]any:
		if typ, _ := v["__type"].(string); typ == "Date" {
			if iso, ok := v["iso"].(string); ok {
				return time.Parse(time.RFC3339Nano, iso)
			}
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date value %T", value)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func isReservedKey(key string) bool {
	switch key {
	case KeyObjectID, KeyCreatedAt, KeyUpdatedAt:
		return true
	}
	return false
}

// marshalCanonicalJSON encodes a field value with map keys sorted. Dates are
// written in the server's {"__type":"Date"} form.
func marshalCanonicalJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonicalJSON(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonicalJSON(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case json.Number:
		if !isJSONNumber(v) {
			return fmt.Errorf("core: invalid number literal %q", string(v))
		}
		buf.WriteString(string(v))
	case time.Time:
		buf.WriteString(`{"__type":"Date","iso":"`)
		buf.WriteString(formatDate(v))
		buf.WriteString(`"}`)
	case *time.Time:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		return writeCanonicalJSON(buf, *v)
	case map[string]any:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for idx, key := range keys {
			if idx > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalJSON(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonicalJSON(buf, v[key]); err != nil {
				return fmt.Errorf("core: field %q: %w", key, err)
			}
		}
		buf.WriteByte('}')
	case []any:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for idx, item := range v {
			if idx > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(raw)
	}
	return nil
}

// isJSONNumber reports whether n is a valid JSON number literal.
func isJSONNumber(n json.Number) bool {
	s := string(n)
	if s == "" {
		return false
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	return json.Valid([]byte(s))
}
