// Package canonical produces the deterministic byte form used to compute
// ETags and to compare documents for equality regardless of how an incoming
// request serialized them (key order, insignificant whitespace, numeric
// literal spelling).
//
// There is no third-party library in the stack behind this project that
// performs canonical/deterministic JSON encoding (the JSON libraries used
// elsewhere - the standard encoding/json package itself - are the
// appropriate tool here: encoding/json already sorts map keys and emits
// shortest round-trip float formatting, which this package reuses for
// non-integer number literals. Reaching for a third-party codec would add a
// dependency without changing the wire format).
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Encode decodes arbitrary JSON bytes and re-encodes them in canonical form:
// object keys sorted lexicographically at every nesting level, no
// insignificant whitespace, no HTML-escaping of '<', '>', '&'. This makes
// the output stable across clients that serialize the same logical document
// with different key order or formatting.
func Encode(raw []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("canonical: trailing data after JSON value")
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeValue marshals v to JSON via the standard encoder (which already
// sorts map keys and uses declared struct field order) and then
// re-canonicalizes the result, so the same byte form is produced whether
// the caller passes a typed struct or a raw document.
func EncodeValue(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	return Encode(raw)
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			if f, err := t.Float64(); err == nil {
				b, err := json.Marshal(f)
				if err != nil {
					return err
				}
				buf.Write(b)
				return nil
			}
		}
		buf.WriteString(s)
	case string:
		if err := writeString(buf, t); err != nil {
			return err
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
	return nil
}

// writeString writes s as a JSON string literal without HTML-escaping.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // drop the newline Encode appends
	return nil
}

// ETag computes the content-addressed ETag for a document already in
// canonical byte form: a SHA-256 digest truncated to its first 16 hex
// characters, quoted per RFC 9110 so it can be used directly as an HTTP
// ETag header value.
func ETag(canonicalBytes []byte) string {
	sum := sha256.Sum256(canonicalBytes)
	return `"` + hex.EncodeToString(sum[:])[:16] + `"`
}

// ETagOf canonicalizes v and returns its ETag in one step.
func ETagOf(v any) (string, error) {
	b, err := EncodeValue(v)
	if err != nil {
		return "", err
	}
	return ETag(b), nil
}

// Equal reports whether two already-canonical byte forms represent the same
// document.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
