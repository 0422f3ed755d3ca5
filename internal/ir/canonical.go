package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Object is an ordered-on-output JSON object used to build canonical
// documents (verdict records, spec digests). Keys are emitted in RFC 8785
// order regardless of map iteration order.
type Object map[string]any

// MarshalCanonical produces RFC 8785 style canonical JSON.
// It is the only encoding used for content hashes and the verdict log.
//
// Stream values are encoded so that their kind survives a round trip:
//   - Int      -> JSON integer
//   - Bool     -> true / false
//   - String   -> NFC-normalised JSON string
//   - Float    -> {"float":"<shortest repr>"}, "+Inf", "-Inf" or "NaN" when non-finite
//   - Tuple    -> {"tuple":[...]}
//   - None/nil -> null
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil, None:
		buf.WriteString("null")
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case String:
		return writeCanonicalString(buf, string(val))
	case Float:
		return writeCanonical(buf, Object{"float": strconv.FormatFloat(float64(val), 'g', -1, 64)})
	case Tuple:
		elems := make([]any, len(val))
		for i, e := range val {
			elems[i] = e
		}
		return writeCanonical(buf, Object{"tuple": elems})
	case Parameters:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		elems := make([]any, len(val))
		for i, e := range val {
			elems[i] = e
		}
		return writeCanonicalArray(buf, elems)
	case string:
		return writeCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case time.Duration:
		// Durations are encoded as integer nanoseconds.
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case []any:
		return writeCanonicalArray(buf, val)
	case []Value:
		elems := make([]any, len(val))
		for i, e := range val {
			elems[i] = e
		}
		return writeCanonicalArray(buf, elems)
	case []string:
		elems := make([]any, len(val))
		for i, e := range val {
			elems[i] = e
		}
		return writeCanonicalArray(buf, elems)
	case Object:
		return writeCanonicalObject(buf, val)
	case map[string]any:
		return writeCanonicalObject(buf, Object(val))
	case float64, float32:
		return fmt.Errorf("raw float %v: wrap it in ir.Float", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalArray(buf *bytes.Buffer, elems []any) error {
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, e); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj Object) error {
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeCanonicalString writes s NFC-normalised with only the escapes RFC 8785
// requires: no HTML escaping, and U+2028/U+2029 emitted literally.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape preceded by an odd
// run of backslashes is literal text and is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			run := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs above U+FFFF.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// UnmarshalValue decodes a single canonical value produced by MarshalCanonical.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return valueFromJSON(raw)
}

// UnmarshalParameters decodes canonical Parameters; JSON null yields nil.
func UnmarshalParameters(data []byte) (Parameters, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("parameters must be an array or null, got %T", raw)
	}
	params := make(Parameters, len(arr))
	for i, e := range arr {
		v, err := valueFromJSON(e)
		if err != nil {
			return nil, fmt.Errorf("parameters[%d]: %w", i, err)
		}
		params[i] = v
	}
	return params, nil
}

func valueFromJSON(raw any) (Value, error) {
	switch val := raw.(type) {
	case nil:
		return None{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("bare number %q is not an integer", val)
		}
		return Int(n), nil
	case map[string]any:
		if len(val) != 1 {
			return nil, fmt.Errorf("tagged value must have exactly one key, got %d", len(val))
		}
		if f, ok := val["float"]; ok {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("float payload must be a string, got %T", f)
			}
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("float payload: %w", err)
			}
			return Float(parsed), nil
		}
		if t, ok := val["tuple"]; ok {
			arr, ok := t.([]any)
			if !ok {
				return nil, fmt.Errorf("tuple payload must be an array, got %T", t)
			}
			tuple := make(Tuple, len(arr))
			for i, e := range arr {
				ev, err := valueFromJSON(e)
				if err != nil {
					return nil, fmt.Errorf("tuple[%d]: %w", i, err)
				}
				tuple[i] = ev
			}
			return tuple, nil
		}
		return nil, fmt.Errorf("unknown tagged value %v", val)
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", raw)
	}
}
