package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping, U+2028/U+2029 written literally
//  3. Strings and keys are NFC normalized
//  4. Numbers use the ECMAScript shortest round-trip form
//
// NaN and infinities are rejected.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value, canonical bool) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		writeString(buf, string(val), canonical)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		s, err := formatFloat(float64(val))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem, canonical); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k, canonical)
			buf.WriteByte(':')
			if err := encode(buf, val[k], canonical); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value type: %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// writeString escapes only what RFC 8785 requires: quote, backslash and
// control characters below U+0020.
func writeString(buf *bytes.Buffer, s string, canonical bool) {
	if canonical {
		s = norm.NFC.String(s)
	}
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xF])
		case r == utf8.RuneError && size == 1:
			buf.WriteString(`�`)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// formatFloat renders f the way ECMAScript Number.prototype.toString does:
// fixed notation for 1e-6 <= |f| < 1e21, exponent notation otherwise.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number: %v", f)
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits, nil
}
