package fingerprint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// encodeOrdered re-encodes a JSON document compactly, with object members in
// the order a JavaScript engine enumerates them after parsing: array-index
// keys first in ascending numeric order, then the remaining keys in document
// order. A repeated key keeps its first position and takes its last value.
func encodeOrdered(doc []byte) ([]byte, error) {
	return encodeDocument(doc, nil)
}

// encodeFiltered re-encodes a JSON document like encodeOrdered, except that
// every object only carries the members named in keys, written in keys order.
// This is how a property-list replacer applies to nested values.
func encodeFiltered(doc []byte, keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	return encodeDocument(doc, keys)
}

func encodeDocument(doc []byte, keys []string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := writeValue(&buf, dec, keys); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return buf.Bytes(), nil
}

type member struct {
	key   string
	value []byte
}

func writeValue(buf *bytes.Buffer, dec *json.Decoder, keys []string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			members, err := readMembers(dec, keys)
			if err != nil {
				return err
			}
			buf.WriteByte('{')
			for i, m := range members {
				if i > 0 {
					buf.WriteByte(',')
				}
				writeString(buf, m.key)
				buf.WriteByte(':')
				buf.Write(m.value)
			}
			buf.WriteByte('}')
		case '[':
			buf.WriteByte('[')
			for first := true; dec.More(); first = false {
				if !first {
					buf.WriteByte(',')
				}
				if err := writeValue(buf, dec, keys); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
			buf.WriteByte(']')
		default:
			return fmt.Errorf("unexpected delimiter %v", v)
		}
	case string:
		writeString(buf, v)
	case json.Number:
		s, err := formatNumber(v)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %T", tok)
	}
	return nil
}

// readMembers consumes the members of an object up to and including its
// closing brace and returns them in output order.
func readMembers(dec *json.Decoder, keys []string) ([]member, error) {
	var members []member
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", keyTok)
		}

		var value bytes.Buffer
		if err := writeValue(&value, dec, keys); err != nil {
			return nil, err
		}
		if i, seen := index[key]; seen {
			members[i].value = value.Bytes()
			continue
		}
		index[key] = len(members)
		members = append(members, member{key: key, value: value.Bytes()})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	if keys != nil {
		filtered := make([]member, 0, len(keys))
		for _, key := range keys {
			if i, ok := index[key]; ok {
				filtered = append(filtered, members[i])
			}
		}
		return filtered, nil
	}

	sort.SliceStable(members, func(i, j int) bool {
		a, aIndex := arrayIndex(members[i].key)
		b, bIndex := arrayIndex(members[j].key)
		if aIndex && bIndex {
			return a < b
		}
		return aIndex && !bIndex
	})
	return members, nil
}

// arrayIndex reports whether key is the canonical decimal form of an integer
// in [0, 2^32-2].
func arrayIndex(key string) (uint64, bool) {
	if key == "" || len(key) > 10 || (key[0] == '0' && len(key) > 1) {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 64)
	if err != nil || n >= math.MaxUint32 {
		return 0, false
	}
	return n, true
}

// writeString writes s as a JSON string literal. Only the quote, the
// backslash and control characters are escaped; everything else, including
// HTML-significant characters and non-ASCII text, is written as is.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				buf.WriteString(`\"`)
			case '\\':
				buf.WriteString(`\\`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			case '\t':
				buf.WriteString(`\t`)
			default:
				if c < 0x20 {
					buf.WriteString(`\u00`)
					buf.WriteByte(hexDigits[c>>4])
					buf.WriteByte(hexDigits[c&0xf])
				} else {
					buf.WriteByte(c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// formatNumber renders a JSON number as an IEEE double in ECMAScript
// Number-to-String form: plain decimal for magnitudes in [1e-6, 1e21),
// exponent form otherwise, and null for values that overflow to infinity.
func formatNumber(n json.Number) (string, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return "", err
		}
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null", nil
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
