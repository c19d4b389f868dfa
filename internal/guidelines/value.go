package guidelines

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the interpretation of a stored guideline string.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindJSON:
		return "json"
	default:
		return "string"
	}
}

// Value is a decoded guideline. Raw always holds the stored text.
type Value struct {
	Kind Kind
	Raw  string
	Bool bool
	Int  int64
	JSON any
}

// Decode interprets raw with the precedence bool, int, JSON, string. A
// value that looks like JSON but fails to parse is returned as a string
// together with the parse error.
func Decode(raw string) (Value, error) {
	switch {
	case strings.EqualFold(raw, "true"):
		return Value{Kind: KindBool, Raw: raw, Bool: true}, nil
	case strings.EqualFold(raw, "false"):
		return Value{Kind: KindBool, Raw: raw, Bool: false}, nil
	case isDigits(raw):
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{Kind: KindString, Raw: raw}, fmt.Errorf("parse int %q: %w", raw, err)
		}
		return Value{Kind: KindInt, Raw: raw, Int: n}, nil
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return Value{Kind: KindString, Raw: raw}, fmt.Errorf("parse json: %w", err)
		}
		return Value{Kind: KindJSON, Raw: raw, JSON: v}, nil
	default:
		return Value{Kind: KindString, Raw: raw}, nil
	}
}

// MustDecode decodes raw and drops the parse error.
func MustDecode(raw string) Value {
	v, _ := Decode(raw)
	return v
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Encode converts a typed value to its stored text form. It is the inverse
// of Decode for bools, non-negative integers, strings and JSON structures.
func Encode(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", fmt.Errorf("nil value")
	case Value:
		return val.Raw, nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		// JSON request bodies decode every number as float64
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case json.Number:
		return val.String(), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("encode %T: %w", v, err)
		}
		return string(b), nil
	}
}

func (v Value) String() string { return v.Raw }

// Interface returns the decoded Go value.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindJSON:
		return v.JSON
	default:
		return v.Raw
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
