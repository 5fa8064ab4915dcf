package robovac

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInt
	KindStr
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindStr:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a single decoded datapoint: Unknown, Int, Str or Bool.
// The zero Value is Unknown.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    bool
}

// Unknown returns the Unknown variant.
func Unknown() Value { return Value{} }

// Int returns an Int variant.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Str returns a Str variant.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// Bool returns a Bool variant.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the variant held.
func (v Value) Kind() Kind { return v.kind }

// Known reports whether v holds anything other than Unknown.
func (v Value) Known() bool { return v.kind != KindUnknown }

// AsInt returns the integer and true when v is an Int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsStr returns the string and true when v is a Str.
func (v Value) AsStr() (string, bool) { return v.s, v.kind == KindStr }

// AsBool returns the boolean and true when v is a Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// Integer returns v as an integer, also accepting a Str holding a decimal
// integer. Devices on older firmware report numeric datapoints as strings.
func (v Value) Integer() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindStr:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindStr:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "unknown"
	}
}

// ValueOf classifies a raw payload value. Floats without a fractional part
// become Int; anything that is not a number, string or bool is Unknown.
func ValueOf(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Unknown()
	case bool:
		return Bool(x)
	case string:
		return Str(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int(n)
		}
		if f, err := x.Float64(); err == nil {
			return fromFloat(f)
		}
		return Unknown()
	default:
		return Unknown()
	}
}

func fromFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Unknown()
	}
	// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return Unknown()
	}
	return Int(int64(f))
}

// describe is used in decode diagnostics.
func describe(raw any) string {
	if raw == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", raw)
}
