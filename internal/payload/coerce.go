package payload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Supported data_types tags. Matching is case-sensitive.
const (
	TypeInt   = "int"
	TypeFloat = "float"
	TypeBool  = "bool"
	TypeStr   = "str"
)

// ErrUnsupportedType is returned by Coerce for a tag outside int, float,
// bool and str. The value is left untouched.
var ErrUnsupportedType = errors.New("unsupported data type")

// CoercionError reports a value that could not be converted to its tag.
type CoercionError struct {
	Value any
	Type  string
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert '%v' to %s: %v", e.Value, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// SupportedType reports whether tag is one of the recognised data types.
func SupportedType(tag string) bool {
	switch tag {
	case TypeInt, TypeFloat, TypeBool, TypeStr:
		return true
	}
	return false
}

// Coerce converts v to the scalar type named by tag.
//
// An empty tag is a no-op. An unsupported tag returns v with an error
// wrapping ErrUnsupportedType. A failed int or float conversion returns nil
// and a *CoercionError; bool and str never fail.
func Coerce(v any, tag string) (any, error) {
	switch tag {
	case "":
		return v, nil
	case TypeInt:
		return toInt(v)
	case TypeFloat:
		return toFloat(v)
	case TypeBool:
		return toBool(v), nil
	case TypeStr:
		return v, nil
	default:
		return v, fmt.Errorf("%w: %s", ErrUnsupportedType, tag)
	}
}

// toInt keeps integers and booleans as they are, truncates floats and
// parses everything else from its string form.
func toInt(v any) (any, error) {
	switch x := normalizeScalar(v).(type) {
	case int64, uint64, bool:
		return v, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &CoercionError{Value: v, Type: TypeInt, Err: strconv.ErrRange}
		}
		return int64(x), nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(stringForm(v)), 10, 64)
	if err != nil {
		return nil, &CoercionError{Value: v, Type: TypeInt, Err: err}
	}
	return n, nil
}

func toFloat(v any) (any, error) {
	switch x := normalizeScalar(v).(type) {
	case float64:
		return v, nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(stringForm(v)), 64)
	if err != nil {
		return nil, &CoercionError{Value: v, Type: TypeFloat, Err: err}
	}
	return f, nil
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return strings.ToLower(stringForm(v)) == "true"
}

// stringForm is the text a non-string value is parsed from.
func stringForm(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
