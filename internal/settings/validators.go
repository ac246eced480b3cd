package settings

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Validator checks a candidate value. A nil error accepts it; otherwise the
// error message is the rejection reason.
type Validator func(value any) error

// OneOf accepts values equal to one of allowed. Numbers compare by value
// regardless of their Go type.
func OneOf(allowed ...any) Validator {
	return func(value any) error {
		for _, candidate := range allowed {
			if valuesEqual(candidate, value) {
				return nil
			}
		}
		parts := make([]string, 0, len(allowed))
		for _, candidate := range allowed {
			parts = append(parts, fmt.Sprint(candidate))
		}
		return fmt.Errorf("must be one of %s", strings.Join(parts, ", "))
	}
}

// IntRange accepts integers in [minValue, maxValue]. Floats with no fractional
// part count as integers.
func IntRange(minValue, maxValue int) Validator {
	return func(value any) error {
		n, ok := asInt(value)
		if !ok {
			return fmt.Errorf("must be an integer")
		}
		if n < int64(minValue) || n > int64(maxValue) {
			return fmt.Errorf("must be between %d and %d", minValue, maxValue)
		}
		return nil
	}
}

// IntMin accepts integers no smaller than minValue.
func IntMin(minValue int) Validator {
	return func(value any) error {
		n, ok := asInt(value)
		if !ok {
			return fmt.Errorf("must be an integer")
		}
		if n < int64(minValue) {
			return fmt.Errorf("must be at least %d", minValue)
		}
		return nil
	}
}

// FloatRange accepts any number in [minValue, maxValue].
func FloatRange(minValue, maxValue float64) Validator {
	return func(value any) error {
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("must be a number")
		}
		if f < minValue || f > maxValue {
			return fmt.Errorf("must be between %g and %g", minValue, maxValue)
		}
		return nil
	}
}

// IsString accepts string values.
func IsString(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("must be a string")
	}
	return nil
}

// IsBool accepts bool values.
func IsBool(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("must be a boolean")
	}
	return nil
}

// IsStringList accepts []string and []any whose elements are all strings.
func IsStringList(value any) error {
	if _, ok := toStringSlice(value); !ok {
		return fmt.Errorf("must be a list of strings")
	}
	return nil
}

// All combines validators; the first rejection wins.
func All(validators ...Validator) Validator {
	return func(value any) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func asInt(value any) (int64, bool) {
	if value == nil {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanInt():
		return rv.Int(), true
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// coerce converts value to the Go shape of like when both are numbers of
// different types or when like is a []string and value a list of strings.
// Anything else is returned unchanged.
func coerce(value, like any) any {
	if value == nil || like == nil {
		return value
	}
	lt := reflect.TypeOf(like)
	vt := reflect.TypeOf(value)
	if lt == vt {
		return value
	}
	if _, ok := like.([]string); ok {
		if s, ok := toStringSlice(value); ok {
			return s
		}
		return value
	}
	lk, vk := lt.Kind(), vt.Kind()
	switch {
	case isIntKind(lk) && (isIntKind(vk) || isFloatKind(vk)):
		n, ok := asInt(value)
		if !ok || (n < 0 && reflect.Zero(lt).CanUint()) {
			return value
		}
		return reflect.ValueOf(n).Convert(lt).Interface()
	case isFloatKind(lk) && (isIntKind(vk) || isFloatKind(vk)):
		f, _ := asFloat(value)
		return reflect.ValueOf(f).Convert(lt).Interface()
	}
	return value
}
