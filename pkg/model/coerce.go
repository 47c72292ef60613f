// pkg/model/coerce.go
package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateFormats are the layouts tried, in order, when parsing date-like
// cell values.
var DateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"2006/01/02",
}

// ToString converts a cell value to string
func ToString(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ToInt attempts to convert a cell value to int64
func ToInt(v interface{}) (int64, error) {
	if v == nil {
		return 0, errors.New("nil value")
	}

	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > uint64(math.MaxInt64) {
			return 0, errors.New("uint64 value overflow for int64")
		}
		return int64(val), nil
	case float32:
		return int64(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("float %v has a fractional part", val)
		}
		return int64(val), nil
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return 0, errors.New("empty string")
		}
		return strconv.ParseInt(cleaned, 10, 64)
	case []byte:
		return ToInt(string(val))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

// ToFloat attempts to convert a cell value to float64
func ToFloat(v interface{}) (float64, error) {
	if v == nil {
		return 0, errors.New("nil value")
	}

	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err := ToInt(val)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return 0, errors.New("empty string")
		}
		return strconv.ParseFloat(cleaned, 64)
	case []byte:
		return ToFloat(string(val))
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// ToBool attempts to convert a cell value to bool
func ToBool(v interface{}) (bool, error) {
	if v == nil {
		return false, errors.New("nil value")
	}

	switch val := v.(type) {
	case bool:
		return val, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, _ := ToInt(val)
		return i != 0, nil
	case string:
		cleaned := strings.TrimSpace(strings.ToLower(val))
		switch cleaned {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		default:
			return false, fmt.Errorf("cannot parse %q as boolean", val)
		}
	default:
		return false, fmt.Errorf("cannot convert %T to bool", v)
	}
}

// ToTime attempts to convert a cell value to time.Time, trying each
// known layout in order.
func ToTime(v interface{}) (time.Time, error) {
	if v == nil {
		return time.Time{}, errors.New("nil value")
	}

	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return time.Time{}, errors.New("empty string")
		}

		for _, format := range DateFormats {
			if t, err := time.Parse(format, cleaned); err == nil {
				return t, nil
			}
		}

		return time.Time{}, fmt.Errorf("cannot parse time from %q", cleaned)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}

// MatchDateFormat returns the first layout that parses the value, or
// "" when none does.
func MatchDateFormat(s string) string {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return ""
	}
	for _, format := range DateFormats {
		if _, err := time.Parse(format, cleaned); err == nil {
			return format
		}
	}
	return ""
}

// InferType infers the semantic type of a single non-nil cell value.
// Strings are probed for stricter types first, so "42" infers as
// integer and "2024-01-15" as datetime.
func InferType(v interface{}) ColumnType {
	switch val := v.(type) {
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32:
		return TypeFloat
	case float64:
		if val == math.Trunc(val) {
			return TypeInteger
		}
		return TypeFloat
	case time.Time:
		return TypeDateTime
	case string:
		cleaned := strings.TrimSpace(val)
		if cleaned == "" {
			return TypeString
		}
		if _, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return TypeInteger
		}
		if _, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return TypeFloat
		}
		lower := strings.ToLower(cleaned)
		if lower == "true" || lower == "false" {
			return TypeBoolean
		}
		if MatchDateFormat(cleaned) != "" {
			return TypeDateTime
		}
		return TypeString
	default:
		return TypeString
	}
}
