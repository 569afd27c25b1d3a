package excel

import (
	"strconv"
)

// A cell value is one of: nil (blank), string, int64, float64, bool.
// Readers in this package never produce any other type.

// CellString renders a cell the way a person reading the sheet would write
// it: integral numbers without a decimal point, blanks as "".
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// IsBlank reports whether a cell carries no answer: nil, an empty string,
// numeric zero or false.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int64:
		return x == 0
	case int:
		return x == 0
	case float64:
		return x == 0
	case bool:
		return !x
	default:
		return false
	}
}

// numeric converts a raw numeric cell string to int64 when it is integral
// and to float64 otherwise.
func numeric(raw string) (any, bool) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	if f == float64(int64(f)) {
		return int64(f), true
	}
	return f, true
}
