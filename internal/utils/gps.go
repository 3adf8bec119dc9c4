package utils

import (
	"fmt"
	"strconv"
)

// ParseGPS returns a GPS timestamp in seconds from the provided string or
// an error.
func ParseGPS(value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty GPS value")
	}
	t, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse GPS time %q: %w", value, err)
	}
	if t < 0 {
		return 0, fmt.Errorf("negative GPS time %q", value)
	}
	return t, nil
}

// FormatGPS renders a GPS timestamp without a trailing fractional part when
// the value is a whole number of seconds.
func FormatGPS(t float64) string {
	if t == float64(int64(t)) {
		return strconv.FormatInt(int64(t), 10)
	}
	return strconv.FormatFloat(t, 'f', -1, 64)
}
