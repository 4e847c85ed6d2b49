// Package bytesize parses and formats byte sizes such as "100MB" or "1.5Gi".
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Binary byte size units.
const (
	B  int64 = 1
	KB int64 = 1024
	MB int64 = 1024 * KB
	GB int64 = 1024 * MB
	TB int64 = 1024 * GB
)

// sizePattern matches "100MB", "1.5 GB", "1024".
var sizePattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]*)\s*$`)

// Parse converts a size string into bytes. Units are case-insensitive:
// B, K/KB/Ki, M/MB/Mi, G/GB/Gi, T/TB/Ti, all binary. A bare number is bytes.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %q", matches[1])
	}

	var multiplier int64
	switch strings.ToUpper(matches[2]) {
	case "", "B":
		multiplier = B
	case "KB", "K", "KI":
		multiplier = KB
	case "MB", "M", "MI":
		multiplier = MB
	case "GB", "G", "GI":
		multiplier = GB
	case "TB", "T", "TI":
		multiplier = TB
	default:
		return 0, fmt.Errorf("unknown unit: %q", matches[2])
	}

	return int64(value * float64(multiplier)), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) int64 {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders a byte count with two decimals in the largest fitting unit.
func Format(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	units := []struct {
		threshold int64
		unit      string
	}{
		{TB, "TB"},
		{GB, "GB"},
		{MB, "MB"},
		{KB, "KB"},
	}
	for _, u := range units {
		if bytes >= u.threshold {
			return fmt.Sprintf("%.2f %s", float64(bytes)/float64(u.threshold), u.unit)
		}
	}

	return fmt.Sprintf("%d B", bytes)
}

// Size is a byte count that unmarshals from YAML as either a plain integer or
// a string with units ("512Mi", "2GB").
type Size int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int64
	if err := unmarshal(&i); err == nil {
		*s = Size(i)
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return fmt.Errorf("size must be a number or string with units (e.g., 512Mi, 2GB)")
	}
	bytes, err := Parse(str)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", str, err)
	}
	*s = Size(bytes)
	return nil
}

// Bytes returns the size in bytes.
func (s Size) Bytes() int64 {
	return int64(s)
}

// String returns a human-readable representation.
func (s Size) String() string {
	return Format(int64(s))
}
