package util

import (
	"strconv"
)

func StringPtr(s string) *string {
	return &s
}

func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func DerefInt(i *int, def int) int {
	if i == nil {
		return def
	}
	return *i
}

// AtoiDefault parses a query value, returning def when the value is empty.
func AtoiDefault(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
