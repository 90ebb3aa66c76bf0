package models

import (
	"fmt"
	"strings"
)

const (
	FetchCodeLength = 6
	FetchCodeMin    = 100000
	FetchCodeMax    = 999999
)

// FetchCode is the six-digit key grouping one upload batch.
type FetchCode string

func (c FetchCode) String() string {
	return string(c)
}

// ParseFetchCode validates a raw code: exactly six ASCII digits, no leading zero.
func ParseFetchCode(raw string) (FetchCode, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("unique code is required")
	}
	if len(value) != FetchCodeLength {
		return "", fmt.Errorf("unique code must be %d digits", FetchCodeLength)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("unique code must be %d digits", FetchCodeLength)
		}
	}
	if value[0] == '0' {
		return "", fmt.Errorf("invalid unique code: %s", value)
	}
	return FetchCode(value), nil
}
