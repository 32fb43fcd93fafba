package datastore

import (
	"math"
	"strconv"
	"strings"

	"github.com/rcanpahali/BirdNet/internal/errors"
)

// NormalizeOptional maps a finite number to a copy of itself and anything
// else (nil, NaN, ±Inf) to nil. Every optional numeric column goes through it.
func NormalizeOptional(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	f := *v
	return &f
}

// ParseOptionalFloat interprets a form value as an optional number. The
// longest leading decimal literal is used, so "35.4abc" is 35.4 and "12 N"
// is 12. Blank input, input without a leading number and non-finite results
// are absent.
func ParseOptionalFloat(raw string) *float64 {
	prefix := decimalPrefix(strings.TrimSpace(raw))
	if prefix == "" {
		return nil
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil
	}
	return NormalizeOptional(&f)
}

// decimalPrefix returns the longest prefix of s of the form
// [+-]digits[.digits][(e|E)[+-]digits] with at least one mantissa digit.
func decimalPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
		if digits > 0 {
			i = j
		}
	}
	if digits == 0 {
		return ""
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > start {
			i = j
		}
	}
	return s[:i]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
