package dosage

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnparseable is wrapped by every ParseError.
var ErrUnparseable = errors.New("unparseable dosage text")

// ParseError reports which field could not be read and why.
type ParseError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dosage: cannot parse %s %q: %s", e.Field, e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrUnparseable }

func parseErr(field, input, reason string) error {
	return &ParseError{Field: field, Input: input, Reason: reason}
}

var bengaliDigits = strings.NewReplacer(
	"০", "0", "১", "1", "২", "2", "৩", "3", "৪", "4",
	"৫", "5", "৬", "6", "৭", "7", "৮", "8", "৯", "9",
)

// normalize lowercases, trims and converts Bengali digits to ASCII.
func normalize(s string) string {
	s = bengaliDigits.Replace(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".,;")
}

func isNumberRune(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.' || r == '/' || r == '½'
}

// splitNumber separates a leading numeric prefix from the rest of a token.
func splitNumber(s string) (num, rest string) {
	for i, r := range s {
		if !isNumberRune(r) {
			return s[:i], strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}

// parseNumber reads "2", "1.5", "1/2", "½" and "1½".
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	if strings.HasSuffix(s, "½") {
		whole := strings.TrimSuffix(s, "½")
		if whole == "" {
			return 0.5, true
		}
		w, ok := parseNumber(whole)
		if !ok || strings.ContainsAny(whole, "./") {
			return 0, false
		}
		return w + 0.5, true
	}
	if a, b, ok := strings.Cut(s, "/"); ok {
		num, err1 := strconv.ParseFloat(a, 64)
		den, err2 := strconv.ParseFloat(b, 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0, false
		}
		return num / den, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || v < 0 {
		return 0, false
	}
	return v, true
}
