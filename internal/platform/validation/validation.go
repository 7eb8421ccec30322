// Package validation collects field-keyed input errors.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
)

// Errors maps a field path such as "items[1].discount" to a message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e Errors) Addf(field, format string, args ...interface{}) {
	e.Add(field, fmt.Sprintf(format, args...))
}

func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Err returns nil when no errors were recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Required records "is required" when value is blank.
func (e Errors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
	}
}

// OneOf records an error when value is not in allowed. Blank values pass.
func (e Errors) OneOf(field, value string, allowed map[string]bool) {
	if value != "" && !allowed[value] {
		e.Add(field, "must be one of "+joinKeys(allowed))
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

// Phone records an error for values that are not 6 to 15 digits with an
// optional leading plus. Spaces and dashes are ignored.
func (e Errors) Phone(field, value string) {
	if value == "" {
		return
	}
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(value)
	if !phonePattern.MatchString(cleaned) {
		e.Add(field, "is not a valid phone number")
	}
}

func (e Errors) Email(field, value string) {
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		e.Add(field, "is not a valid email address")
	}
}

// Field builds "list[i].name".
func Field(list string, i int, name string) string {
	return fmt.Sprintf("%s[%d].%s", list, i, name)
}

// As extracts Errors from err.
func As(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func joinKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
