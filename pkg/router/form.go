package router

import (
	"net/url"
	"strings"
)

// Field is a single form key/value pair.
type Field struct {
	Key   string
	Value string
}

// Form is an ordered list of form fields. The router's form processor is
// positional, so fields are encoded in insertion order and never sorted.
type Form []Field

// Add appends a field and returns the extended form.
func (f Form) Add(key, value string) Form {
	return append(f, Field{Key: key, Value: value})
}

// Get returns the value of the first field with the given key.
func (f Form) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Encode renders the form as application/x-www-form-urlencoded in field order.
func (f Form) Encode() string {
	var sb strings.Builder
	for i, field := range f {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(field.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(field.Value))
	}
	return sb.String()
}
