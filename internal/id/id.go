// Package id generates record identifiers.
package id

import "github.com/google/uuid"

// New returns a new random record ID.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a record ID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
