package storage

import "errors"

// ErrNotFound is returned when no record matches the requested identifier.
var ErrNotFound = errors.New("not found")

// URLRecord binds a canonical URL to its short identifier.
type URLRecord struct {
	ID       int64  `json:"short_url"`
	Original string `json:"original_url"`
}
