// Package models defines the request and response data structures used
// for communication between clients and the URL shortener service.
package models

// Request represents a request to shorten a URL.
type Request struct {
	// URL is the candidate URL as typed by the client. Clients may send any
	// JSON value; only strings are candidates.
	URL any `json:"url"`
}

// Candidate returns URL when it is a string and "" otherwise.
func (r Request) Candidate() string {
	s, _ := r.URL.(string)
	return s
}

// Response is returned for a successful submission.
type Response struct {
	// OriginalURL is the canonical form of the submitted URL.
	OriginalURL string `json:"original_url"`

	// ShortURL is the numeric short identifier.
	ShortURL int64 `json:"short_url"`
}

// ErrorResponse carries a non-fatal rejection.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Stats reports the size of the registry.
type Stats struct {
	URLs int `json:"urls"`
}
