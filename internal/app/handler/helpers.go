// Package handler contains the HTTP handlers of the URL shortener: decoding
// submissions from form or JSON bodies, answering with the JSON documents the
// clients expect and redirecting short identifiers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/models"
)

const maxBodyBytes = 1 << 20

const (
	errInvalidURL = "invalid url"
	errNoShortURL = "No short URL found"
)

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int
	msg    string
}

func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a single JSON object from the request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &maxBytesError):
			msg := "Request body must not be larger than 1MB"
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: msg}

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &malformedRequest{status: http.StatusBadRequest, msg: msg}
	}

	return nil
}

// readSubmittedURL extracts the "url" field from a JSON, urlencoded or
// multipart body. A body without the field, a JSON document that is not an
// object and a non-string "url" value all yield an empty string. Only
// unreadable bodies are errors.
func readSubmittedURL(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var raw json.RawMessage
		if err := decodeJSONBody(w, r, &raw); err != nil {
			return "", err
		}

		var request models.Request
		if err := json.Unmarshal(raw, &request); err != nil {
			return "", nil
		}
		return request.Candidate(), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", &malformedRequest{status: http.StatusBadRequest, msg: "Request body is not a valid form"}
		}
	} else if err := r.ParseForm(); err != nil {
		return "", &malformedRequest{status: http.StatusBadRequest, msg: "Request body is not a valid form"}
	}

	return r.PostFormValue("url"), nil
}

func writeJSON(res http.ResponseWriter, logger *zap.Logger, status int, v any) {
	response, err := json.Marshal(v)
	if err != nil {
		logger.Error("cannot encode response", zap.Error(err))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json; charset=utf-8")
	res.WriteHeader(status)

	if _, err := res.Write(response); err != nil {
		logger.Debug("cannot write response", zap.Error(err))
	}
}

func writeMalformed(res http.ResponseWriter, logger *zap.Logger, err error) {
	var mr *malformedRequest
	if errors.As(err, &mr) {
		http.Error(res, mr.msg, mr.status)
		return
	}

	logger.Error("cannot read request", zap.Error(err))
	http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeError(res http.ResponseWriter, logger *zap.Logger, msg string) {
	writeJSON(res, logger, http.StatusOK, models.ErrorResponse{Error: msg})
}
