// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
)

// MaxBodyBytes bounds decoded request bodies.
const MaxBodyBytes = 1 << 20

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	ProblemWith(w, status, title, detail, nil)
}

// ProblemWith sends a problem document carrying extension members.
func ProblemWith(w http.ResponseWriter, status int, title, detail string, ext map[string]any) {
	w.Header().Set("Content-Type", "application/problem+json")
	body := ProblemDetail{Title: title, Status: status, Detail: detail}
	if len(ext) == 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
		return
	}
	doc := maps.Clone(ext)
	doc["title"] = body.Title
	doc["status"] = body.Status
	if body.Detail != "" {
		doc["detail"] = body.Detail
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// DecodeJSON decodes a JSON request body into target, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return Kinded(ErrValidation, fmt.Errorf("invalid request body: %w", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Kinded(ErrValidation, errors.New("invalid request body: trailing data"))
	}
	return nil
}

// ReadText reads a plain-text body up to MaxBodyBytes.
func ReadText(w http.ResponseWriter, r *http.Request) (string, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return "", Kinded(ErrValidation, fmt.Errorf("read body: %w", err))
	}
	return string(raw), nil
}
