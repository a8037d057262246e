package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     ResponseError `json:"error"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeRequest decodes a JSON body into target, rejecting unknown fields.
// On failure the 400 response has already been written.
func DecodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		message := "invalid JSON payload"
		var syntaxErr *json.SyntaxError
		if errors.Is(err, io.EOF) {
			message = "request body is required"
		} else if errors.As(err, &syntaxErr) {
			message = "malformed JSON payload"
		} else if strings.HasPrefix(err.Error(), "json: unknown field") {
			message = strings.TrimPrefix(err.Error(), "json: ")
		}
		WriteError(w, r, http.StatusBadRequest, "invalid_json", message)
		return false
	}
	return true
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		RequestID: RequestID(r),
		Error:     ResponseError{Code: code, Message: message},
	})
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, "not_found", "resource not found")
}

func Internal(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
}

func IsValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func RequestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

// PathParts returns the slash separated segments after prefix.
func PathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
