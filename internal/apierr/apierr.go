// Package apierr writes API error responses in a uniform JSON format:
// {"error": {"code": "...", "message": "..."}}.
package apierr

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeNotFound           = "NOT_FOUND"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write sends an error response with the given HTTP status, code and message.
func Write(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError - 400, malformed or invalid input.
func ValidationError(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, CodeValidationError, message)
}

// FileTooLarge - 400, payload exceeds the configured ceiling.
func FileTooLarge(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, CodeFileTooLarge, message)
}

// NotFound - 404, unknown session id or missing backing artifact.
func NotFound(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, CodeNotFound, message)
}

// PreconditionFailed - 400, operation requested out of order
// (e.g. correct before check).
func PreconditionFailed(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, CodePreconditionFailed, message)
}

// AuthFailed - 401, bad password or missing/invalid token.
func AuthFailed(w http.ResponseWriter, message string) {
	Write(w, http.StatusUnauthorized, CodeAuthFailed, message)
}

// InternalError - 500, storage I/O or analyzer/rewriter failure.
func InternalError(w http.ResponseWriter, message string) {
	Write(w, http.StatusInternalServerError, CodeInternalError, message)
}
