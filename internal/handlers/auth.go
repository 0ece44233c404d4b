package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/apierr"
	"github.com/hyunwoo/slidecheck/internal/auth"
)

// AuthHandler verifies the shared secret and issues a session token.
type AuthHandler struct {
	password string
	tokens   *auth.TokenManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(password string, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		password: password,
		tokens:   tokens,
	}
}

// AuthRequest is the POST /api/auth request body
type AuthRequest struct {
	Password string `json:"password"`
}

// AuthResponse is the successful authentication response
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// ServeHTTP handles POST /api/auth
func (ah *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, span := tracer.Start(ctx, "authenticate",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.ValidationError(w, "invalid request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(ah.password)) != 1 {
		log.Printf("Authentication failed")
		apierr.AuthFailed(w, "invalid password")
		return
	}

	token, err := ah.tokens.Issue()
	if err != nil {
		span.RecordError(err)
		apierr.InternalError(w, "failed to issue token")
		return
	}

	log.Printf("Authentication succeeded, token issued")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{
		Success: true,
		Token:   token,
		Message: "authentication successful",
	})
}
