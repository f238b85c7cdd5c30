package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-account/pkg/simpleaccount"
)

// AuthHandler exchanges credentials for bearer tokens
type AuthHandler struct {
	authenticator   simpleaccount.Authenticator
	signInPerMinute int
}

// NewAuthHandler creates a new auth handler. signInPerMinute limits attempts
// per client; zero disables the limit.
func NewAuthHandler(authenticator simpleaccount.Authenticator, signInPerMinute int) *AuthHandler {
	return &AuthHandler{authenticator: authenticator, signInPerMinute: signInPerMinute}
}

// Routes returns the routes for authentication
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.signInPerMinute > 0 {
		r.Use(RateLimitMiddleware(h.signInPerMinute, time.Minute))
	}
	r.Post("/token", h.IssueToken)
	return r
}

// TokenRequest is the request body for signing in
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token
type TokenResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// IssueToken signs in with email and password
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Email == "" || req.Password == "" {
		renderError(w, r, http.StatusBadRequest, CodeInvalidRequest, "email and password are required")
		return
	}

	token, err := h.authenticator.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, TokenResponse{Success: true, AccessToken: token, TokenType: "Bearer"})
}
