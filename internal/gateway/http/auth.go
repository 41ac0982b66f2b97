package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatterhq/gateway/internal/gateway/metrics"
	"github.com/chatterhq/gateway/internal/gateway/service"
	"github.com/chatterhq/gateway/pkg/httpx"
)

// LoginHandler serves POST /api/auth/login.
type LoginHandler struct {
	Auth      *service.AuthService
	Collector *metrics.Collector
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	session, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLogin(errorCode(err))
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		case errors.Is(err, service.ErrOAuthOnlyAccount):
			httpx.WriteError(w, http.StatusConflict, "oauth_only_account", "this account signs in with an identity provider")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "login failed")
		}
		return
	}

	h.recordLogin("success")
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *LoginHandler) recordLogin(outcome string) {
	if h.Collector != nil {
		h.Collector.RecordLogin(outcome)
	}
}

// RegisterHandler serves POST /api/auth/register.
type RegisterHandler struct {
	Auth *service.AuthService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	session, err := h.Auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_email", "email address is not valid")
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "weak_password", "password is too short")
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "registration failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

// RefreshHandler serves POST /api/auth/refresh.
type RefreshHandler struct {
	Tokens *service.TokenService
}

type refreshRequest struct {
	Token string `json:"token"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token field is required")
		return
	}

	session, err := h.Tokens.Refresh(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExpiredToken):
			httpx.WriteError(w, http.StatusUnauthorized, "expired_token", "session has expired, sign in again")
		case errors.Is(err, service.ErrInvalidToken):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "token could not be verified")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "refresh failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

// errorCode reduces a service error to its sentinel string for metrics
// labels.
func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, service.ErrOAuthOnlyAccount):
		return "oauth_only_account"
	default:
		return "server_error"
	}
}
