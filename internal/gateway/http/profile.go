package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatterhq/gateway/internal/gateway/service"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/pkg/httpx"
)

// ProfileHandler serves the signed-in user's own account.
type ProfileHandler struct {
	Profiles *service.ProfileService
}

func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.Profiles.Get(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "account no longer exists")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not load profile")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type profilePatchRequest struct {
	Name        *string         `json:"name"`
	Picture     *string         `json:"picture"`
	Preferences json.RawMessage `json:"preferences"`
}

func (h *ProfileHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var req profilePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	user, err := h.Profiles.Update(r.Context(), httpx.UserIDFromContext(r.Context()), service.ProfileUpdate{
		Name:        req.Name,
		Picture:     req.Picture,
		Preferences: req.Preferences,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidProfileName):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_name", "name must not be blank")
		case errors.Is(err, service.ErrInvalidPreferences):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_preferences", "preferences must be a JSON object")
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "account no longer exists")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "profile update failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
