package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/service"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/pkg/httpx"
)

// AdminUsersHandler covers the admin account-management endpoints.
type AdminUsersHandler struct {
	Users *service.UserService
}

type userListResponse struct {
	Users []UserResponse `json:"users"`
	Total int64          `json:"total"`
}

func (h *AdminUsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := h.Users.List(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not list users")
		return
	}

	resp := userListResponse{
		Users: make([]UserResponse, 0, len(page.Users)),
		Total: page.Total,
	}
	for _, u := range page.Users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminUsersHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	// Admins cannot demote themselves; it's too easy to lock the last
	// admin out.
	targetID := r.PathValue("id")
	if targetID == httpx.UserIDFromContext(r.Context()) {
		httpx.WriteError(w, http.StatusConflict, "self_demotion", "cannot change your own role")
		return
	}

	err := h.Users.SetRole(r.Context(), targetID, domain.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_role", "role must be user or admin")
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no such user")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "role change failed")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminUsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("id")
	if targetID == httpx.UserIDFromContext(r.Context()) {
		httpx.WriteError(w, http.StatusConflict, "self_deletion", "cannot delete your own account here")
		return
	}

	if err := h.Users.Delete(r.Context(), targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no such user")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "delete failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
