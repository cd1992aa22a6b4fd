package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/users"
)

type createUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin employee"`
}

type updateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin employee"`
	Password string `json:"password,omitempty"`
}

type debtRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	list, err := h.svc.Users.List(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req createUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.svc.Users.Create(r.Context(), currentUserID(r), users.CreateInput{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.svc.Users.Update(r.Context(), currentUserID(r), id, users.UpdateInput{
		Name:     req.Name,
		Username: req.Username,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}
	if err := h.svc.Users.Delete(r.Context(), currentUserID(r), id); err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) adjustDebt(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}
	var req debtRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.svc.Users.AdjustDebt(r.Context(), currentUserID(r), id, req.Amount)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
