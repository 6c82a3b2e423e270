package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/services/accounts"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Nickname string `json:"nickname" validate:"max=32"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Nickname *string `json:"nickname" validate:"omitempty,min=1,max=32"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=512"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

func (h *handler) registerAccountRoutes(api *mux.Router, public, private wrap) {
	api.Handle("/auth/register", h.limit(http.HandlerFunc(h.register))).Methods(http.MethodPost)
	api.Handle("/auth/login", h.limit(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	api.Handle("/auth/logout", private(h.logout)).Methods(http.MethodPost)

	api.Handle("/users/me", private(h.me)).Methods(http.MethodGet)
	api.Handle("/users/me", private(h.updateMe)).Methods(http.MethodPatch)
	api.Handle("/users/me/password", private(h.changePassword)).Methods(http.MethodPost)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.app.Accounts.Register(r.Context(), req.Username, req.Password, req.Nickname)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := h.app.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.Logout(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Accounts.Profile(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Nickname == nil && req.Avatar == nil {
		writeError(w, apperrors.Validation("nothing to update"))
		return
	}
	u, err := h.app.Accounts.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), accounts.ProfileUpdate{
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.app.Accounts.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
