// Package auth wires the session lifecycle endpoints: login, logout,
// explicit degraded-state retry, identity readback, and profile self-update.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/impersonation"
	"github.com/sitelink-erp/sitelink/internal/platform/httpx"
	"github.com/sitelink-erp/sitelink/internal/rbac"
	"github.com/sitelink-erp/sitelink/internal/session"
)

// Handler exposes the auth endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  *session.Registry
	selectors *impersonation.Selectors
	cookies   *session.Cookies
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registry *session.Registry, selectors *impersonation.Selectors, cookies *session.Cookies) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		registry:  registry,
		selectors: selectors,
		cookies:   cookies,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	loginLimiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.With(loginLimiter).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/retry", h.handleRetry)
	r.Get("/me", h.handleMe)
	r.Put("/profile", h.handleProfile)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type profileRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

type sessionResponse struct {
	State          session.State `json:"state"`
	User           *erpapi.User  `json:"user,omitempty"`
	CanImpersonate bool          `json:"can_impersonate"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sid := h.cookies.Ensure(w, r)
	resolver := h.registry.For(sid)
	user, err := resolver.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, erpapi.ErrAuthRejected):
			// Wrong password is not an outage; the messages must differ.
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "email or password is incorrect")
		case errors.Is(err, erpapi.ErrUnreachable):
			httpx.RetryableProblem(w, http.StatusServiceUnavailable, "Login Unavailable", "could not reach the identity service, try again")
		default:
			h.logger.Error("login", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	// A fresh login always starts with an empty impersonation selection.
	h.selectors.Drop(sid)
	httpx.JSON(w, http.StatusOK, sessionResponse{
		State:          session.StateAuthenticated,
		User:           user,
		CanImpersonate: rbac.CanImpersonate(user.Role),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.cookies.SessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no session")
		return
	}
	resolver := h.registry.For(sid)
	if err := resolver.Resolve(r.Context()); err != nil {
		h.respondResolveError(w, err)
		return
	}
	user, _ := resolver.User()
	httpx.JSON(w, http.StatusOK, sessionResponse{
		State:          session.StateAuthenticated,
		User:           user,
		CanImpersonate: user != nil && rbac.CanImpersonate(user.Role),
	})
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.cookies.SessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no session")
		return
	}
	resolver := h.registry.For(sid)
	if err := resolver.RetryAuth(r.Context()); err != nil {
		if errors.Is(err, session.ErrNotDegraded) {
			httpx.Problem(w, http.StatusConflict, "Invalid State", "retry is only available while the identity service is unreachable")
			return
		}
		h.respondResolveError(w, err)
		return
	}
	user, _ := resolver.User()
	httpx.JSON(w, http.StatusOK, sessionResponse{
		State:          session.StateAuthenticated,
		User:           user,
		CanImpersonate: user != nil && rbac.CanImpersonate(user.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := h.cookies.SessionID(r); ok {
		h.registry.For(sid).Logout(r.Context())
		h.registry.Drop(sid)
		h.selectors.Drop(sid)
	}
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.cookies.SessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no session")
		return
	}
	var form profileRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	resolver := h.registry.For(sid)
	if err := resolver.Resolve(r.Context()); err != nil {
		h.respondResolveError(w, err)
		return
	}
	user, err := resolver.UpdateProfile(r.Context(), erpapi.ProfileUpdate{
		Name:   form.Name,
		Email:  form.Email,
		Avatar: form.Avatar,
	})
	if err != nil {
		switch {
		case errors.Is(err, erpapi.ErrAuthRejected):
			resolver.Invalidate(r.Context())
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "session expired")
		case errors.Is(err, erpapi.ErrUnreachable):
			httpx.RetryableProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "could not reach the identity service")
		default:
			h.logger.Error("update profile", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) respondResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "login required")
	case errors.Is(err, session.ErrDegraded):
		httpx.RetryableProblem(w, http.StatusServiceUnavailable, "Identity Unavailable", "your session is preserved, retry or log out")
	default:
		h.logger.Error("resolve session", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
