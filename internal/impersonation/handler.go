package impersonation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/platform/httpx"
	"github.com/sitelink-erp/sitelink/internal/session"
)

// UserLister is the slice of the upstream client the handler needs.
type UserLister interface {
	ListUsers(ctx context.Context, token string) ([]erpapi.User, error)
}

// Handler exposes the impersonation endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  *session.Registry
	selectors *Selectors
	cookies   *session.Cookies
	api       UserLister
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registry *session.Registry, selectors *Selectors, cookies *session.Cookies, api UserLister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		registry:  registry,
		selectors: selectors,
		cookies:   cookies,
		api:       api,
		validator: validator.New(),
	}
}

// MountRoutes registers impersonation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.handleUsers)
	r.Post("/select", h.handleSelect)
	r.Post("/reset", h.handleReset)
}

type selectRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type selectionResponse struct {
	Available bool        `json:"available"`
	Target    erpapi.User `json:"target"`
	Explicit  bool        `json:"explicit"`
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	resolver, sid, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	user, _ := resolver.User()
	selector := h.selectors.For(sid, *user)
	if !selector.AvailableToSelect() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role may not view other users")
		return
	}
	users, err := h.api.ListUsers(r.Context(), resolver.Token())
	if err != nil {
		h.respondUpstreamError(w, r, resolver, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	resolver, sid, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	var form selectRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, _ := resolver.User()
	selector := h.selectors.For(sid, *user)
	if !selector.AvailableToSelect() {
		// Select rejects and logs the attempt; state is untouched.
		_ = selector.Select(erpapi.User{ID: form.UserID})
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role may not view other users")
		return
	}

	users, err := h.api.ListUsers(r.Context(), resolver.Token())
	if err != nil {
		h.respondUpstreamError(w, r, resolver, err)
		return
	}
	var target *erpapi.User
	for i := range users {
		if users[i].ID == form.UserID {
			target = &users[i]
			break
		}
	}
	if target == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such user")
		return
	}
	if err := selector.Select(*target); err != nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role may not view other users")
		return
	}
	httpx.JSON(w, http.StatusOK, selectionResponse{
		Available: true,
		Target:    selector.CurrentTarget(),
		Explicit:  selector.HasSelection(),
	})
}

// handleReset is the explicit route-mount hook: the SPA calls it on every
// page change so each module starts scoped to the acting user.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	resolver, sid, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	user, _ := resolver.User()
	selector := h.selectors.For(sid, *user)
	selector.Reset()
	httpx.JSON(w, http.StatusOK, selectionResponse{
		Available: selector.AvailableToSelect(),
		Target:    selector.CurrentTarget(),
		Explicit:  false,
	})
}

func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (*session.Resolver, string, bool) {
	sid, ok := h.cookies.SessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no session")
		return nil, "", false
	}
	resolver := h.registry.For(sid)
	if err := resolver.Resolve(r.Context()); err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "login required")
		case errors.Is(err, session.ErrDegraded):
			httpx.RetryableProblem(w, http.StatusServiceUnavailable, "Identity Unavailable", "your session is preserved, retry or log out")
		default:
			h.logger.Error("resolve session", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return nil, "", false
	}
	return resolver, sid, true
}

func (h *Handler) respondUpstreamError(w http.ResponseWriter, r *http.Request, resolver *session.Resolver, err error) {
	switch {
	case errors.Is(err, erpapi.ErrAuthRejected):
		resolver.Invalidate(r.Context())
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "session expired")
	case errors.Is(err, erpapi.ErrUnreachable):
		httpx.RetryableProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "could not reach the identity service")
	default:
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
