// Package dashboard is the single enforcement point the role-specific
// dashboard pages go through. One generic handler serves every module
// (boq, clients, inventory, documents, invoices): it resolves the scoped
// query for the session, parameterizes upstream fetches with the effective
// user id, and rejects denied mutations locally before any network call.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/impersonation"
	"github.com/sitelink-erp/sitelink/internal/platform/httpx"
	"github.com/sitelink-erp/sitelink/internal/rbac"
	"github.com/sitelink-erp/sitelink/internal/scope"
	"github.com/sitelink-erp/sitelink/internal/session"
)

const maxBodySize = 1 << 20

// ModuleAPI is the slice of the upstream client the handler needs.
type ModuleAPI interface {
	FetchModule(ctx context.Context, token, module, userID string) (json.RawMessage, error)
	CreateItem(ctx context.Context, token, module, userID string, payload json.RawMessage) (json.RawMessage, error)
	UpdateItem(ctx context.Context, token, module, itemID string, payload json.RawMessage) (json.RawMessage, error)
	DeleteItem(ctx context.Context, token, module, itemID string) error
}

// Handler proxies scoped module traffic.
type Handler struct {
	logger    *slog.Logger
	registry  *session.Registry
	selectors *impersonation.Selectors
	cookies   *session.Cookies
	api       ModuleAPI
	fetcher   *scope.Fetcher
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registry *session.Registry, selectors *impersonation.Selectors, cookies *session.Cookies, api ModuleAPI) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		registry:  registry,
		selectors: selectors,
		cookies:   cookies,
		api:       api,
		fetcher:   scope.NewFetcher(),
	}
}

// MountRoutes registers the per-module routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{module}", func(r chi.Router) {
		r.Use(h.requireKnownModule)
		r.Get("/", h.handleList)
		r.Get("/context", h.handleContext)
		r.Post("/", h.handleCreate)
		r.Put("/{itemID}", h.handleUpdate)
		r.Delete("/{itemID}", h.handleDelete)
	})
}

func (h *Handler) requireKnownModule(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rbac.KnownModule(chi.URLParam(r, "module")) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown module")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleContext returns the scoped query a page uses to parameterize its
// fetches and toggle its mutation controls.
func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	_, selector, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	module := chi.URLParam(r, "module")
	httpx.JSON(w, http.StatusOK, scope.Resolve(selector.ActingUser(), selector, module))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	resolver, selector, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	module := chi.URLParam(r, "module")
	sid, _ := h.cookies.SessionID(r)
	q := scope.Resolve(selector.ActingUser(), selector, module)

	data, err := h.fetcher.Fetch(r.Context(), sid, module, q,
		func() string { return selector.CurrentTarget().ID },
		func(ctx context.Context) (json.RawMessage, error) {
			return h.api.FetchModule(ctx, resolver.Token(), module, q.EffectiveUserID)
		})
	if err != nil {
		if errors.Is(err, scope.ErrStale) {
			httpx.Problem(w, http.StatusConflict, "Stale Scope", "the viewed user changed while this fetch was in flight")
			return
		}
		h.respondUpstreamError(w, r, resolver, err)
		return
	}
	httpx.JSON(w, http.StatusOK, json.RawMessage(data))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	resolver, selector, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	module := chi.URLParam(r, "module")
	q := scope.Resolve(selector.ActingUser(), selector, module)
	if !q.Allowed.CanCreate {
		h.denyAction(w, selector, module, "create")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
		return
	}
	created, err := h.api.CreateItem(r.Context(), resolver.Token(), module, q.EffectiveUserID, payload)
	if err != nil {
		h.respondUpstreamError(w, r, resolver, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, json.RawMessage(created))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	resolver, selector, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	module := chi.URLParam(r, "module")
	q := scope.Resolve(selector.ActingUser(), selector, module)
	if !q.Allowed.CanEdit {
		h.denyAction(w, selector, module, "edit")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
		return
	}
	updated, err := h.api.UpdateItem(r.Context(), resolver.Token(), module, chi.URLParam(r, "itemID"), payload)
	if err != nil {
		h.respondUpstreamError(w, r, resolver, err)
		return
	}
	httpx.JSON(w, http.StatusOK, json.RawMessage(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	resolver, selector, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	module := chi.URLParam(r, "module")
	q := scope.Resolve(selector.ActingUser(), selector, module)
	if !q.Allowed.CanDelete {
		h.denyAction(w, selector, module, "delete")
		return
	}
	if err := h.api.DeleteItem(r.Context(), resolver.Token(), module, chi.URLParam(r, "itemID")); err != nil {
		h.respondUpstreamError(w, r, resolver, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// denyAction rejects a mutation locally: nothing is ever forwarded upstream
// for an action the acting role does not hold.
func (h *Handler) denyAction(w http.ResponseWriter, selector *impersonation.Selector, module, action string) {
	acting := selector.ActingUser()
	h.logger.Warn("action denied",
		slog.String("user", acting.ID),
		slog.String("role", string(acting.Role)),
		slog.String("module", module),
		slog.String("action", action))
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role may not "+action+" in "+module)
}

func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (*session.Resolver, *impersonation.Selector, bool) {
	sid, ok := h.cookies.SessionID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no session")
		return nil, nil, false
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
		return nil, nil, false
	}
	user, _ := resolver.User()
	return resolver, h.selectors.For(sid, *user), true
}

func (h *Handler) respondUpstreamError(w http.ResponseWriter, r *http.Request, resolver *session.Resolver, err error) {
	switch {
	case errors.Is(err, erpapi.ErrAuthRejected):
		resolver.Invalidate(r.Context())
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "session expired")
	case errors.Is(err, erpapi.ErrUnreachable):
		httpx.RetryableProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "could not reach the data service")
	default:
		h.logger.Error("module proxy", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
