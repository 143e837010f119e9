// Package handler exposes the rule administration API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fraudwatch/internal/platform/middleware"
	"fraudwatch/internal/rule/models"
	"fraudwatch/internal/rule/service"
	"fraudwatch/pkg/platform/httputil"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	Create(ctx context.Context, rule models.Rule) (models.Rule, error)
	Update(ctx context.Context, ruleID string, rule models.Rule) (models.Rule, error)
	Delete(ctx context.Context, ruleID string) error
	Toggle(ctx context.Context, ruleID string) (models.Rule, error)
	Get(ctx context.Context, ruleID string) (models.Rule, error)
	List(ctx context.Context, page, size int) (service.RulePage, error)
	ListActive(ctx context.Context) ([]models.Rule, error)
	ListActiveByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error)
	CountActive(ctx context.Context) (int, error)
	ClearCache(ctx context.Context)
}

// Handler handles rule administration endpoints.
type Handler struct {
	rules        Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

// New creates a rule Handler. A nil validator leaves the routes open, which
// is only appropriate in tests.
func New(rules Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		rules:        rules,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the rule routes. Reads require any authenticated caller;
// mutations require the admin role.
func (h *Handler) Register(r chi.Router) {
	ruleRouter := chi.NewRouter()
	ruleRouter.Use(middleware.Timeout(10 * time.Second))
	ruleRouter.Use(middleware.ContentTypeJSON)
	if h.jwtValidator != nil {
		ruleRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	}

	ruleRouter.Get("/", h.handleList)
	ruleRouter.Get("/{ruleID}", h.handleGet)
	ruleRouter.Get("/active", h.handleListActive)
	ruleRouter.Get("/active/type/{ruleType}", h.handleListActiveByType)
	ruleRouter.Get("/stats", h.handleStats)

	ruleRouter.Group(func(admin chi.Router) {
		if h.jwtValidator != nil {
			admin.Use(middleware.RequireRole(middleware.RoleAdmin, h.logger))
		}
		admin.Post("/", h.handleCreate)
		admin.Put("/{ruleID}", h.handleUpdate)
		admin.Delete("/{ruleID}", h.handleDelete)
		admin.Patch("/{ruleID}/toggle", h.handleToggle)
		admin.Post("/cache/clear", h.handleClearCache)
	})

	r.Mount("/api/rules", ruleRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RuleRequest](w, r, h.logger)
	if !ok {
		return
	}

	created, err := h.rules.Create(r.Context(), req.toModel())
	if err != nil {
		h.logger.WarnContext(r.Context(), "rule create failed",
			"name", req.Name,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")
	req, ok := httputil.DecodeAndPrepare[RuleRequest](w, r, h.logger)
	if !ok {
		return
	}

	updated, err := h.rules.Update(r.Context(), ruleID, req.toModel())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	toggled, err := h.rules.Toggle(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(toggled))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(rule))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 20)

	result, err := h.rules.List(r.Context(), page, size)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Rules: toResponses(result.Rules),
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListActive(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(rules))
}

func (h *Handler) handleListActiveByType(w http.ResponseWriter, r *http.Request) {
	ruleType, err := models.ParseRuleType(chi.URLParam(r, "ruleType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rules, err := h.rules.ListActiveByType(r.Context(), ruleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(rules))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	active, err := h.rules.CountActive(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// List reports the full count regardless of page size.
	all, err := h.rules.List(r.Context(), 0, 1)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, StatsResponse{
		ActiveRules: active,
		TotalRules:  all.Total,
	})
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.rules.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
