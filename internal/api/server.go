// Package api serves the catalogue order, quote and manage endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"example.com/resource-catalogue/internal/auth"
	"example.com/resource-catalogue/internal/ledger"
	"example.com/resource-catalogue/internal/notify"
	"example.com/resource-catalogue/internal/order"
	"example.com/resource-catalogue/internal/quote"
	"example.com/resource-catalogue/internal/ratelimit"
)

const msgAccessDenied = "Access denied"

// Orderer places orders. The in-process pipeline and the Temporal runner
// both satisfy it.
type Orderer interface {
	Order(ctx context.Context, sub order.Submission) (order.Outcome, error)
}

type Quoter interface {
	Quote(ctx context.Context, target quote.Target, req quote.Request) (quote.Response, error)
}

// DatasetManager copies catalogue entries into workspaces and removes them.
type DatasetManager interface {
	Save(ctx context.Context, workspace, url, action string) (notify.Event, error)
	Remove(ctx context.Context, workspace, url string) (notify.Event, error)
}

// Airbus is the part of the Airbus client the API calls directly.
type Airbus interface {
	Token(ctx context.Context, workspace string) (string, error)
	FetchAsset(ctx context.Context, href string) ([]byte, string, error)
}

// Deps are the collaborators of a Server. Limiter defaults to unlimited and
// Ledger to an empty store.
type Deps struct {
	Orders   Orderer
	Quotes   Quoter
	Datasets DatasetManager
	Ledger   ledger.Store
	Airbus   Airbus
	Fetcher  order.DocumentFetcher
	Auth     *auth.Parser
	Policy   auth.Policy
	Limiter  ratelimit.Limiter
}

type Settings struct {
	// RootPath prefixes every route except /healthz.
	RootPath      string
	StaticPath    string
	SourceBaseURL string
}

// Server exposes the catalogue API.
type Server struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

func NewServer(deps Deps, settings Settings, logger *slog.Logger) *Server {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Unlimited{}
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.Discard{}
	}
	if deps.Auth == nil {
		deps.Auth = auth.NewParser("")
	}
	settings.RootPath = strings.TrimRight(settings.RootPath, "/")
	return &Server{deps: deps, settings: settings, logger: logger}
}

// Router wires all routes under a single chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	if s.settings.RootPath == "" {
		r.Group(s.routes)
	} else {
		r.Route(s.settings.RootPath, s.routes)
	}
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Use(s.deps.Auth.Middleware(func(w http.ResponseWriter, status int, msg string) {
		writeError(w, status, "%s", msg)
	}))

	r.Get("/manage/health", s.handleHealth)

	r.Route("/manage/catalogs/user-datasets/{workspace}", func(r chi.Router) {
		r.Use(s.requireWorkspace)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/", s.handleSaveDataset(datasetCreate))
			r.Put("/", s.handleSaveDataset(datasetUpdate))
			r.Delete("/", s.handleDeleteDataset)
		})
		r.Get("/orders", s.handleListOrders)
	})

	r.Route("/stac/catalogs/{parent}/catalogs/{catalog}/collections/{collection}", func(r chi.Router) {
		r.Get("/thumbnail", s.handleCollectionThumbnail)
		r.Route("/items/{item}", func(r chi.Router) {
			r.Post("/order", s.handleOrder)
			r.Post("/quote", s.handleQuote)
			r.Get("/thumbnail", s.handleAsset("thumbnail"))
			r.Get("/quicklook", s.handleAsset("quicklook"))
		})
	})
}

func (s *Server) requireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspace := chi.URLParam(r, "workspace")
		if !s.deps.Policy.Workspace(auth.FromContext(r.Context()), workspace) {
			writeError(w, http.StatusForbidden, msgAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspace := chi.URLParam(r, "workspace")
		if !s.deps.Limiter.Allow(workspace) {
			s.logger.Warn("rate limited", "workspace", workspace, "method", r.Method)
			writeError(w, http.StatusTooManyRequests, ratelimit.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Airbus.Token(r.Context(), ""); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Health check failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

// statusFor maps pipeline error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch order.KindOf(err) {
	case order.KindValidation:
		return http.StatusBadRequest
	case order.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeOrderError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	var oe *order.Error
	if !errors.As(err, &oe) {
		s.logger.Error("unexpected error", "error", err)
		msg = "Internal Server Error"
	}
	writeError(w, status, "%s", msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"detail": strings.TrimSpace(fmt.Sprintf(format, args...)),
	})
}
