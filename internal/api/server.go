package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/access"
	"github.com/commonstack/trusthub/internal/accountability"
	"github.com/commonstack/trusthub/internal/decay"
	"github.com/commonstack/trusthub/internal/platformconfig"
	"github.com/commonstack/trusthub/internal/store"
	"github.com/commonstack/trusthub/internal/trust"
)

type TrustCalculator interface {
	Calculate(ctx context.Context, userID uuid.UUID) (*trust.Result, error)
	RecalculateAll(ctx context.Context) (trust.BatchResult, error)
}

type Propagator interface {
	RecordEvent(ctx context.Context, voucheeID uuid.UUID, impact store.ImpactType, impactValue float64, reason string, relatedEntityType, relatedEntityID string, metadata map[string]any) (int, error)
	ProcessUnprocessed(ctx context.Context) (int, int, error)
	Impact(ctx context.Context, voucherID uuid.UUID) (*accountability.Impact, error)
	History(ctx context.Context, voucherID uuid.UUID, limit int) ([]accountability.HistoryItem, error)
}

type AccessGate interface {
	CanAccessFeature(ctx context.Context, userID uuid.UUID, feature string) (*access.Decision, error)
	CheckFeatureUsage(ctx context.Context, userID uuid.UUID, feature string) (*access.Usage, error)
	UserAccessSummary(ctx context.Context, userID uuid.UUID) (*access.AccessSummary, error)
	CheckVouchEligibility(ctx context.Context, userID uuid.UUID) (*access.VouchEligibility, error)
	RequireFeature(ctx context.Context, userID uuid.UUID, featureKey string) (*access.Denial, error)
}

type ConfigAdmin interface {
	Get(ctx context.Context, category, key string) (json.RawMessage, error)
	GetAll(ctx context.Context, category string) (map[string]json.RawMessage, error)
	Update(ctx context.Context, category, key string, value json.RawMessage, changedBy, reason string) (*store.ConfigRecord, platformconfig.Result, error)
}

type DecayRunner interface {
	Run(ctx context.Context) (*decay.Summary, error)
}

// TrustReader serves the read-only trust endpoints.
type TrustReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*store.User, error)
	ListScoreHistory(ctx context.Context, userID uuid.UUID, limit int) ([]store.HistoryEntry, error)
}

type Deps struct {
	Calculator TrustCalculator
	Propagator Propagator
	Gate       AccessGate
	Configs    ConfigAdmin
	Decay      DecayRunner
	Reader     TrustReader
}

type Server struct {
	router *chi.Mux
	port   int
	logger *slog.Logger
	deps   Deps
}

func NewServer(port int, apiToken string, deps Deps, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		logger: logger,
		deps:   deps,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/trusthub/status", s.status)

	router.Route("/api/v1/trust", func(r chi.Router) {
		r.Get("/{userID}", s.getTrustScore)
		r.Post("/{userID}/recalculate", s.recalculate)
	})

	router.Route("/api/v1/accountability", func(r chi.Router) {
		r.Post("/events", s.recordAccountabilityEvent)
		r.Get("/vouchers/{voucherID}/impact", s.getAccountabilityImpact)
		r.Get("/vouchers/{voucherID}/history", s.getAccountabilityHistory)
	})

	router.Route("/api/v1/access", func(r chi.Router) {
		r.Get("/{userID}/features/{feature}", s.canAccessFeature)
		r.Get("/{userID}/features/{feature}/usage", s.checkFeatureUsage)
		r.Get("/{userID}/require/{feature}", s.requireFeature)
		r.Get("/{userID}/summary", s.accessSummary)
		r.Get("/{userID}/vouch-eligibility", s.vouchEligibility)
	})

	router.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/config/{category}", s.getConfigCategory)
		r.Get("/config/{category}/{key}", s.getConfigKey)
		r.Put("/config/{category}/{key}", s.updateConfig)
		r.Post("/recalculate", s.recalculateAll)
		r.Post("/decay/run", s.runDecay)
		r.Post("/accountability/sweep", s.sweepAccountability)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "trusthub",
		"status":  "serving",
	})
}

// userIDParam parses the userID route parameter, writing the error response
// itself on failure.
func (s *Server) userIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid %s", name)))
		return uuid.Nil, false
	}
	return id, true
}
