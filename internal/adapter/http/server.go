// Package http is the local API the game UI talks to.
package http

import (
	"context"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/claim"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/session"
)

const maxBodyBytes = 1 << 20

// Claimer runs claim and purchase attempts.
type Claimer interface {
	Claim(ctx context.Context, req claim.ClaimRequest) domain.ClaimResult
	Purchase(ctx context.Context, req claim.PurchaseRequest) domain.ClaimResult
	Subscribe(key string) (<-chan claim.Transition, func())
}

// WalletService reads and refreshes the player's token balance.
type WalletService interface {
	Refresh(ctx context.Context, address string) (domain.WalletState, error)
	State(address string) domain.WalletState
	WatchAsset(ctx context.Context) error
}

// NetworkGuard puts the wallet on the claim network.
type NetworkGuard interface {
	EnsureNetwork(ctx context.Context, requiredID string) bool
	Network() domain.Network
}

// Deps are the services behind the API.
type Deps struct {
	Sessions        *session.Manager
	Claims          Claimer
	Targets         domain.TargetSource
	Wallet          WalletService
	Guard           NetworkGuard
	Ready           sharedobs.ReadinessChecker
	ThresholdMeters float64
	JWTSecret       []byte
}

// Server exposes the claim API plus health, readiness and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewServer creates the HTTP server. writeTimeout must exceed the claim
// confirmation timeout since a claim request waits for its receipt.
func NewServer(addr string, writeTimeout time.Duration, deps Deps, logger *zap.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		deps:     deps,
		validate: validator.New(),
		logger:   logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(deps.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAuth(deps.JWTSecret))

		r.Route("/location", func(r chi.Router) {
			r.Get("/", s.handleGetLocation)
			r.Delete("/", s.handleClearLocation)
			r.Post("/request", s.handleRequestLocation)
			r.Post("/fix", s.handlePushFix)
			r.Post("/fix/error", s.handlePushFixError)
		})

		r.Get("/targets", s.handleListTargets)

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", s.handleClaim)
			r.Get("/{tokenID}/progress", s.handleProgress)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", s.handleGetWallet)
			r.Post("/refresh", s.handleRefreshWallet)
			r.Post("/purchase", s.handlePurchase)
			r.Post("/watch-asset", s.handleWatchAsset)
		})

		r.Post("/network/ensure", s.handleEnsureNetwork)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// sessionFor returns the caller's session. RequireAuth guarantees a principal.
func (s *Server) sessionFor(r *http.Request) (*session.Session, Principal) {
	p, _ := PrincipalFrom(r.Context())
	return s.deps.Sessions.Get(p.SessionID, p.Address), p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	sharedobs.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
