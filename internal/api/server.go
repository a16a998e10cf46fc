// Package api serves the faucet and bridge HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/socchain/faucet/pkg/bridge"
	"github.com/socchain/faucet/pkg/faucet"
	"github.com/socchain/faucet/pkg/metrics"
)

const (
	maxBodyBytes      = 64 * 1024
	readHeaderTimeout = 10 * time.Second
	statusTimeout     = 15 * time.Second
)

// Config holds the listener and limiter settings.
type Config struct {
	Addr            string
	RateLimitPerIP  int
	RateLimitWindow time.Duration
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
}

type Claimer interface {
	Chain() string
	Claim(ctx context.Context, address, ip string) (*faucet.ClaimResult, error)
}

// ClaimRoute binds a claimer to its POST path.
type ClaimRoute struct {
	Path    string
	Claimer Claimer
}

type StatusSource interface {
	Chain() string
	Health(ctx context.Context) (uint64, error)
	Status(ctx context.Context) (*faucet.Status, error)
}

type BalanceReader interface {
	Balances(ctx context.Context, privateKey string) (*bridge.Balances, error)
}

type BridgeExecutor interface {
	Execute(ctx context.Context, req bridge.Request) (*bridge.Receipt, error)
}

// Deps are the services behind the routes. Bridge routes are registered
// only when both bridge services are set.
type Deps struct {
	Claims   []ClaimRoute
	Statuses []StatusSource
	Balances BalanceReader
	Bridge   BridgeExecutor
}

type Server struct {
	cfg     Config
	deps    Deps
	limiter *IPLimiter
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time

	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config, deps Deps, m *metrics.Metrics, log *zap.SugaredLogger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		limiter: NewIPLimiter(cfg.RateLimitPerIP, cfg.RateLimitWindow),
		metrics: m,
		log:     log,
		now:     time.Now,
	}

	mux := http.NewServeMux()
	seen := make(map[string]struct{}, len(deps.Claims))
	for _, route := range deps.Claims {
		if _, dup := seen[route.Path]; dup {
			return nil, fmt.Errorf("duplicate claim path %q", route.Path)
		}
		seen[route.Path] = struct{}{}
		mux.HandleFunc("POST "+route.Path, s.limit(s.handleClaim(route.Claimer)))
	}
	if deps.Balances != nil && deps.Bridge != nil {
		mux.HandleFunc("POST /bridge/balances", s.limit(s.handleBridgeBalances))
		mux.HandleFunc("POST /bridge/execute", s.limit(s.handleBridgeExecute))
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatusAll)
	mux.HandleFunc("GET /status/{chain}", s.handleStatus)

	s.handler = s.instrument(mux)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start begins serving. This is non-blocking.
// Returns a channel that receives an error if the server fails.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("http server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
