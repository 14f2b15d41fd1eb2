// Package api provides the HTTP REST API for Hearth Core.
//
// It exposes authentication, vault, guest-grant, and audit endpoints to the
// household apps (mobile, web). The server follows the same lifecycle
// pattern as the other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthops/hearth-core/internal/audit"
	"github.com/hearthops/hearth-core/internal/auth"
	"github.com/hearthops/hearth-core/internal/grant"
	"github.com/hearthops/hearth-core/internal/infrastructure/config"
	"github.com/hearthops/hearth-core/internal/infrastructure/logging"
	"github.com/hearthops/hearth-core/internal/infrastructure/telemetry"
	"github.com/hearthops/hearth-core/internal/vault"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	Security      config.SecurityConfig
	Logger        *logging.Logger
	UserRepo      auth.UserRepository
	HouseholdRepo auth.HouseholdRepository
	Sessions      *vault.SessionManager
	SecretStore   *vault.SecretStore
	SecretRepo    vault.SecretRepository
	SettingsRepo  vault.SettingsRepository
	Grants        *grant.Registry
	GrantRepo     grant.Repository
	AuditRepo     audit.Repository
	Telemetry     *telemetry.Client // optional: nil when disabled
	Version       string
}

// Server is the HTTP API server for Hearth Core.
type Server struct {
	cfg          config.APIConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	userRepo     auth.UserRepository
	sessions     *vault.SessionManager
	secretStore  *vault.SecretStore
	secretRepo   vault.SecretRepository
	settingsRepo vault.SettingsRepository
	grants       *grant.Registry
	grantRepo    grant.Repository
	auditRepo    audit.Repository
	telemetry    *telemetry.Client
	version      string

	loginLimiter *auth.AttemptLimiter

	server *http.Server
	cancel context.CancelFunc // cancels background goroutines on Close()

	auditCh chan *audit.Entry
}

// auditChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const auditChanSize = 256

// loginAttemptsPerWindow caps password attempts per email per minute.
const loginAttemptsPerWindow = 5

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Sessions == nil || deps.SecretStore == nil || deps.SecretRepo == nil || deps.SettingsRepo == nil {
		return nil, fmt.Errorf("vault dependencies are required")
	}
	if deps.Grants == nil || deps.GrantRepo == nil {
		return nil, fmt.Errorf("grant dependencies are required")
	}
	if deps.AuditRepo == nil {
		return nil, fmt.Errorf("audit repository is required")
	}

	return &Server{
		cfg:          deps.Config,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		userRepo:     deps.UserRepo,
		sessions:     deps.Sessions,
		secretStore:  deps.SecretStore,
		secretRepo:   deps.SecretRepo,
		settingsRepo: deps.SettingsRepo,
		grants:       deps.Grants,
		grantRepo:    deps.GrantRepo,
		auditRepo:    deps.AuditRepo,
		telemetry:    deps.Telemetry,
		version:      deps.Version,
		loginLimiter: auth.NewAttemptLimiter(loginAttemptsPerWindow, time.Minute),
		auditCh:      make(chan *audit.Entry, auditChanSize),
	}, nil
}

// Start begins listening for HTTP connections. The audit drain goroutine and
// the listener run until Close() is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.drainAuditLog(srvCtx)
	go s.pruneLimiterLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
// It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// pruneLimiterLoop periodically drops aged-out login attempt records, along
// with the session manager's stale PIN attempts and expired sessions.
func (s *Server) pruneLimiterLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.loginLimiter.Prune()
			s.sessions.Prune()
		}
	}
}

// securityEvent records a best-effort telemetry point when telemetry is
// enabled. Never blocks, never fails the request.
func (s *Server) securityEvent(householdID, event, outcome string) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.WriteSecurityEvent(householdID, event, outcome)
}
