package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"idlegate/internal/broadcast"
	"idlegate/internal/config"
	"idlegate/internal/constants"
	"idlegate/internal/dashboard"
	"idlegate/internal/inventory"
	"idlegate/internal/security"
	"idlegate/internal/session"
	"idlegate/internal/storage"
)

type Server struct {
	Config         *config.Config
	Sessions       session.StoreInterface
	IdleStore      storage.Store
	Hub            *broadcast.Hub
	Tabs           *dashboard.Dashboard
	Inventory      *inventory.Service
	ConnLimiter    *security.ConnectionLimiter
	BruteProtector *security.BruteForceProtector
	AuditLogger    *security.AuditLogger

	repo inventory.Repository
}

// Deps lets callers supply prebuilt backends; nil fields are built from
// the environment.
type Deps struct {
	Sessions    session.StoreInterface
	IdleStore   storage.Store
	Inventory   inventory.Repository
	AuditLogger *security.AuditLogger
}

func NewServer(cfg *config.Config) (*Server, error) {
	return New(cfg, Deps{})
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	idleStore := deps.IdleStore
	if idleStore == nil {
		idleStore = storage.NewStore()
	}

	sessions := deps.Sessions
	if sessions == nil {
		var err error
		sessions, err = session.NewStore(idleStore)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize session store: %w", err)
		}
	}

	repo := deps.Inventory
	if repo == nil {
		var err error
		repo, err = openInventory(cfg.Inventory)
		if err != nil {
			return nil, err
		}
	}

	auditLogger := deps.AuditLogger
	if auditLogger == nil {
		var err error
		auditLogger, err = security.GetAuditLogger()
		if err != nil {
			log.Printf("Warning: Failed to initialize audit logger: %v", err)
		}
	}

	s := &Server{
		Config:         cfg,
		Sessions:       sessions,
		IdleStore:      idleStore,
		Hub:            broadcast.NewHub(),
		Tabs:           dashboard.New(),
		Inventory:      inventory.NewService(repo),
		ConnLimiter:    security.NewConnectionLimiter(constants.MaxConnectionsPerIP),
		BruteProtector: security.NewBruteForceProtector(constants.MaxAuthAttempts, constants.BlockDuration),
		AuditLogger:    auditLogger,
		repo:           repo,
	}

	s.Sessions.OnExpire(func(id string) {
		if n := s.Tabs.SignOutSession(id, "session expired"); n > 0 {
			log.Printf("🗑 Session expired, %d tab(s) signed out: %s", n, id)
		}
		s.clearIdleState(id)
	})

	return s, nil
}

func openInventory(cfg config.InventoryConfig) (inventory.Repository, error) {
	if cfg.Driver == "sqlite" {
		repo, err := inventory.NewSQLiteRepository(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open inventory database: %w", err)
		}
		log.Printf("📦 Inventory stored in SQLite: %s", cfg.Path)
		return repo, nil
	}
	log.Println("📦 Inventory stored in memory")
	return inventory.NewMemoryRepository(), nil
}

// Handler returns the full middleware chain around the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointHealth, s.HandleHealth)
	mux.HandleFunc(constants.EndpointLogin, s.HandleLogin)
	mux.HandleFunc(constants.EndpointLogout, s.HandleLogout)
	mux.HandleFunc(constants.EndpointMe, s.requireSession(s.HandleMe))
	mux.HandleFunc(constants.EndpointTabs, s.requireSession(s.HandleTabs))
	mux.HandleFunc(constants.EndpointStats, s.requireSession(s.HandleStats))
	mux.HandleFunc(constants.EndpointActivities, s.requireSession(s.HandleActivities))
	mux.HandleFunc(constants.EndpointYears, s.requireSession(s.HandleYears))
	mux.HandleFunc(constants.EndpointZones, s.requireSession(s.HandleZones))
	mux.HandleFunc(constants.EndpointSubzones, s.requireSession(s.HandleSubzones))
	mux.HandleFunc(constants.EndpointTabWS, s.HandleTab)

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(s.Config.Server.AllowedOrigins)(handler)
	handler = security.SecurityHeaders(handler)
	handler = GzipMiddleware(handler)
	return handler
}

func (s *Server) Run() {
	port := s.Config.Server.Port
	certFile := s.Config.Server.CertFile
	keyFile := s.Config.Server.KeyFile

	handler := s.Handler()

	useTLS := false
	if s.Config.Server.EnableTLS {
		if _, err := os.Stat(certFile); err == nil {
			if _, err := os.Stat(keyFile); err == nil {
				useTLS = true
			}
		}

		if !useTLS {
			log.Printf("Warning: TLS is enabled but certs not found at %s", certFile)
		}
	}

	var h2Handler http.Handler
	if useTLS {
		h2Handler = handler
	} else {
		h2Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTLS {
		log.Printf("🔒 HTTPS enabled (HTTP/2)")
		go func() {
			if err := server.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server error: %v", err)
			}
		}()
	} else {
		log.Printf("🌐 HTTP mode (HTTP/2 enabled)")
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	idleCfg := s.Config.IdleConfig()
	log.Printf("🚀 %s %s starting on :%s (idle %s, warning %s)",
		constants.AppName, constants.Version, port, idleCfg.IdleMax, idleCfg.Warning)

	<-sigChan
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
}

// Cleanup releases every backend. Open tabs are left to their sockets
// closing.
func (s *Server) Cleanup() {
	s.BruteProtector.Close()
	if err := s.Sessions.Close(); err != nil {
		log.Printf("Session store close: %v", err)
	}
	if err := s.IdleStore.Close(); err != nil {
		log.Printf("Idle store close: %v", err)
	}
	if err := s.repo.Close(); err != nil {
		log.Printf("Inventory close: %v", err)
	}
	s.AuditLogger.Close()
}
