package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tjfoc/gmsm/sm2"

	"github.com/renqiukai/wzbank-go/internal/config"
	"github.com/renqiukai/wzbank-go/internal/logger"
	"github.com/renqiukai/wzbank-go/internal/sandbox"
	"github.com/renqiukai/wzbank-go/internal/server/handlers"
	appmiddleware "github.com/renqiukai/wzbank-go/internal/server/middleware"
	"github.com/renqiukai/wzbank-go/internal/version"
)

// GatewayPrefix is the path prefix of the production gateway.
const GatewayPrefix = "/prdApiGW"

type Server struct {
	config    *config.SandboxEnvironment
	logger    *slog.Logger
	router    *chi.Mux
	gateway   *sandbox.Gateway
	publicKey *sm2.PublicKey
}

// NewServer builds the router. publicKey is the key the gateway signs responses with;
// it is published at /public-key.
func NewServer(
	cfg *config.SandboxEnvironment,
	gateway *sandbox.Gateway,
	publicKey *sm2.PublicKey,
	logger *slog.Logger,
) (*Server, error) {
	server := &Server{
		config:    cfg,
		logger:    logger,
		router:    chi.NewRouter(),
		gateway:   gateway,
		publicKey: publicKey,
	}

	server.setupMiddleware()
	if err := server.registerRoutes(); err != nil {
		return nil, err
	}

	return server, nil
}

// Router returns the server's handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.config.HandlerTimeout))
	s.router.Use(appmiddleware.SecurityHeaders(s.config.Environment))
}

func (s *Server) registerRoutes() error {
	s.router.Get("/health", handlers.HandleHealth(s.gateway.BankID(), s.gateway.SignProfile().String()))
	s.router.Get("/version", handlers.HandleVersion(version.Get()))

	publicKeyHandler, err := handlers.HandlePublicKey(s.publicKey)
	if err != nil {
		return fmt.Errorf("failed to create public key handler: %w", err)
	}
	s.router.Get("/public-key", publicKeyHandler)

	s.router.Group(func(r chi.Router) {
		r.Use(appmiddleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
		r.Use(appmiddleware.RequestSizeLimit(s.config.MaxRequestBytes))

		r.Handle(GatewayPrefix+"/*", s.gateway)
		r.Handle("/*", s.gateway)
	})

	return nil
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("sandbox gateway listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr),
			slog.String("gateway_prefix", GatewayPrefix))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}
