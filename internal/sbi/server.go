// Package sbi exposes the AMF's service-based interface: read-only UE and
// RAN context lookups plus UE context release, under the Namf_Communication
// resource tree.
package sbi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
)

// Releaser releases a UE context on behalf of an SBI consumer.
type Releaser interface {
	ReleaseUeContext(amfUeNgapID uint64) bool
}

// Server is the SBI HTTP server.
type Server struct {
	config     *config.Config
	ranContext *amfcontext.RanContextManager
	ueContext  *amfcontext.UeContextManager
	releaser   Releaser
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates the SBI server. The context managers are used for
// lookups only; all mutation goes through the releaser.
func NewServer(
	cfg *config.Config,
	ranContext *amfcontext.RanContextManager,
	ueContext *amfcontext.UeContextManager,
	releaser Releaser,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:     cfg,
		ranContext: ranContext,
		ueContext:  ueContext,
		releaser:   releaser,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)

	// Namf_Communication (TS 29.518)
	s.router.Route("/namf-comm/v1", func(r chi.Router) {
		r.Get("/ue-contexts", s.handleListUeContexts)
		r.Get("/ue-contexts/{ueContextId}", s.handleGetUeContext)
		r.Post("/ue-contexts/{ueContextId}/release", s.handleReleaseUeContext)
		r.Get("/ran-nodes", s.handleListRanNodes)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.SBI.BindAddress, s.config.SBI.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Starting SBI server", zap.String("address", addr))
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SBI server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
