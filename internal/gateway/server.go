package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownGrace = 20 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	port       string
	logger     *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(port string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		port:   port,
		logger: logger,
	}
}

// Run serves until ctx is done. In-flight requests get shutdownGrace to
// finish.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", ln.Addr().String()))
		serverErrors <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("Server shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := s.httpServer.Shutdown(sctx); err != nil {
			_ = s.httpServer.Close()
			return fmt.Errorf("could not gracefully shutdown server: %w", err)
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		s.logger.Info("Server stopped gracefully")
	}

	return nil
}
