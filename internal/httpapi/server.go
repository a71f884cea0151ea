// Package httpapi exposes the consultation pipeline over HTTP and
// websockets.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visitscribe/internal/insights"
	"visitscribe/internal/usecase"
)

type Server struct {
	engine *gin.Engine
	addr   string
}

func NewServer(port int, origins []string, store Store, sessions *usecase.Manager, ruleEngine *insights.Engine, hub *Hub) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(CORS(origins))

	api := NewAPI(store, sessions, ruleEngine, hub)
	registerRoutes(engine, api)

	return &Server{engine: engine, addr: fmt.Sprintf(":%d", port)}
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
