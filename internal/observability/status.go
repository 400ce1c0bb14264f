package observability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Board holds the latest snapshot published by the event loop so HTTP
// handlers never touch launcher state directly.
type Board struct {
	v         atomic.Value
	updatedAt atomic.Int64
}

func (b *Board) Publish(snapshot any) {
	b.v.Store(snapshotBox{snapshot})
	b.updatedAt.Store(time.Now().UnixMilli())
}

func (b *Board) Latest() (any, bool) {
	box, ok := b.v.Load().(snapshotBox)
	if !ok {
		return nil, false
	}
	return box.v, true
}

// atomic.Value requires one concrete type across stores.
type snapshotBox struct{ v any }

// StatusServer exposes /health, /status and /metrics.
type StatusServer struct {
	Addr    string
	board   *Board
	router  *gin.Engine
	started time.Time
}

func NewStatusServer(addr string, board *Board, logger zerolog.Logger) *StatusServer {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware())

	s := &StatusServer{Addr: addr, board: board, router: r, started: time.Now()}
	s.registerRoutes()
	return s
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

func (s *StatusServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		snapshot, ok := s.board.Latest()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session":    snapshot,
			"updated_ms": s.board.updatedAt.Load(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Serve blocks until ctx is done or the listener fails.
func (s *StatusServer) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
