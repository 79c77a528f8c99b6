package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/aevon-lab/aevon-datum/internal/core/criteria"
	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/aevon-lab/aevon-datum/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// StaleQueue reports the stale aggregate backlog.
type StaleQueue interface {
	FindStaleAggregateDatum(ctx context.Context, c *criteria.DatumCriteria) (*storage.FilterResults[datum.StaleAggregateDatum], error)
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	db     *sql.DB
	stale  StaleQueue
}

// New creates the health server. db and stale may be nil.
func New(addr string, db *sql.DB, stale StaleQueue, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   addr,
		db:     db,
		stale:  stale,
	}
	r.GET("/health", s.healthHandler)
	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			slog.Error("[Server] Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}

	body := gin.H{
		"status":   "healthy",
		"database": "connected",
	}
	if s.stale != nil {
		q := &criteria.DatumCriteria{}
		q.SetMax(1)
		q.SetWithoutTotalResultsCount(false)
		res, err := s.stale.FindStaleAggregateDatum(ctx, q)
		if err != nil {
			slog.Warn("[Server] Failed to read stale queue depth", "error", err)
		} else if res.TotalResults != nil {
			body["stale_aggregates"] = *res.TotalResults
		}
	}
	c.JSON(http.StatusOK, body)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("[Server] Starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("[Server] Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("[Server] HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
