// Package api exposes the sync operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	syncmodels "github.com/stoik/contactsync/services/sync-service/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/reconcile"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
)

const (
	ActionSyncCustomer = "sync-customer"
	ActionProcessQueue = "process-queue"
	ActionFullSync     = "full-sync"

	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Syncer runs sync operations.
type Syncer interface {
	SyncContact(ctx context.Context, id uuid.UUID) (reconcile.ContactResult, error)
	ProcessQueue(ctx context.Context) (reconcile.QueueResult, error)
	FullSync(ctx context.Context) (syncmodels.SyncRunLog, error)
}

// StatusReader serves the monitoring endpoints.
type StatusReader interface {
	GetStatus(ctx context.Context, id uuid.UUID) (*syncmodels.SyncStatus, error)
	ListRuns(ctx context.Context, limit int) ([]syncmodels.SyncRunLog, error)
}

// Pinger checks a dependency for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	syncer Syncer
	status StatusReader
	db     Pinger
}

// NewHandler creates the HTTP handler. db may be nil.
func NewHandler(syncer Syncer, status StatusReader, db Pinger) *Handler {
	return &Handler{syncer: syncer, status: status, db: db}
}

// Router returns the gin engine serving every endpoint.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger)

	r.GET("/health", h.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s := r.Group("/sync")
	{
		s.POST("", h.handleSync)
		s.GET("/runs", h.handleListRuns)
		s.GET("/status/:id", h.handleGetStatus)
	}

	return r
}

func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	event := logging.Debug()
	if c.Writer.Status() >= http.StatusInternalServerError {
		event = logging.Warn()
	}
	event.
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("latency", time.Since(start)).
		Msg("http request")
}

func (h *Handler) handleHealth(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSync dispatches on the action query parameter. No action runs a
// full sync.
func (h *Handler) handleSync(c *gin.Context) {
	switch action := c.Query("action"); action {
	case ActionSyncCustomer:
		h.syncCustomer(c)
	case ActionProcessQueue:
		h.processQueue(c)
	case "", ActionFullSync:
		h.fullSync(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown action: " + action})
	}
}

func (h *Handler) syncCustomer(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "id must be a UUID"})
		return
	}

	res, err := h.syncer.SyncContact(runContext(c), id)
	switch {
	case syncerr.Is(err, syncerr.KindNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "customer not found"})
	case err != nil:
		res.Success = false
		if res.Error == "" {
			res.Error = err.Error()
		}
		c.JSON(http.StatusInternalServerError, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// runContext keeps request values but not cancellation: a sync started over
// HTTP runs to completion after the client disconnects.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *Handler) processQueue(c *gin.Context) {
	res, err := h.syncer.ProcessQueue(runContext(c))
	if err != nil {
		res.Success = false
		if res.Error == "" {
			res.Error = err.Error()
		}
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) fullSync(c *gin.Context) {
	run, err := h.syncer.FullSync(runContext(c))
	switch {
	case errors.Is(err, reconcile.ErrFullSyncRunning):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case err != nil:
		run.Success = false
		if run.Error == "" {
			run.Error = err.Error()
		}
		c.JSON(http.StatusInternalServerError, run)
	default:
		c.JSON(http.StatusOK, run)
	}
}

func (h *Handler) handleListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.status.ListRuns(c.Request.Context(), limit)
	if err != nil {
		logging.Error().Err(err).Msg("failed to list sync runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sync runs"})
		return
	}
	if runs == nil {
		runs = []syncmodels.SyncRunLog{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) handleGetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	st, err := h.status.GetStatus(c.Request.Context(), id)
	if err != nil {
		logging.Error().Err(err).Str("customer_id", id.String()).Msg("failed to read sync status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sync status"})
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sync status for customer"})
		return
	}
	c.JSON(http.StatusOK, st)
}
