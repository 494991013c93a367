package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/repository"
	"wtb-relay-go/internal/reputation"
	"wtb-relay-go/internal/routing"
	"wtb-relay-go/internal/scheduler"
	"wtb-relay-go/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	repo       *repository.Repository
	relay      *service.Relay
	routing    *routing.FileSource
	reputation *reputation.Aggregator
	scheduler  *scheduler.Scheduler
}

// NewHandlers creates new HTTP handlers. sched may be nil when the
// scheduler is disabled.
func NewHandlers(repo *repository.Repository, relay *service.Relay, source *routing.FileSource, agg *reputation.Aggregator, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		repo:       repo,
		relay:      relay,
		routing:    source,
		reputation: agg,
		scheduler:  sched,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/events/messages", h.PostMessage)
		api.POST("/events/deletions", h.PostDeletion)
		api.POST("/events/reactions", h.PostReaction)
		api.GET("/contact/:payload", h.GetContactCard)

		api.GET("/listings", h.GetListings)
		api.GET("/listings/:id", h.GetListing)
		api.GET("/reputation/:sender_id", h.GetReputation)

		api.GET("/publish-logs", h.GetPublishLogs)

		api.GET("/routing", h.GetRouting)
		api.POST("/routing/reload", h.ReloadRouting)
		api.POST("/routing/preview", h.PreviewRouting)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.repo.Ping(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Metrics["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}
	response.Metrics["pending_edits"] = strconv.Itoa(h.relay.PendingEdits())

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func respondError(c *gin.Context, code int, kind, message string) {
	c.JSON(code, ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    code,
	})
}

// pagination reads page and limit with the same bounds everywhere
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return page, limit
}
