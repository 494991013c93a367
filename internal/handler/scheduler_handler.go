package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) schedulerEnabled(c *gin.Context) bool {
	if h.scheduler == nil {
		respondError(c, http.StatusServiceUnavailable, "scheduler_disabled", "Scheduler is disabled")
		return false
	}
	return true
}

// StartScheduler starts the maintenance scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if !h.schedulerEnabled(c) {
		return
	}
	if err := h.scheduler.Start(); err != nil {
		respondError(c, http.StatusInternalServerError, "scheduler_error", "Failed to start scheduler")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler started successfully",
		"status":  "running",
	})
}

// StopScheduler stops the maintenance scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if !h.schedulerEnabled(c) {
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		respondError(c, http.StatusInternalServerError, "scheduler_error", "Failed to stop scheduler")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped successfully",
		"status":  "stopped",
	})
}

// RunOnce runs every maintenance job now
func (h *Handlers) RunOnce(c *gin.Context) {
	if !h.schedulerEnabled(c) {
		return
	}
	if err := h.scheduler.RunOnce(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Maintenance jobs completed successfully",
	})
}

// GetSchedulerStatus returns the current scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	if !h.schedulerEnabled(c) {
		return
	}
	status := "stopped"
	if h.scheduler.IsRunning() {
		status = "running"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"next_run": h.scheduler.GetNextRun(),
		"last_run": h.scheduler.GetLastRun(),
		"jobs":     h.scheduler.Status(),
	})
}
