package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetPublishLogs returns publish attempts with pagination, optionally for one listing
func (h *Handlers) GetPublishLogs(c *gin.Context) {
	page, limit := pagination(c)

	var listingID *uint64
	if v := c.Query("listing_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_id", "Invalid listing ID")
			return
		}
		listingID = &id
	}

	logs, total, err := h.repo.ListPublishLogs(c.Request.Context(), listingID, page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
