package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/classifier"
	"wtb-relay-go/internal/publisher"
)

// GetRouting returns the dictionary in use
func (h *Handlers) GetRouting(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"general_topic_id": h.routing.Router.GeneralTopicID(),
		"keywords":         h.routing.Router.Keywords(),
	})
}

// ReloadRouting re-reads the dictionary files
func (h *Handlers) ReloadRouting(c *gin.Context) {
	if err := h.routing.ReloadRouting(c.Request.Context()); err != nil {
		logrus.WithError(err).Warn("Routing reload rejected")
		respondError(c, http.StatusUnprocessableEntity, "reload_error", err.Error())
		return
	}

	kw := h.routing.Router.Keywords()
	c.JSON(http.StatusOK, gin.H{
		"message":    "Routing dictionary reloaded",
		"categories": len(kw.Categories),
		"topics":     len(kw.Topics),
	})
}

// PreviewRouting shows how a text would be classified, tagged and routed
func (h *Handlers) PreviewRouting(c *gin.Context) {
	var req RoutingPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	clean := publisher.Sanitize(req.Text)
	c.JSON(http.StatusOK, RoutingPreviewResponse{
		Classification: classifier.Classify(req.Text),
		CleanText:      clean,
		Tags:           h.routing.Router.Tags(clean),
		Destinations:   h.routing.Router.Destinations(req.Text),
	})
}
