package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/repository"
	"wtb-relay-go/internal/service"
)

// PostMessage ingests a chat message
func (h *Handlers) PostMessage(c *gin.Context) {
	var ev service.NewMessage
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	out, err := h.relay.OnNewMessage(c.Request.Context(), ev)
	if err != nil {
		h.eventError(c, err)
		return
	}

	status := http.StatusOK
	if out.Inserted {
		status = http.StatusCreated
	}
	c.JSON(status, out)
}

// PostDeletion marks messages as deleted
func (h *Handlers) PostDeletion(c *gin.Context) {
	var ev service.MessageDeleted
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	n, err := h.relay.OnMessageDeleted(c.Request.Context(), ev)
	if err != nil {
		h.eventError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// PostReaction applies a like or dislike press
func (h *Handlers) PostReaction(c *gin.Context) {
	var ev service.ReactionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	out, err := h.relay.OnReaction(c.Request.Context(), ev)
	if err != nil {
		h.eventError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

// GetContactCard renders the contact card for a deep-link payload
func (h *Handlers) GetContactCard(c *gin.Context) {
	card, err := h.relay.ContactCard(c.Request.Context(), c.Param("payload"))
	if err != nil {
		h.eventError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *Handlers) eventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEvent):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrInvalidPayload):
		respondError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	case errors.Is(err, repository.ErrListingNotFound):
		respondError(c, http.StatusNotFound, "not_found", "Listing not found")
	case errors.Is(err, repository.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "not_found", "Published post not found")
	default:
		logrus.WithError(err).Error("Event processing failed")
		respondError(c, http.StatusInternalServerError, "processing_error", "Failed to process event")
	}
}
