package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wtb-relay-go/internal/repository"
)

// GetListings returns archived listings with pagination. Optional filters:
// sender_id, chat_id, buy_intent, include_deleted.
func (h *Handlers) GetListings(c *gin.Context) {
	page, limit := pagination(c)

	var filter repository.ListingFilter
	if v := c.Query("sender_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_filter", "Invalid sender_id")
			return
		}
		filter.SenderID = &id
	}
	if v := c.Query("chat_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_filter", "Invalid chat_id")
			return
		}
		filter.SourceChatID = &id
	}
	if v := c.Query("buy_intent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_filter", "Invalid buy_intent")
			return
		}
		filter.BuyIntent = &b
	}
	filter.IncludeDeleted = c.Query("include_deleted") == "true"

	listings, total, err := h.repo.ListListings(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch listings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetListing returns one listing and its published posts
func (h *Handlers) GetListing(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_id", "Invalid listing ID")
		return
	}

	ctx := c.Request.Context()
	listing, err := h.repo.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "Listing not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch listing")
		return
	}

	posts, err := h.repo.PublishedPostsForListing(ctx, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch published posts")
		return
	}

	c.JSON(http.StatusOK, ListingResponse{Listing: *listing, Published: posts})
}

// GetReputation returns a sender's rating and activity counters
func (h *Handlers) GetReputation(c *gin.Context) {
	senderID, err := strconv.ParseInt(c.Param("sender_id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_id", "Invalid sender ID")
		return
	}

	summary, err := h.reputation.Summary(c.Request.Context(), senderID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to fetch reputation")
		return
	}

	c.JSON(http.StatusOK, ReputationResponse{Summary: summary})
}
