package handler

import (
	"time"

	"wtb-relay-go/internal/classifier"
	"wtb-relay-go/internal/model"
	"wtb-relay-go/internal/reputation"
)

// ListingResponse represents an archived listing together with where it was published
type ListingResponse struct {
	model.Listing
	Published []model.PublishedPost `json:"published,omitempty"`
}

// ReputationResponse represents a sender's reputation
type ReputationResponse struct {
	*reputation.Summary
}

// RoutingPreviewRequest asks how a text would be classified and routed
type RoutingPreviewRequest struct {
	Text string `json:"text" binding:"required"`
}

// RoutingPreviewResponse represents the verdict for a preview request
type RoutingPreviewResponse struct {
	Classification classifier.Result `json:"classification"`
	CleanText      string            `json:"clean_text"`
	Tags           []string          `json:"tags"`
	Destinations   []int64           `json:"destinations"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
