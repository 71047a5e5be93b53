package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mira/internal/model"
	"mira/internal/service"
)

var validActions = map[string]bool{
	"click":        true,
	"contact":      true,
	"view_details": true,
	"compare":      true,
}

// FeedbackHandler records what users do with returned listings
type FeedbackHandler struct {
	searchService *service.SearchService
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(searchService *service.SearchService) *FeedbackHandler {
	return &FeedbackHandler{searchService: searchService}
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if !validActions[req.Action] {
		abortWithError(c, http.StatusBadRequest, "Invalid action. Must be one of: click, contact, view_details, compare")
		return
	}

	if err := h.searchService.LogFeedback(c.Request.Context(), req.SearchID, req.ListingID, req.Action); err != nil {
		abortWithServiceError(c, "Failed to log feedback", err)
		return
	}

	c.JSON(http.StatusOK, model.FeedbackResponse{
		Success: true,
		Message: "Feedback logged successfully",
	})
}
