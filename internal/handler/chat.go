package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mira/internal/model"
	"mira/internal/service"
)

// ChatHandler handles the conversational search endpoints
type ChatHandler struct {
	searchService *service.SearchService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(searchService *service.SearchService) *ChatHandler {
	return &ChatHandler{searchService: searchService}
}

// Message handles POST /api/v1/chat/message
func (h *ChatHandler) Message(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Message is required and must be a string")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		abortWithError(c, http.StatusBadRequest, "Message is required and must be a string")
		return
	}

	resp, err := h.searchService.ProcessQuery(c.Request.Context(), req.Message)
	if err != nil {
		abortWithServiceError(c, "Failed to process message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

// Filter handles POST /api/v1/chat/filter
func (h *ChatHandler) Filter(c *gin.Context) {
	var criteria model.FilterCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if criteria.SortBy != nil && !criteria.SortBy.Valid() {
		abortWithError(c, http.StatusBadRequest, "Invalid sortBy: "+string(*criteria.SortBy))
		return
	}

	listings, err := h.searchService.FilterByStructuredCriteria(c.Request.Context(), criteria)
	if err != nil {
		abortWithServiceError(c, "Failed to filter properties", err)
		return
	}

	c.JSON(http.StatusOK, model.FilterResponse{
		Success: true,
		Count:   len(listings),
		Data:    listings,
	})
}
