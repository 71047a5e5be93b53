package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mira/internal/model"
	"mira/internal/service"
)

// PropertyHandler serves direct listing access
type PropertyHandler struct {
	searchService *service.SearchService
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(searchService *service.SearchService) *PropertyHandler {
	return &PropertyHandler{searchService: searchService}
}

// List handles GET /api/v1/properties?page=&limit=
func (h *PropertyHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid page")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid limit")
		return
	}

	result, err := h.searchService.ListListings(c.Request.Context(), page, limit)
	if err != nil {
		abortWithServiceError(c, "Failed to list properties", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       result.Listings,
		"pagination": result.Pagination,
	})
}

// Get handles GET /api/v1/properties/:id
func (h *PropertyHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid property ID")
		return
	}

	listing, err := h.searchService.GetListing(c.Request.Context(), id)
	if err != nil {
		abortWithServiceError(c, "Failed to get property", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": listing})
}

// Compare handles POST /api/v1/properties/compare
func (h *PropertyHandler) Compare(c *gin.Context) {
	var req model.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		abortWithError(c, http.StatusBadRequest, "Property IDs array is required")
		return
	}

	listings, err := h.searchService.Compare(c.Request.Context(), req.IDs)
	if err != nil {
		abortWithServiceError(c, "Failed to compare properties", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": listings})
}

// Metadata handles GET /api/v1/filters/metadata
func (h *PropertyHandler) Metadata(c *gin.Context) {
	meta, err := h.searchService.FilterMetadata(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, "Failed to load filter metadata", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": meta})
}

// queryInt returns 0 for an absent parameter
func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
