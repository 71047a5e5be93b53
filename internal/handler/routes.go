package handler

import (
	"github.com/gin-gonic/gin"

	"mira/internal/service"
)

// RegisterRoutes mounts the /api/v1 endpoints on r
func RegisterRoutes(r gin.IRouter, searchService *service.SearchService) {
	chat := NewChatHandler(searchService)
	properties := NewPropertyHandler(searchService)
	feedback := NewFeedbackHandler(searchService)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/chat/message", chat.Message)
		apiV1.POST("/chat/filter", chat.Filter)

		apiV1.GET("/properties", properties.List)
		apiV1.GET("/properties/:id", properties.Get)
		apiV1.POST("/properties/compare", properties.Compare)
		apiV1.GET("/filters/metadata", properties.Metadata)

		apiV1.POST("/feedback", feedback.Submit)
	}
}
