package model

import "time"

// FallbackStage names the retrieval stage that produced the final listing set
type FallbackStage string

const (
	FallbackNone     FallbackStage = "none"
	FallbackTitle    FallbackStage = "title"
	FallbackFullPool FallbackStage = "full_pool"
)

// ChatRequest represents a natural language query request
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse is the result of processing a natural language query
type ChatResponse struct {
	SearchID     string        `json:"search_id"`
	Response     string        `json:"response"`
	Properties   []Listing     `json:"properties"`
	TotalMatches int           `json:"total_matches"`
	QueryType    QueryType     `json:"query_type"`
	Fallback     FallbackStage `json:"fallback"`
	Intent       *QueryIntent  `json:"intent,omitempty"`
	Took         int64         `json:"took_ms"`
}

// FilterCriteria drives the direct, non-semantic filter path
type FilterCriteria struct {
	SearchFilters
	Keyword   string   `json:"keyword,omitempty"`
	Amenities []string `json:"amenities,omitempty"` // all must match (fuzzy)
}

// FilterResponse wraps structured filter results
type FilterResponse struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Data    []Listing `json:"data"`
}

// Pagination describes a page of listings
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ListingPage is one page of the listing pool
type ListingPage struct {
	Listings   []Listing  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CompareRequest selects listings for side-by-side comparison
type CompareRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// PriceRange is an inclusive price interval
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FilterMetadata lists the distinct values available to structured filter UIs
type FilterMetadata struct {
	Locations     []string       `json:"locations"`
	PropertyTypes []PropertyType `json:"propertyTypes"`
	Bedrooms      []int          `json:"bedrooms"`
	Bathrooms     []int          `json:"bathrooms"`
	PriceRange    PriceRange     `json:"priceRange"`
}

// PoolStats summarises the listing pool for informational queries
type PoolStats struct {
	Count     int      `json:"count"`
	MinPrice  float64  `json:"min_price"`
	MaxPrice  float64  `json:"max_price"`
	AvgPrice  float64  `json:"avg_price"`
	Locations []string `json:"locations"`
}

// SearchLog is one processed query, persisted for analytics
type SearchLog struct {
	SearchID       string
	Query          string
	Intent         *QueryIntent
	ResultCount    int
	ListingIDs     []int64
	Fallback       FallbackStage
	ResponseTimeMs int
	CreatedAt      time.Time
}

// FeedbackRequest represents user feedback/action
type FeedbackRequest struct {
	SearchID  string `json:"search_id" binding:"required"`
	ListingID int64  `json:"listing_id" binding:"required"`
	Action    string `json:"action" binding:"required"` // click, contact, view_details
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
