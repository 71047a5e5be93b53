package model

// QueryType tags a request as informational or search
type QueryType string

const (
	QueryTypeSearch        QueryType = "search"
	QueryTypeInformational QueryType = "informational"
)

// SortKey orders a matched set by a listing attribute ("cheapest", "largest", ...)
type SortKey string

const (
	SortPriceAsc      SortKey = "price_asc"
	SortPriceDesc     SortKey = "price_desc"
	SortSizeAsc       SortKey = "size_asc"
	SortSizeDesc      SortKey = "size_desc"
	SortBedroomsDesc  SortKey = "bedrooms_desc"
	SortBathroomsDesc SortKey = "bathrooms_desc"
	SortValueAsc      SortKey = "value_asc"
	SortAmenitiesAsc  SortKey = "amenities_asc"
	SortAmenitiesDesc SortKey = "amenities_desc"
)

// Valid reports whether k is a known sort key
func (k SortKey) Valid() bool {
	switch k {
	case SortPriceAsc, SortPriceDesc, SortSizeAsc, SortSizeDesc, SortBedroomsDesc,
		SortBathroomsDesc, SortValueAsc, SortAmenitiesAsc, SortAmenitiesDesc:
		return true
	}
	return false
}

// SearchFilters are the constraints extracted from a query.
// Bedrooms/Bathrooms match exactly unless the matching Min flag is set.
type SearchFilters struct {
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	MinBedrooms  bool     `json:"minBedrooms,omitempty"`
	Bathrooms    *int     `json:"bathrooms,omitempty"`
	MinBathrooms bool     `json:"minBathrooms,omitempty"`
	Location     *string  `json:"location,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	SortBy       *SortKey `json:"sortBy,omitempty"`
	Limit        *int     `json:"limit,omitempty"`
}

// HasConstraints reports whether any filtering constraint is set.
// SortBy and Limit shape the result but do not filter it.
func (f *SearchFilters) HasConstraints() bool {
	if f == nil {
		return false
	}
	return f.MinPrice != nil || f.MaxPrice != nil ||
		f.Bedrooms != nil || f.Bathrooms != nil ||
		f.Location != nil || f.PropertyType != nil
}

// WithoutPropertyType returns a copy with the category constraint removed
func (f SearchFilters) WithoutPropertyType() SearchFilters {
	f.PropertyType = nil
	return f
}

// QueryIntent is the per-request classification plus extracted constraints
type QueryIntent struct {
	QueryType QueryType     `json:"queryType"`
	Filters   SearchFilters `json:"filters"`
}

// NeutralIntent is the degraded result used whenever extraction fails
func NeutralIntent() *QueryIntent {
	return &QueryIntent{QueryType: QueryTypeSearch}
}
