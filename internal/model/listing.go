package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PropertyType is the category inferred from a listing title at ingestion time
type PropertyType string

const (
	PropertyApartment  PropertyType = "Apartment"
	PropertyCondo      PropertyType = "Condo"
	PropertyVilla      PropertyType = "Villa"
	PropertyHouse      PropertyType = "House"
	PropertyPenthouse  PropertyType = "Penthouse"
	PropertyStudio     PropertyType = "Studio"
	PropertyTownhouse  PropertyType = "Townhouse"
	PropertyDuplex     PropertyType = "Duplex"
	PropertyLoft       PropertyType = "Loft"
	PropertyBungalow   PropertyType = "Bungalow"
	PropertyBrownstone PropertyType = "Brownstone"
	PropertyChalet     PropertyType = "Chalet"
	PropertyEstate     PropertyType = "Estate"
	PropertyCabin      PropertyType = "Cabin"
	PropertyMansion    PropertyType = "Mansion"
	PropertyOther      PropertyType = "Other"
)

// PropertyTypes lists every category in declaration order
var PropertyTypes = []PropertyType{
	PropertyApartment, PropertyCondo, PropertyVilla, PropertyHouse, PropertyPenthouse,
	PropertyStudio, PropertyTownhouse, PropertyDuplex, PropertyLoft, PropertyBungalow,
	PropertyBrownstone, PropertyChalet, PropertyEstate, PropertyCabin, PropertyMansion,
	PropertyOther,
}

// ParsePropertyType returns the canonical category for s, ignoring case
func ParsePropertyType(s string) (PropertyType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range PropertyTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// Listing represents a property listing. Listings are immutable once seeded.
type Listing struct {
	ID           int64        `json:"id" db:"id"`
	Title        string       `json:"title" db:"title"`
	Price        float64      `json:"price" db:"price"`
	Location     string       `json:"location" db:"location"`
	Bedrooms     int          `json:"bedrooms" db:"bedrooms"`
	Bathrooms    int          `json:"bathrooms" db:"bathrooms"`
	SizeSqft     float64      `json:"size_sqft" db:"size_sqft"`
	Amenities    JSONArray    `json:"amenities" db:"amenities"`
	PropertyType PropertyType `json:"property_type" db:"property_type"`
	ImageURL     string       `json:"image_url,omitempty" db:"image_url"`
	Description  string       `json:"description" db:"description"`
	Embedding    []float32    `json:"-" db:"-"`
}

// PricePerSqft returns price divided by size, or 0 when the size is unknown
func (l *Listing) PricePerSqft() float64 {
	if l.SizeSqft <= 0 {
		return 0
	}
	return l.Price / l.SizeSqft
}

// StripEmbeddings returns a copy of listings without embedding vectors
func StripEmbeddings(listings []Listing) []Listing {
	out := make([]Listing, len(listings))
	for i, l := range listings {
		l.Embedding = nil
		out[i] = l
	}
	return out
}

// ScoredListing pairs a listing with its similarity to the query vector
type ScoredListing struct {
	Listing Listing
	Score   float64
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported amenities type %T", value)
	}
}
