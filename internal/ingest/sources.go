// Package ingest builds the listing pool from the raw JSON exports: merge the
// three sources by id, infer categories, synthesise descriptions, embed, persist.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mira/internal/model"
	"mira/internal/utils"
)

// Source file names inside the data directory
const (
	BasicsFile          = "property_basics.json"
	CharacteristicsFile = "property_characteristics.json"
	ImagesFile          = "property_images.json"
)

// BasicRecord is one entry of property_basics.json
type BasicRecord struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Location string  `json:"location"`
}

// CharacteristicsRecord is one entry of property_characteristics.json
type CharacteristicsRecord struct {
	ID        int64    `json:"id"`
	Bedrooms  int      `json:"bedrooms"`
	Bathrooms int      `json:"bathrooms"`
	SizeSqft  float64  `json:"size_sqft"`
	Amenities []string `json:"amenities"`
}

// ImageRecord is one entry of property_images.json
type ImageRecord struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"image_url"`
}

// Sources holds the three raw exports
type Sources struct {
	Basics          []BasicRecord
	Characteristics []CharacteristicsRecord
	Images          []ImageRecord
}

// LoadSources reads the three exports from dir
func LoadSources(dir string) (*Sources, error) {
	var src Sources
	if err := readJSON(filepath.Join(dir, BasicsFile), &src.Basics); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, CharacteristicsFile), &src.Characteristics); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, ImagesFile), &src.Images); err != nil {
		return nil, err
	}
	return &src, nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Merge joins the sources by id in basics order. A listing missing its
// characteristics or image keeps zero values for those fields.
func Merge(src *Sources, logger *zap.Logger) ([]model.Listing, error) {
	logger = utils.OrNop(logger)

	chars := make(map[int64]*CharacteristicsRecord, len(src.Characteristics))
	for i := range src.Characteristics {
		chars[src.Characteristics[i].ID] = &src.Characteristics[i]
	}
	images := make(map[int64]string, len(src.Images))
	for _, img := range src.Images {
		images[img.ID] = img.ImageURL
	}

	seen := make(map[int64]struct{}, len(src.Basics))
	out := make([]model.Listing, 0, len(src.Basics))
	for _, b := range src.Basics {
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("duplicate listing id %d", b.ID)
		}
		seen[b.ID] = struct{}{}

		l := model.Listing{
			ID:        b.ID,
			Title:     strings.TrimSpace(b.Title),
			Price:     b.Price,
			Location:  strings.TrimSpace(b.Location),
			Amenities: model.JSONArray{},
		}

		c, hasChars := chars[b.ID]
		img, hasImage := images[b.ID]
		if !hasChars || !hasImage {
			logger.Warn("missing data for listing",
				zap.Int64("id", b.ID),
				zap.Bool("characteristics", hasChars),
				zap.Bool("image", hasImage))
		}
		if hasChars {
			l.Bedrooms = c.Bedrooms
			l.Bathrooms = c.Bathrooms
			l.SizeSqft = c.SizeSqft
			for _, a := range c.Amenities {
				if n := utils.NormalizeAmenity(a); n != "" {
					l.Amenities = append(l.Amenities, n)
				}
			}
		}
		l.ImageURL = img

		out = append(out, l)
	}
	return out, nil
}

// propertyTypePatterns is checked in order. Compound names come before "house"
// so a penthouse or townhouse is not filed as a House.
var propertyTypePatterns = []struct {
	t  model.PropertyType
	re *regexp.Regexp
}{
	{model.PropertyApartment, regexp.MustCompile(`(?i)apartment|bhk`)},
	{model.PropertyCondo, regexp.MustCompile(`(?i)condo`)},
	{model.PropertyVilla, regexp.MustCompile(`(?i)villa`)},
	{model.PropertyPenthouse, regexp.MustCompile(`(?i)penthouse`)},
	{model.PropertyTownhouse, regexp.MustCompile(`(?i)townhouse`)},
	{model.PropertyBrownstone, regexp.MustCompile(`(?i)brownstone`)},
	{model.PropertyHouse, regexp.MustCompile(`(?i)house`)},
	{model.PropertyStudio, regexp.MustCompile(`(?i)studio`)},
	{model.PropertyDuplex, regexp.MustCompile(`(?i)duplex`)},
	{model.PropertyLoft, regexp.MustCompile(`(?i)loft`)},
	{model.PropertyBungalow, regexp.MustCompile(`(?i)bungalow`)},
	{model.PropertyChalet, regexp.MustCompile(`(?i)chalet`)},
	{model.PropertyEstate, regexp.MustCompile(`(?i)estate`)},
	{model.PropertyCabin, regexp.MustCompile(`(?i)cabin`)},
	{model.PropertyMansion, regexp.MustCompile(`(?i)mansion`)},
}

// InferPropertyType returns the first category whose pattern matches title, else Other
func InferPropertyType(title string) model.PropertyType {
	for _, p := range propertyTypePatterns {
		if p.re.MatchString(title) {
			return p.t
		}
	}
	return model.PropertyOther
}

// Describe renders the text stored as the listing description and used as the embedding input
func Describe(l *model.Listing) string {
	return fmt.Sprintf("%s - %s\nPrice: %s\n%d bedrooms, %d bathrooms\nSize: %s sqft\nProperty Type: %s\nAmenities: %s",
		l.Title, l.Location,
		utils.FormatPrice(l.Price),
		l.Bedrooms, l.Bathrooms,
		strconv.FormatFloat(l.SizeSqft, 'f', -1, 64),
		l.PropertyType,
		strings.Join(l.Amenities, ", "))
}
