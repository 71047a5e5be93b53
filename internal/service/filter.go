package service

import (
	"strings"

	"mira/internal/model"
	"mira/internal/utils"
)

// DefaultFuzzyThreshold is the similarity a misspelled category must exceed
const DefaultFuzzyThreshold = 0.75

// MatchesFilters reports whether l satisfies every constraint present in f.
// Absent constraints always pass, so an empty filter set matches everything.
func MatchesFilters(l *model.Listing, f *model.SearchFilters, fuzzyThreshold float64) bool {
	if f == nil {
		return true
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.Bedrooms != nil && !matchesCount(l.Bedrooms, *f.Bedrooms, f.MinBedrooms) {
		return false
	}
	if f.Bathrooms != nil && !matchesCount(l.Bathrooms, *f.Bathrooms, f.MinBathrooms) {
		return false
	}
	if f.Location != nil &&
		!strings.Contains(strings.ToLower(l.Location), strings.ToLower(strings.TrimSpace(*f.Location))) {
		return false
	}
	if f.PropertyType != nil && !MatchesPropertyType(l, *f.PropertyType, fuzzyThreshold) {
		return false
	}
	return true
}

func matchesCount(have, want int, atLeast bool) bool {
	if atLeast {
		return have >= want
	}
	return have == want
}

// MatchesPropertyType accepts, in order: an exact (case-insensitive) category,
// the requested type as a substring of the category or title, or a fuzzy score
// above threshold against the category or the whole title.
func MatchesPropertyType(l *model.Listing, requested string, threshold float64) bool {
	req := strings.ToLower(strings.TrimSpace(requested))
	if req == "" {
		return true
	}
	category := strings.ToLower(string(l.PropertyType))
	title := strings.ToLower(l.Title)

	if req == category {
		return true
	}
	if strings.Contains(category, req) || strings.Contains(title, req) {
		return true
	}

	return utils.StringSimilarity(req, category) > threshold ||
		utils.StringSimilarity(req, title) > threshold
}

// FilterListings keeps the listings of pool that match f, preserving order
func FilterListings(pool []model.Listing, f *model.SearchFilters, fuzzyThreshold float64) []model.Listing {
	out := make([]model.Listing, 0, len(pool))
	for i := range pool {
		if MatchesFilters(&pool[i], f, fuzzyThreshold) {
			out = append(out, pool[i])
		}
	}
	return out
}

// TitleCandidates returns the listings whose title contains any query word
// longer than three runes, in pool order.
func TitleCandidates(pool []model.Listing, query string) []model.Listing {
	words := utils.QueryWords(query)
	if len(words) == 0 {
		return nil
	}

	out := make([]model.Listing, 0)
	for i := range pool {
		title := strings.ToLower(pool[i].Title)
		for _, w := range words {
			if strings.Contains(title, w) {
				out = append(out, pool[i])
				break
			}
		}
	}
	return out
}

// MatchesAmenities reports whether every wanted amenity fuzzy-matches one of l's amenities
func MatchesAmenities(l *model.Listing, wanted []string) bool {
	for _, w := range wanted {
		if strings.TrimSpace(w) == "" {
			continue
		}
		found := false
		for _, a := range l.Amenities {
			if utils.FuzzyMatchAmenity(w, a) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
