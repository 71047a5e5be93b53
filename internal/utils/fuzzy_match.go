package utils

import (
	"strings"
	"unicode"
)

// LevenshteinDistance returns the number of single-rune insertions, deletions
// or substitutions needed to turn a into b.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// StringSimilarity scores a and b in [0,1] as (maxLen - editDistance) / maxLen
// after trimming and lowercasing. Two empty strings are identical; one empty
// string against a non-empty one scores 0.
func StringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-LevenshteinDistance(a, b)) / float64(maxLen)
}

// QueryWords lowercases text, splits it on anything that is not a letter or
// digit and keeps the words longer than three runes.
func QueryWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 3 {
			words = append(words, f)
		}
	}
	return words
}

// amenityAliases maps a search stem to the spellings found in listing data
var amenityAliases = map[string][]string{
	"pool":       {"swimming pool", "pool"},
	"gym":        {"gym", "gymnasium", "fitness", "fitness center"},
	"aircon":     {"air conditioner", "air conditioning", "aircon", "a/c", "central air"},
	"washer":     {"washer", "washing machine", "washer/dryer", "laundry"},
	"dryer":      {"dryer", "washer/dryer"},
	"parking":    {"parking", "garage", "car park", "covered parking"},
	"security":   {"security", "24-hour security", "doorman", "gated"},
	"balcony":    {"balcony", "terrace", "patio"},
	"fireplace":  {"fireplace", "wood stove"},
	"garden":     {"garden", "backyard", "yard", "lawn"},
	"view":       {"view", "ocean view", "city view", "mountain view"},
	"elevator":   {"elevator", "lift"},
	"playground": {"playground", "kids playground"},
	"fridge":     {"fridge", "refrigerator"},
}

// FuzzyMatchAmenity performs fuzzy matching for amenity names
// Returns true if the search term fuzzy matches the amenity
func FuzzyMatchAmenity(searchTerm, amenity string) bool {
	searchLower := strings.ToLower(strings.TrimSpace(searchTerm))
	amenityLower := strings.ToLower(strings.TrimSpace(amenity))
	if searchLower == "" {
		return false
	}

	if searchLower == amenityLower || strings.Contains(amenityLower, searchLower) {
		return true
	}

	for key, values := range amenityAliases {
		if !strings.Contains(searchLower, key) {
			continue
		}
		for _, alias := range values {
			if strings.Contains(amenityLower, alias) {
				return true
			}
		}
	}

	// Typos ("swiming pool")
	return StringSimilarity(searchLower, amenityLower) >= 0.8
}

var amenityNormalizations = map[string]string{
	"pool":             "Swimming pool",
	"swimming pool":    "Swimming pool",
	"gym":              "Gym",
	"gymnasium":        "Gym",
	"fitness center":   "Gym",
	"aircon":           "Air conditioning",
	"a/c":              "Air conditioning",
	"ac":               "Air conditioning",
	"air conditioner":  "Air conditioning",
	"washing machine":  "Washer/dryer",
	"washer":           "Washer/dryer",
	"dryer":            "Washer/dryer",
	"car park":         "Parking",
	"covered parking":  "Parking",
	"terrace":          "Balcony",
	"refrigerator":     "Fridge",
	"lift":             "Elevator",
	"24hr security":    "24-hour security",
	"24-hour security": "24-hour security",
}

// NormalizeAmenity normalizes amenity names to standard form
func NormalizeAmenity(amenity string) string {
	amenityLower := strings.ToLower(strings.TrimSpace(amenity))
	if amenityLower == "" {
		return ""
	}
	if normalized, ok := amenityNormalizations[amenityLower]; ok {
		return normalized
	}

	// Capitalise the first rune, keep the rest as written
	runes := []rune(strings.TrimSpace(amenity))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
