package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mira/internal/model"
	"mira/internal/utils"
)

// IntentParser turns a free-text query into a QueryIntent through a language model.
// It never fails: any provider or parse error degrades to an unconstrained search.
type IntentParser struct {
	completer Completer
	maxLimit  int
	logger    *zap.Logger
}

// NewIntentParser creates a new intent parser. maxLimit bounds the "limit" a
// query may ask for ("top 3 cheapest").
func NewIntentParser(completer Completer, maxLimit int, logger *zap.Logger) *IntentParser {
	if maxLimit <= 0 {
		maxLimit = 10
	}
	return &IntentParser{
		completer: completer,
		maxLimit:  maxLimit,
		logger:    utils.OrNop(logger).With(zap.String("component", "intent")),
	}
}

// Parse extracts the query type and filters from query
func (p *IntentParser) Parse(ctx context.Context, query string) *model.QueryIntent {
	query = strings.TrimSpace(query)
	if query == "" || p.completer == nil {
		return model.NeutralIntent()
	}

	raw, err := p.completer.Complete(ctx, buildExtractionPrompt(query))
	if err != nil {
		p.logger.Warn("intent extraction failed, using unconstrained search", zap.Error(err))
		return model.NeutralIntent()
	}

	var parsed map[string]interface{}
	if err := utils.ParseAIJSON(raw, &parsed); err != nil {
		p.logger.Warn("unparseable intent response, using unconstrained search",
			zap.Error(err), zap.String("response", raw))
		return model.NeutralIntent()
	}

	intent := p.normalize(parsed)
	p.logger.Debug("intent extracted",
		zap.String("query", query),
		zap.String("query_type", string(intent.QueryType)),
		zap.Any("filters", intent.Filters))
	return intent
}

// normalize validates the decoded object. Unknown or malformed fields are dropped.
func (p *IntentParser) normalize(parsed map[string]interface{}) *model.QueryIntent {
	intent := model.NeutralIntent()

	if qt, ok := parsed["queryType"].(string); ok &&
		strings.EqualFold(strings.TrimSpace(qt), string(model.QueryTypeInformational)) {
		intent.QueryType = model.QueryTypeInformational
	}

	raw, ok := parsed["filters"].(map[string]interface{})
	if !ok {
		return intent
	}
	f := &intent.Filters

	f.MinPrice = nonNegativeFloat(raw["minPrice"])
	f.MaxPrice = nonNegativeFloat(raw["maxPrice"])
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		f.MinPrice, f.MaxPrice = f.MaxPrice, f.MinPrice
	}

	f.Bedrooms, f.MinBedrooms = roomCount(raw["bedrooms"], raw["minBedrooms"])
	f.Bathrooms, f.MinBathrooms = roomCount(raw["bathrooms"], raw["minBathrooms"])

	f.Location = nonBlank(raw["location"])
	if pt := nonBlank(raw["property_type"]); pt != nil {
		// Typos stay verbatim for the fuzzy category matcher
		if canonical, ok := model.ParsePropertyType(*pt); ok {
			s := string(canonical)
			pt = &s
		}
		f.PropertyType = pt
	}

	if s, ok := raw["sortBy"].(string); ok {
		key := model.SortKey(strings.ToLower(strings.TrimSpace(s)))
		if key.Valid() {
			f.SortBy = &key
		}
	}

	if n, ok := numberValue(raw["limit"]); ok {
		limit := min(max(int(math.Round(n)), 1), p.maxLimit)
		f.Limit = &limit
	}

	return intent
}

// roomCount reconciles the exact shape ({"bedrooms": 3}) with the threshold shapes
// ({"bedrooms": 3, "minBedrooms": true} and {"minBedrooms": 3}).
func roomCount(exact, minimum interface{}) (*int, bool) {
	if n, ok := numberValue(minimum); ok {
		if v, ok := nonNegativeInt(n); ok {
			return &v, true
		}
	}

	n, ok := numberValue(exact)
	if !ok {
		return nil, false
	}
	v, ok := nonNegativeInt(n)
	if !ok {
		return nil, false
	}
	return &v, boolValue(minimum)
}

func nonNegativeInt(n float64) (int, bool) {
	if n < 0 {
		return 0, false
	}
	return int(math.Round(n)), true
}

func nonNegativeFloat(v interface{}) *float64 {
	n, ok := numberValue(v)
	if !ok || n < 0 {
		return nil
	}
	return &n
}

func nonBlank(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// numberValue accepts JSON numbers and numeric strings such as "$1,200,000"
func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(n)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return numberValue(f)
	}
	return 0, false
}

func boolValue(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	return false
}

func buildExtractionPrompt(query string) string {
	types := make([]string, len(model.PropertyTypes))
	for i, t := range model.PropertyTypes {
		types[i] = string(t)
	}

	return fmt.Sprintf(`You are a real estate search assistant. Classify the user's query and extract search filters.

Respond ONLY with a JSON object of this exact shape, omitting any filter that is not mentioned:
{"queryType": "search" | "informational", "filters": {"minPrice": number, "maxPrice": number, "bedrooms": number, "minBedrooms": boolean, "bathrooms": number, "minBathrooms": boolean, "location": string, "property_type": string, "sortBy": string, "limit": number}}

Rules:
- queryType is "informational" for questions about the inventory as a whole ("how many properties do you have?", "what is the average price?"); otherwise "search".
- Prices are plain numbers: "1.5M" = 1500000, "800K" = 800000. "under X" sets maxPrice, "over X" sets minPrice.
- Room counts are exact by default ("3-bedroom" -> "bedrooms": 3). Set "minBedrooms": true only for "at least", "or more", "3+" phrasing. Same for bathrooms.
- location is the city or area name exactly as the user wrote it.
- property_type is one of: %s. Copy the user's word if it looks misspelled.
- sortBy is one of: price_asc (cheapest), price_desc (most expensive), size_asc (smallest), size_desc (largest), bedrooms_desc (most bedrooms), bathrooms_desc (most bathrooms), value_asc (best value, lowest price per sqft), amenities_desc (most amenities), amenities_asc (fewest amenities).
- limit is set only when the user asks for a specific number of results, or 1 for a singular superlative ("the cheapest property").

Examples:
Query: "penthouse in Las Vegas"
{"queryType": "search", "filters": {"location": "Las Vegas", "property_type": "Penthouse"}}

Query: "cheapest 3-bedroom in Atlanta"
{"queryType": "search", "filters": {"bedrooms": 3, "location": "Atlanta", "sortBy": "price_asc"}}

Query: "at least 2 bathrooms under 750K"
{"queryType": "search", "filters": {"bathrooms": 2, "minBathrooms": true, "maxPrice": 750000}}

Query: "How many properties do you have?"
{"queryType": "informational", "filters": {}}

Query: %q
`, strings.Join(types, ", "), query)
}
