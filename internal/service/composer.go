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

// ComposeInput is everything the composer needs to phrase an answer
type ComposeInput struct {
	Query        string
	QueryType    model.QueryType
	Listings     []model.Listing // displayed listings, already capped
	TotalMatches int
	Stats        *model.PoolStats // informational queries only
}

// ResponseComposer delegates answer phrasing to a language model.
// Unlike extraction, generation failures are returned to the caller.
type ResponseComposer struct {
	completer Completer
	logger    *zap.Logger
}

// NewResponseComposer creates a composer backed by completer
func NewResponseComposer(completer Completer, logger *zap.Logger) *ResponseComposer {
	return &ResponseComposer{
		completer: completer,
		logger:    utils.OrNop(logger).With(zap.String("component", "composer")),
	}
}

// Compose builds the prompt for in's branch and returns the generated text
func (c *ResponseComposer) Compose(ctx context.Context, in ComposeInput) (string, error) {
	if c.completer == nil {
		return "", fmt.Errorf("%w: no language model configured", ErrGeneration)
	}

	var prompt string
	switch {
	case in.QueryType == model.QueryTypeInformational:
		prompt = informationalPrompt(in.Query, in.Stats)
	case len(in.Listings) == 0:
		prompt = noResultsPrompt(in.Query)
	default:
		prompt = resultsPrompt(in.Query, in.Listings, in.TotalMatches)
	}

	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Error("answer generation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return text, nil
}

func informationalPrompt(query string, stats *model.PoolStats) string {
	if stats == nil {
		stats = &model.PoolStats{}
	}
	locations := "none"
	if len(stats.Locations) > 0 {
		locations = strings.Join(stats.Locations, ", ")
	}

	return fmt.Sprintf(`You are a helpful real estate assistant. The user is asking a general question about the property inventory.

Inventory statistics:
- Total properties: %d
- Lowest price: %s
- Highest price: %s
- Average price: %s
- Sample locations: %s

User Question: %s

Answer the question using these statistics. Do not list individual properties unless the user explicitly asks for them.`,
		stats.Count, utils.FormatPrice(stats.MinPrice), utils.FormatPrice(stats.MaxPrice), utils.FormatPrice(stats.AvgPrice),
		locations, query)
}

func noResultsPrompt(query string) string {
	return fmt.Sprintf(`You are a helpful real estate assistant. No properties matched the user's request.

User Question: %s

Apologise briefly and suggest how the user could broaden the search, for example a higher budget, fewer bedrooms, a different property type or a nearby location. Do not invent properties.`, query)
}

func resultsPrompt(query string, listings []model.Listing, total int) string {
	var b strings.Builder
	for i := range listings {
		l := &listings[i]
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Property %d:\n- Title: %s\n- Location: %s\n- Price: %s\n- Bedrooms: %d, Bathrooms: %d\n- Size: %s sqft\n- Amenities: %s",
			i+1, l.Title, l.Location, utils.FormatPrice(l.Price), l.Bedrooms, l.Bathrooms,
			strconv.FormatFloat(l.SizeSqft, 'f', -1, 64), strings.Join(l.Amenities, ", "))
	}

	countLine := fmt.Sprintf("%d properties match the request.", total)
	if total > len(listings) {
		countLine = fmt.Sprintf("%d properties match the request; the %d below are shown.", total, len(listings))
	}

	return fmt.Sprintf(`You are a helpful real estate assistant. Based on the following properties, answer the user's question in a friendly and informative way.

%s

Properties:
%s

User Question: %s

Provide a natural, conversational response that states how many properties match, highlights the most relevant ones and explains why they fit the user's needs.`,
		countLine, b.String(), query)
}

// ComputePoolStats summarises pool; locations are distinct, in first-seen order, at most sample of them
func ComputePoolStats(pool []model.Listing, sample int) model.PoolStats {
	stats := model.PoolStats{Count: len(pool), Locations: []string{}}
	if len(pool) == 0 {
		return stats
	}

	seen := make(map[string]struct{})
	minPrice, maxPrice, sum := math.Inf(1), math.Inf(-1), 0.0
	for i := range pool {
		p := pool[i].Price
		minPrice = math.Min(minPrice, p)
		maxPrice = math.Max(maxPrice, p)
		sum += p

		loc := strings.TrimSpace(pool[i].Location)
		if loc == "" || len(stats.Locations) >= sample {
			continue
		}
		if _, dup := seen[loc]; !dup {
			seen[loc] = struct{}{}
			stats.Locations = append(stats.Locations, loc)
		}
	}

	stats.MinPrice = minPrice
	stats.MaxPrice = maxPrice
	stats.AvgPrice = math.Round(sum/float64(len(pool))*100) / 100
	return stats
}
