package service

import (
	"sort"

	"mira/internal/model"
)

// Ranker orders a matched set by a listing attribute for superlative queries
// ("cheapest", "largest", "best value"). The sort is stable, so equal keys keep
// the incoming order.
type Ranker struct{}

// NewRanker creates a new ranker
func NewRanker() *Ranker {
	return &Ranker{}
}

// Sort returns a sorted copy of listings. Unknown keys return the input order.
func (r *Ranker) Sort(listings []model.Listing, key model.SortKey) []model.Listing {
	out := make([]model.Listing, len(listings))
	copy(out, listings)

	less := r.lessFunc(out, key)
	if less == nil {
		return out
	}
	sort.SliceStable(out, less)
	return out
}

func (r *Ranker) lessFunc(l []model.Listing, key model.SortKey) func(i, j int) bool {
	switch key {
	case model.SortPriceAsc:
		return func(i, j int) bool { return l[i].Price < l[j].Price }
	case model.SortPriceDesc:
		return func(i, j int) bool { return l[i].Price > l[j].Price }
	case model.SortSizeAsc:
		return func(i, j int) bool { return l[i].SizeSqft < l[j].SizeSqft }
	case model.SortSizeDesc:
		return func(i, j int) bool { return l[i].SizeSqft > l[j].SizeSqft }
	case model.SortBedroomsDesc:
		return func(i, j int) bool { return l[i].Bedrooms > l[j].Bedrooms }
	case model.SortBathroomsDesc:
		return func(i, j int) bool { return l[i].Bathrooms > l[j].Bathrooms }
	case model.SortValueAsc:
		return func(i, j int) bool { return valueLess(&l[i], &l[j]) }
	case model.SortAmenitiesAsc:
		return func(i, j int) bool { return len(l[i].Amenities) < len(l[j].Amenities) }
	case model.SortAmenitiesDesc:
		return func(i, j int) bool { return len(l[i].Amenities) > len(l[j].Amenities) }
	}
	return nil
}

// valueLess orders by price per sqft; listings without a size sort last
func valueLess(a, b *model.Listing) bool {
	va, vb := a.PricePerSqft(), b.PricePerSqft()
	switch {
	case va == 0 && vb == 0:
		return false
	case va == 0:
		return false
	case vb == 0:
		return true
	}
	return va < vb
}
