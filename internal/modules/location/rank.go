// README: The single ranking routine used by every listing of candidate jobs.
package location

import (
	"sort"

	"tidyhome/internal/types"
)

// Rank orders items for a cleaner at origin. Unknown distances sort last for
// distanceClosest and first for distanceFurthest; every mode breaks ties by
// ascending ID so the order is total. items is not modified.
func Rank(items []Candidate, origin *types.Point, mode SortMode) []Ranked {
	out := make([]Ranked, len(items))
	for i, c := range items {
		out[i] = Ranked{Candidate: c}
		if origin != nil && c.Coordinate != nil {
			d := DistanceKm(*origin, *c.Coordinate)
			out[i].DistanceKm = &d
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j], mode) })
	return out
}

func less(a, b Ranked, mode SortMode) bool {
	switch mode {
	case SortPriceLow:
		if a.Price.Amount != b.Price.Amount {
			return a.Price.Amount < b.Price.Amount
		}
	case SortPriceHigh:
		if a.Price.Amount != b.Price.Amount {
			return a.Price.Amount > b.Price.Amount
		}
	case SortDistanceFurthest:
		if a.KnownDistance() != b.KnownDistance() {
			return !a.KnownDistance()
		}
		if a.KnownDistance() && *a.DistanceKm != *b.DistanceKm {
			return *a.DistanceKm > *b.DistanceKm
		}
	default:
		if a.KnownDistance() != b.KnownDistance() {
			return a.KnownDistance()
		}
		if a.KnownDistance() && *a.DistanceKm != *b.DistanceKm {
			return *a.DistanceKm < *b.DistanceKm
		}
	}
	return a.ID < b.ID
}
