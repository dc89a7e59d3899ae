// README: Ranking inputs, outputs and sort modes.
package location

import (
	"errors"

	"tidyhome/internal/types"
)

type SortMode string

const (
	SortDistanceClosest  SortMode = "distanceClosest"
	SortDistanceFurthest SortMode = "distanceFurthest"
	SortPriceLow         SortMode = "priceLow"
	SortPriceHigh        SortMode = "priceHigh"
)

var ErrUnknownSortMode = errors.New("unknown sort mode")

func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case SortDistanceClosest, SortDistanceFurthest, SortPriceLow, SortPriceHigh:
		return m, nil
	case "":
		return SortDistanceClosest, nil
	default:
		return "", ErrUnknownSortMode
	}
}

// Candidate is one rankable job. A nil Coordinate means the location could
// not be resolved.
type Candidate struct {
	ID         types.ID
	HomeID     types.ID
	Coordinate *types.Point
	Price      types.Money
}

// Ranked is a Candidate with its distance from the origin. DistanceKm is nil
// when either end is unknown.
type Ranked struct {
	Candidate
	DistanceKm *float64
}

func (r Ranked) KnownDistance() bool {
	return r.DistanceKm != nil
}
