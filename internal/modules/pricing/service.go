// README: Pricing engine; ComputePrice is the single source of an appointment's price.
package pricing

import (
	"context"

	"tidyhome/internal/types"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Estimate satisfies the appointment module's Pricing dependency.
func (s *Service) Estimate(ctx context.Context, q Quote) (types.Money, error) {
	if q.NumBeds < 1 || q.NumBaths < 1 || !q.Options.TimeWindow.Valid() {
		return types.Money{}, ErrBadRequest
	}
	return ComputePrice(q.NumBeds, q.NumBaths, q.Options.TimeWindow, q.Options.BringSheets, q.Options.BringTowels), nil
}

// ComputePrice is pure; beds and baths are assumed validated (>= 1).
func ComputePrice(numBeds, numBaths int, window TimeWindow, bringSheets, bringTowels bool) types.Money {
	return types.USD(Itemize(numBeds, numBaths, window, bringSheets, bringTowels).Total)
}

func Itemize(numBeds, numBaths int, window TimeWindow, bringSheets, bringTowels bool) Breakdown {
	var b Breakdown
	b.WindowSurcharge = windowSurcharge[window]
	if bringSheets {
		b.AddOns += linenFee
	}
	if bringTowels {
		b.AddOns += linenFee
	}
	b.RoomBase = roomSizeBase(int64(numBeds), int64(numBaths))
	b.Total = b.WindowSurcharge + b.AddOns + b.RoomBase
	return b
}

// roomSizeBase keeps the historical tiering: the single-bed and single-bath
// branches only charge for the other dimension, and homes with several beds
// and several baths pay one extra room step (3 bed / 2 bath is 300).
func roomSizeBase(beds, baths int64) int64 {
	switch {
	case beds == 1 && baths == 1:
		return roomBase
	case beds == 1:
		return roomBase + (baths-1)*extraRoomPrice
	case baths == 1:
		return roomBase + (beds-1)*extraRoomPrice
	default:
		return roomBase + beds*extraRoomPrice + (baths-1)*extraRoomPrice
	}
}

// EmployeesNeeded is the fixed staffing capacity for a home of the given size.
func EmployeesNeeded(numBeds, numBaths int) int {
	n := (numBeds + numBaths + roomsPerWorker - 1) / roomsPerWorker
	if n < 1 {
		return 1
	}
	return n
}
