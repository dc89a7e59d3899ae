// README: Pricing inputs: time windows, service options and the quote breakdown.
package pricing

import (
	"errors"
	"strings"
)

var ErrBadRequest = errors.New("bad pricing input")

// TimeWindow is the arrival window a home owner picks for a cleaning.
type TimeWindow string

const (
	WindowAnytime TimeWindow = "anytime"
	Window10To3   TimeWindow = "10-3"
	Window11To4   TimeWindow = "11-4"
	Window12To2   TimeWindow = "12-2"
)

var windowSurcharge = map[TimeWindow]int64{
	WindowAnytime: 0,
	Window10To3:   30,
	Window11To4:   30,
	Window12To2:   50,
}

func ParseTimeWindow(s string) (TimeWindow, error) {
	w := TimeWindow(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := windowSurcharge[w]; !ok {
		return "", ErrBadRequest
	}
	return w, nil
}

func (w TimeWindow) Valid() bool {
	_, ok := windowSurcharge[w]
	return ok
}

// ParseToggle accepts the legacy "yes"/"no" form fields as well as "true"/"false".
func ParseToggle(s string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "yes", "true":
		return true, nil
	case "no", "false", "":
		return false, nil
	}
	return false, ErrBadRequest
}

type Options struct {
	TimeWindow  TimeWindow
	BringSheets bool
	BringTowels bool
}

type Quote struct {
	NumBeds  int
	NumBaths int
	Options  Options
}

type Breakdown struct {
	WindowSurcharge int64 `json:"window_surcharge"`
	AddOns          int64 `json:"add_ons"`
	RoomBase        int64 `json:"room_base"`
	Total           int64 `json:"total"`
}

const (
	linenFee       = 25
	roomBase       = 100
	extraRoomPrice = 50
	roomsPerWorker = 4
)
