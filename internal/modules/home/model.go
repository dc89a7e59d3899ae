// README: Home aggregate, access enum and booking-side validation.
package home

import (
	"errors"
	"strings"
	"time"

	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

var (
	ErrNotFound        = errors.New("home not found")
	ErrBadRequest      = errors.New("bad request")
	ErrUnresolvableZip = errors.New("zipcode could not be resolved")
)

type AccessMethod string

const (
	AccessCode AccessMethod = "code"
	AccessKey  AccessMethod = "key"
)

func (m AccessMethod) Valid() bool {
	return m == AccessCode || m == AccessKey
}

// Access tells cleaners how to get in: a door code, or where the key is kept.
type Access struct {
	Method AccessMethod
	Detail string
}

type Address struct {
	Street  string
	City    string
	State   string
	Zipcode string
}

func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.Zipcode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Home struct {
	ID                types.ID
	OwnerID           types.ID
	Nickname          string
	Address           Address
	Coordinate        *types.Point
	NumBeds           int
	NumBaths          int
	SheetsDefault     bool
	TowelsDefault     bool
	TimeWindowDefault pricing.TimeWindow
	Access            Access
	ContactPhone      string
	SpecialNotes      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DefaultOptions are the service options new appointments start from.
func (h *Home) DefaultOptions() pricing.Options {
	return pricing.Options{
		TimeWindow:  h.TimeWindowDefault,
		BringSheets: h.SheetsDefault,
		BringTowels: h.TowelsDefault,
	}
}

// ValidZip accepts US ZIP and ZIP+4 forms.
func ValidZip(z string) bool {
	z = strings.TrimSpace(z)
	if len(z) != 5 && len(z) != 10 {
		return false
	}
	for i, c := range z {
		if i == 5 {
			if c != '-' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
