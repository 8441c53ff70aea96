package sales

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultFeeScheduleVersion is the version of the built-in fee table
const DefaultFeeScheduleVersion = "2024.1"

var ErrInvalidFeeSchedule = errors.New("sales: invalid fee schedule")

// Surcharge is a marketplace-specific fee on revenue, such as the
// Wildberries acquiring fee or the Ozon fulfillment fee.
type Surcharge struct {
	Name string
	Rate decimal.Decimal
}

// FeeProfile holds the fee rates of one marketplace. All rates are fractions of revenue.
type FeeProfile struct {
	SaleCommissionRate decimal.Decimal
	LogisticsRate      decimal.Decimal
	StorageRate        decimal.Decimal
	Surcharge          *Surcharge
}

// TotalRate returns the sum of every rate in the profile
func (p FeeProfile) TotalRate() decimal.Decimal {
	total := p.SaleCommissionRate.Add(p.LogisticsRate).Add(p.StorageRate)
	if p.Surcharge != nil {
		total = total.Add(p.Surcharge.Rate)
	}
	return total
}

func (p FeeProfile) clone() FeeProfile {
	if p.Surcharge != nil {
		s := *p.Surcharge
		p.Surcharge = &s
	}
	return p
}

func (p FeeProfile) validate() error {
	rates := map[string]decimal.Decimal{
		"sale commission": p.SaleCommissionRate,
		"logistics":       p.LogisticsRate,
		"storage":         p.StorageRate,
	}
	if p.Surcharge != nil {
		rates["surcharge "+p.Surcharge.Name] = p.Surcharge.Rate
	}
	for name, rate := range rates {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s rate %s out of range [0,1]", name, rate)
		}
	}
	return nil
}

// FeeSchedule is an immutable, versioned table of fee profiles keyed by marketplace
type FeeSchedule struct {
	version  string
	profiles map[Marketplace]FeeProfile
}

// NewFeeSchedule creates a fee schedule. The profiles are copied, so later
// changes to the argument do not affect the schedule.
func NewFeeSchedule(version string, profiles map[Marketplace]FeeProfile) (*FeeSchedule, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidFeeSchedule)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: at least one profile is required", ErrInvalidFeeSchedule)
	}
	copied := make(map[Marketplace]FeeProfile, len(profiles))
	for m, p := range profiles {
		if m == "" {
			return nil, fmt.Errorf("%w: empty marketplace key", ErrInvalidFeeSchedule)
		}
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFeeSchedule, m, err)
		}
		copied[m] = p.clone()
	}
	return &FeeSchedule{version: version, profiles: copied}, nil
}

// DefaultFeeProfiles returns a fresh copy of the built-in fee profiles
func DefaultFeeProfiles() map[Marketplace]FeeProfile {
	return map[Marketplace]FeeProfile{
		MarketplaceWildberries: {
			SaleCommissionRate: decimal.RequireFromString("0.05"),
			LogisticsRate:      decimal.RequireFromString("0.04"),
			StorageRate:        decimal.RequireFromString("0.025"),
			Surcharge: &Surcharge{
				Name: "acquiring",
				Rate: decimal.RequireFromString("0.023"),
			},
		},
		MarketplaceOzon: {
			SaleCommissionRate: decimal.RequireFromString("0.08"),
			LogisticsRate:      decimal.RequireFromString("0.035"),
			StorageRate:        decimal.RequireFromString("0.02"),
			Surcharge: &Surcharge{
				Name: "fulfillment",
				Rate: decimal.RequireFromString("0.025"),
			},
		},
	}
}

// DefaultFeeSchedule returns the built-in fee schedule
func DefaultFeeSchedule() *FeeSchedule {
	s, err := NewFeeSchedule(DefaultFeeScheduleVersion, DefaultFeeProfiles())
	if err != nil {
		panic(err)
	}
	return s
}

// Version returns the schedule version
func (s *FeeSchedule) Version() string {
	return s.version
}

// Profile returns a copy of the fee profile for a marketplace
func (s *FeeSchedule) Profile(m Marketplace) (FeeProfile, bool) {
	p, ok := s.profiles[m]
	if !ok {
		return FeeProfile{}, false
	}
	return p.clone(), true
}

// Marketplaces returns the marketplaces covered by the schedule, sorted
func (s *FeeSchedule) Marketplaces() []Marketplace {
	out := make([]Marketplace, 0, len(s.profiles))
	for m := range s.profiles {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
