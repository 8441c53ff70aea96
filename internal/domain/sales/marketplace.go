// Package sales holds the marketplace sales domain: canonical sale rows,
// fee schedules, the analytics calculator and the report aggregate.
package sales

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMarketplace = errors.New("sales: invalid marketplace")
)

// Marketplace identifies the marketplace a sales report was exported from
type Marketplace string

const (
	// MarketplaceWildberries is the Wildberries seller export (profile A)
	MarketplaceWildberries Marketplace = "WILDBERRIES"
	// MarketplaceOzon is the Ozon seller export (profile B)
	MarketplaceOzon Marketplace = "OZON"
)

// IsValid returns true if the marketplace is one of the supported values
func (m Marketplace) IsValid() bool {
	switch m {
	case MarketplaceWildberries, MarketplaceOzon:
		return true
	default:
		return false
	}
}

// String returns the string representation of Marketplace
func (m Marketplace) String() string {
	return string(m)
}

// DisplayName returns a human-readable name for the marketplace
func (m Marketplace) DisplayName() string {
	switch m {
	case MarketplaceWildberries:
		return "Wildberries"
	case MarketplaceOzon:
		return "Ozon"
	default:
		return string(m)
	}
}

// ParseMarketplace parses a marketplace identifier, case-insensitively.
// "WB" is accepted as an alias for Wildberries.
func ParseMarketplace(s string) (Marketplace, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "WB" {
		v = string(MarketplaceWildberries)
	}
	m := Marketplace(v)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMarketplace, s)
	}
	return m, nil
}

// AllMarketplaces returns all supported marketplaces
func AllMarketplaces() []Marketplace {
	return []Marketplace{MarketplaceWildberries, MarketplaceOzon}
}
