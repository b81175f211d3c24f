package pricing

import (
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
)

// Table is an immutable price list.
type Table struct {
	prices map[ServiceKey]decimal.Decimal
}

func NewTable(prices map[ServiceKey]decimal.Decimal) *Table {
	return &Table{prices: maps.Clone(prices)}
}

// Defaults returns the built-in price list used when no pricing file is configured.
func Defaults() map[ServiceKey]decimal.Decimal {
	return map[ServiceKey]decimal.Decimal{
		ServiceScanLabel:    decimal.RequireFromString("0.35"),
		ServiceEmptyPackage: decimal.RequireFromString("0.50"),
		ServiceDesign2D:     decimal.RequireFromString("2.00"),
		ServiceDesign3D:     decimal.RequireFromString("4.00"),
		ServiceDesignLogo:   decimal.RequireFromString("1.50"),
		ServiceOther:        decimal.RequireFromString("1.00"),
	}
}

func (t *Table) Price(key ServiceKey) (decimal.Decimal, error) {
	p, ok := t.prices[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownService, key)
	}

	return p, nil
}

// Keys lists the configured service keys.
func (t *Table) Keys() []ServiceKey {
	keys := make([]ServiceKey, 0, len(t.prices))
	for k := range t.prices {
		keys = append(keys, k)
	}

	return keys
}

func validate(prices map[ServiceKey]decimal.Decimal) error {
	for k, p := range prices {
		if !p.IsPositive() {
			return fmt.Errorf("price for %s must be positive, got %s", k, p)
		}

		if !p.Equal(p.Round(2)) {
			return fmt.Errorf("price for %s has more than two decimal places: %s", k, p)
		}
	}

	return nil
}
