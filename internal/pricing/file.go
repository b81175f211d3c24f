package pricing

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// File is a Provider backed by a TOML file of the form:
//
//	[prices]
//	scan_label = "0.35"
//	design_2d = 2.00
//
// Reload re-reads the file; readers never observe a half-loaded table.
type File struct {
	path string

	mu    sync.RWMutex
	table *Table
}

func LoadFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}

	return f, nil
}

type fileDoc struct {
	Prices map[string]any `toml:"prices"`
}

func (f *File) Reload() error {
	var doc fileDoc
	if _, err := toml.DecodeFile(f.path, &doc); err != nil {
		return fmt.Errorf("decoding pricing file %s: %w", f.path, err)
	}

	prices, err := parsePrices(doc.Prices)
	if err != nil {
		return fmt.Errorf("pricing file %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.table = NewTable(prices)
	f.mu.Unlock()

	return nil
}

func (f *File) Price(key ServiceKey) (decimal.Decimal, error) {
	f.mu.RLock()
	t := f.table
	f.mu.RUnlock()

	return t.Price(key)
}

func parsePrices(raw map[string]any) (map[ServiceKey]decimal.Decimal, error) {
	prices := make(map[ServiceKey]decimal.Decimal, len(raw))

	for k, v := range raw {
		var (
			p   decimal.Decimal
			err error
		)

		switch val := v.(type) {
		case string:
			p, err = decimal.NewFromString(val)
		case int64:
			p = decimal.NewFromInt(val)
		case float64:
			p = decimal.NewFromFloat(val)
		default:
			err = fmt.Errorf("unsupported value type %T", v)
		}

		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", k, err)
		}

		prices[ServiceKey(k)] = p
	}

	if err := validate(prices); err != nil {
		return nil, err
	}

	return prices, nil
}
