// Package label turns uploaded label manifests into orders.
package label

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

var (
	ErrNoHeader      = errors.New("no manifest header found: expected a tracking code or type column")
	ErrEmptyManifest = errors.New("manifest has no labels")
)

type column int

const (
	colTracking column = iota
	colCarrier
	colType
	colSubtype
	colLabelID
)

// headerAliases maps normalized header names to manifest columns.
var headerAliases = map[string]column{
	"tracking_code":   colTracking,
	"tracking_number": colTracking,
	"tracking":        colTracking,
	"tracking_no":     colTracking,
	"code":            colTracking,
	"carrier":         colCarrier,
	"courier":         colCarrier,
	"type":            colType,
	"order_type":      colType,
	"service":         colType,
	"design_subtype":  colSubtype,
	"subtype":         colSubtype,
	"design":          colSubtype,
	"label_id":        colLabelID,
	"label":           colLabelID,
}

var typeAliases = map[string]order.Type{
	"":                order.TypeActiveTracking,
	"active_tracking": order.TypeActiveTracking,
	"tracking":        order.TypeActiveTracking,
	"scan":            order.TypeActiveTracking,
	"scan_label":      order.TypeActiveTracking,
	"empty_package":   order.TypeEmptyPackage,
	"empty":           order.TypeEmptyPackage,
	"design":          order.TypeDesign,
	"other":           order.TypeOther,
}

// Row is one label of a manifest. Number is the 1-based line in the file.
// LabelID is the raw label_id cell, empty when the manifest has none.
type Row struct {
	Number        int
	TrackingCode  string
	Carrier       string
	Type          order.Type
	DesignSubtype order.DesignSubtype
	LabelID       string
}

// Parse reads a CSV manifest. The delimiter (comma, semicolon or tab) is
// taken from the header line, which may be preceded by free-text lines.
func Parse(r io.Reader) ([]Row, error) {
	utf8r, err := utf8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		records [][]string
		lines   []int
	)

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}

	cols, headerIdx, ok := findHeader(records)
	if !ok {
		return nil, ErrNoHeader
	}

	var rows []Row

	for i := headerIdx + 1; i < len(records); i++ {
		rec := records[i]
		if blank(rec) {
			continue
		}

		rows = append(rows, Row{
			Number:        lines[i],
			TrackingCode:  cell(rec, cols, colTracking),
			Carrier:       cell(rec, cols, colCarrier),
			Type:          parseType(cell(rec, cols, colType)),
			DesignSubtype: order.DesignSubtype(strings.ToLower(cell(rec, cols, colSubtype))),
			LabelID:       cell(rec, cols, colLabelID),
		})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyManifest
	}

	return rows, nil
}

func detectDelimiter(data []byte) rune {
	for line := range bytes.Lines(data) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		best, bestCount := ',', 0

		for _, d := range []rune{',', ';', '\t'} {
			if n := bytes.Count(line, []byte(string(d))); n > bestCount {
				best, bestCount = d, n
			}
		}

		if bestCount > 0 {
			return best
		}
	}

	return ','
}

// findHeader returns the first record naming a tracking code or type column.
func findHeader(records [][]string) (map[column]int, int, bool) {
	for idx, rec := range records {
		cols := make(map[column]int)

		for i, name := range rec {
			if c, ok := headerAliases[normalizeHeader(name)]; ok {
				if _, dup := cols[c]; !dup {
					cols[c] = i
				}
			}
		}

		_, hasTracking := cols[colTracking]
		_, hasType := cols[colType]

		if hasTracking || hasType {
			return cols, idx, true
		}
	}

	return nil, 0, false
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")

	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '.'
	}), "_")
}

func parseType(s string) order.Type {
	norm := normalizeHeader(s)
	if t, ok := typeAliases[norm]; ok {
		return t
	}

	return order.Type(norm)
}

func cell(rec []string, cols map[column]int, c column) string {
	idx, ok := cols[c]
	if !ok || idx >= len(rec) {
		return ""
	}

	return strings.TrimSpace(rec[idx])
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}
