/*
Package importer bulk-loads rate cards from tabular files.

PURPOSE:
  Operations teams maintain rate cards in spreadsheets. This package parses
  an exported CSV, validates each row on its own, and upserts the valid
  rows into rate cards. One bad row never blocks the others.

FILE FORMAT:
  Header-driven and case-insensitive. Required columns:
    Name, Carrier, Service Type, Base Price, Min Weight, Max Weight
  Optional columns:
    Zone, Zone Price, Status, Transit Days

  Each row is one base weight bracket of a card. A row with Zone and
  Zone Price also sets the flat zone add-on for that carrier service.

VALIDATION ORDER (per row):
  1. required fields, numeric parse, min < max, non-negative values,
     zone and zone price given together, known status
  2. overlap with brackets already accepted for the same card and
     carrier service in this import (identical bracket + identical price
     merges; identical bracket + different price is a conflict)
  3. zone code must be canonical; a missing company zone is created

UPSERT:
  Same card name: for every carrier service present in the import, its base
  brackets and zone rules are replaced wholesale. Other carrier services on
  the card are kept. Versioning is delegated to ratecard.Registry.

SEE ALSO:
  - importer.go: Import
  - ratecard/registry.go: Publish
*/
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Row is one raw data row. Fields are kept as text until validation.
type Row struct {
	Index       int // 1-based data row number (header excluded)
	Name        string
	Carrier     string
	ServiceType string
	BasePrice   string
	MinWeight   string
	MaxWeight   string
	Zone        string
	ZonePrice   string
	Status      string
	TransitDays string
}

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

const (
	colName        = "name"
	colCarrier     = "carrier"
	colServiceType = "servicetype"
	colBasePrice   = "baseprice"
	colMinWeight   = "minweight"
	colMaxWeight   = "maxweight"
	colZone        = "zone"
	colZonePrice   = "zoneprice"
	colStatus      = "status"
	colTransitDays = "transitdays"
)

var requiredColumns = []string{colName, colCarrier, colServiceType, colBasePrice, colMinWeight, colMaxWeight}

// ParseCSV reads rows from a CSV export. Column order does not matter.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[headerKey(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n, err)
		}
		if blank(rec) {
			n--
			continue
		}
		rows = append(rows, Row{
			Index:       n,
			Name:        get(rec, colName),
			Carrier:     get(rec, colCarrier),
			ServiceType: get(rec, colServiceType),
			BasePrice:   get(rec, colBasePrice),
			MinWeight:   get(rec, colMinWeight),
			MaxWeight:   get(rec, colMaxWeight),
			Zone:        get(rec, colZone),
			ZonePrice:   get(rec, colZonePrice),
			Status:      get(rec, colStatus),
			TransitDays: get(rec, colTransitDays),
		})
	}
	return rows, nil
}

// headerKey folds "Service Type", "service_type" and "SERVICE-TYPE" together.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
