package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// RowError explains why one row was not imported.
type RowError struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result summarizes an import. Created and Updated list card names.
type Result struct {
	Created []string   `json:"created"`
	Updated []string   `json:"updated"`
	Errors  []RowError `json:"errors"`
}

// Defaults are applied to cards the import creates.
type Defaults struct {
	GSTPercent decimal.Decimal
	FuelBase   ratecard.FuelBase
}

// Publisher is the write path for cards. ratecard.Registry implements it.
type Publisher interface {
	Publish(ctx context.Context, card ratecard.RateCard) (*ratecard.RateCard, error)
}

type Importer struct {
	cards     ratecard.Store
	zones     ratecard.ZoneStore
	publisher Publisher
	defaults  Defaults
	logger    *zap.Logger
}

func New(cards ratecard.Store, zones ratecard.ZoneStore, publisher Publisher, defaults Defaults, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.FuelBase == "" {
		defaults.FuelBase = ratecard.FuelBaseFreight
	}
	return &Importer{cards: cards, zones: zones, publisher: publisher, defaults: defaults, logger: logger}
}

// =============================================================================
// IMPORT
// =============================================================================

// Import validates rows and upserts the valid ones. Invalid rows are
// reported in Result.Errors; only store faults return an error.
func (im *Importer) Import(ctx context.Context, companyID ratecard.CompanyID, rows []Row) (*Result, error) {
	res := &Result{Created: []string{}, Updated: []string{}, Errors: []RowError{}}

	var order []string
	byName := make(map[string][]Row)
	for _, r := range rows {
		if r.Name == "" {
			res.Errors = append(res.Errors, RowError{Row: r.Index, Reason: "name is required"})
			continue
		}
		if _, ok := byName[r.Name]; !ok {
			order = append(order, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r)
	}

	for _, name := range order {
		if err := im.importCard(ctx, companyID, name, byName[name], res); err != nil {
			return nil, err
		}
	}

	im.logger.Info("rate card import finished",
		zap.String("company_id", string(companyID)),
		zap.Int("rows", len(rows)),
		zap.Strings("created", res.Created),
		zap.Strings("updated", res.Updated),
		zap.Int("row_errors", len(res.Errors)))
	return res, nil
}

// cardImport accumulates the accepted rows of one card.
type cardImport struct {
	existing *ratecard.RateCard
	status   ratecard.Status
	keys     []ratecard.Key
	bases    map[ratecard.Key][]ratecard.BaseRatePick
	zones    map[ratecard.Key]map[zone.Code]ratecard.ZoneRule
	firstRow int
}

func (ci *cardImport) touch(k ratecard.Key) {
	if _, ok := ci.bases[k]; !ok {
		ci.keys = append(ci.keys, k)
		ci.bases[k] = nil
	}
}

func (im *Importer) importCard(ctx context.Context, companyID ratecard.CompanyID, name string, rows []Row, res *Result) error {
	existing, err := im.cards.FindRateCard(ctx, companyID, name)
	if err != nil && !errors.Is(err, ratecard.ErrRateCardNotFound) {
		return fmt.Errorf("find rate card %q: %w", name, err)
	}
	if err != nil {
		existing = nil
	}

	ci := &cardImport{
		existing: existing,
		bases:    make(map[ratecard.Key][]ratecard.BaseRatePick),
		zones:    make(map[ratecard.Key]map[zone.Code]ratecard.ZoneRule),
	}

	for _, r := range rows {
		if reason := ci.accept(r); reason != "" {
			res.Errors = append(res.Errors, RowError{Row: r.Index, Name: r.Name, Reason: reason})
			continue
		}
		if ci.firstRow == 0 {
			ci.firstRow = r.Index
		}
	}
	if ci.firstRow == 0 {
		return nil
	}

	card := ci.build(companyID, name, im.defaults)
	saved, err := im.publisher.Publish(ctx, card)
	if err != nil {
		if errors.Is(err, ratecard.ErrInvalidCard) || errors.Is(err, ratecard.ErrSuperseded) {
			res.Errors = append(res.Errors, RowError{Row: ci.firstRow, Name: name, Reason: err.Error()})
			return nil
		}
		return fmt.Errorf("publish rate card %q: %w", name, err)
	}

	if err := im.ensureZones(ctx, companyID, ci); err != nil {
		return err
	}

	if existing == nil {
		res.Created = append(res.Created, saved.Name)
	} else {
		res.Updated = append(res.Updated, saved.Name)
	}
	return nil
}

// parsedRow is a row after step 1.
type parsedRow struct {
	key       ratecard.Key
	base      ratecard.BaseRatePick
	zone      zone.Code
	zonePrice decimal.Decimal
	hasZone   bool
	transit   int
	status    ratecard.Status
}

// accept runs the three validation steps and, if all pass, records the
// row. It returns a non-empty reason for an invalid row.
func (ci *cardImport) accept(r Row) string {
	// 1. fields
	p, reason := parseRow(r)
	if reason != "" {
		return reason
	}
	if p.status != "" && ci.status != "" && p.status != ci.status {
		return fmt.Sprintf("status %q conflicts with %q set by an earlier row", p.status, ci.status)
	}
	if p.hasZone && ci.existing != nil && ci.existing.ZoneMode == ratecard.ZoneModeMultiplier {
		return "card uses zone multipliers; zone prices are not accepted"
	}

	// 2. overlap within this import
	merge := false
	nw := p.base.Window()
	accepted := make([]ratecard.Window, 0, len(ci.bases[p.key]))
	for _, b := range ci.bases[p.key] {
		w := b.Window()
		if w.Min.Equal(nw.Min) && w.Max.Equal(nw.Max) {
			if !b.BasePrice.Equal(p.base.BasePrice) {
				return fmt.Sprintf("bracket %s for %s already priced at %s", nw, p.key, b.BasePrice)
			}
			merge = true
			break
		}
		accepted = append(accepted, w)
	}
	if !merge {
		if err := ratecard.CheckOverlap("base rate", p.key, accepted, nw); err != nil {
			return err.Error()
		}
	}
	if p.hasZone {
		if prev, ok := ci.zones[p.key][p.zone]; ok && !prev.AdditionalPrice.Equal(p.zonePrice) {
			return fmt.Sprintf("zone price for %s %s already set to %s", p.key, p.zone, prev.AdditionalPrice)
		}
	}

	// 3. zone: canonical codes only, created once the card is published
	ci.touch(p.key)
	if !merge {
		ci.bases[p.key] = append(ci.bases[p.key], p.base)
	}
	if p.hasZone {
		if ci.zones[p.key] == nil {
			ci.zones[p.key] = make(map[zone.Code]ratecard.ZoneRule)
		}
		ci.zones[p.key][p.zone] = ratecard.ZoneRule{
			Zone:            p.zone,
			Carrier:         p.key.Carrier,
			ServiceType:     p.key.ServiceType,
			AdditionalPrice: p.zonePrice,
			TransitDays:     p.transit,
		}
	}
	if p.status != "" {
		ci.status = p.status
	}
	return ""
}

func parseRow(r Row) (parsedRow, string) {
	var p parsedRow
	for _, f := range []struct{ name, value string }{
		{"carrier", r.Carrier},
		{"service type", r.ServiceType},
		{"base price", r.BasePrice},
		{"min weight", r.MinWeight},
		{"max weight", r.MaxWeight},
	} {
		if f.value == "" {
			return p, f.name + " is required"
		}
	}

	p.key = ratecard.Key{
		Carrier:     ratecard.NormalizeCarrier(r.Carrier),
		ServiceType: ratecard.NormalizeService(r.ServiceType),
	}

	price, reason := parseAmount("base price", r.BasePrice)
	if reason != "" {
		return p, reason
	}
	lo, reason := parseAmount("min weight", r.MinWeight)
	if reason != "" {
		return p, reason
	}
	hi, reason := parseAmount("max weight", r.MaxWeight)
	if reason != "" {
		return p, reason
	}
	if !hi.GreaterThan(lo) {
		return p, fmt.Sprintf("max weight %s must be greater than min weight %s", hi, lo)
	}
	p.base = ratecard.BaseRatePick{
		Carrier:     p.key.Carrier,
		ServiceType: p.key.ServiceType,
		BasePrice:   price,
		MinWeight:   lo,
		MaxWeight:   hi,
	}

	switch {
	case r.Zone == "" && r.ZonePrice == "":
	case r.Zone == "":
		return p, "zone price given without zone"
	case r.ZonePrice == "":
		return p, "zone given without zone price"
	default:
		code, ok := zone.NormalizeCode(r.Zone)
		if !ok {
			return p, "unknown zone " + zone.Sanitize(r.Zone)
		}
		zp, reason := parseAmount("zone price", r.ZonePrice)
		if reason != "" {
			return p, reason
		}
		p.zone, p.zonePrice, p.hasZone = code, zp, true
	}

	if r.TransitDays != "" {
		n, err := strconv.Atoi(r.TransitDays)
		if err != nil || n < 0 {
			return p, "transit days must be a non-negative integer"
		}
		p.transit = n
	}

	switch s := ratecard.Status(strings.ToLower(r.Status)); s {
	case "", ratecard.StatusActive, ratecard.StatusInactive:
		p.status = s
	default:
		return p, fmt.Sprintf("unknown status %q", r.Status)
	}
	return p, ""
}

func parseAmount(field, s string) (decimal.Decimal, string) {
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Sprintf("%s %q is not a number", field, s)
	}
	if v.IsNegative() {
		return decimal.Zero, field + " must not be negative"
	}
	return v, ""
}

// ensureZones creates the company zones the published rows price.
func (im *Importer) ensureZones(ctx context.Context, companyID ratecard.CompanyID, ci *cardImport) error {
	for _, code := range zone.AllCodes() {
		for _, k := range ci.keys {
			if _, ok := ci.zones[k][code]; !ok {
				continue
			}
			if err := im.ensureZone(ctx, companyID, code); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (im *Importer) ensureZone(ctx context.Context, companyID ratecard.CompanyID, code zone.Code) error {
	_, err := im.zones.GetZone(ctx, companyID, code)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ratecard.ErrZoneNotFound) {
		return fmt.Errorf("get zone %s: %w", code, err)
	}
	z := ratecard.Zone{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Code:      code,
		Name:      string(code),
		CreatedAt: time.Now().UTC(),
	}
	if err := im.zones.SaveZone(ctx, z); err != nil {
		return fmt.Errorf("create zone %s: %w", code, err)
	}
	im.logger.Info("zone created by import",
		zap.String("company_id", string(companyID)),
		zap.String("zone", string(code)))
	return nil
}

// build merges the accepted rows into a card: new, or the existing card
// with every imported carrier service replaced.
func (ci *cardImport) build(companyID ratecard.CompanyID, name string, defaults Defaults) ratecard.RateCard {
	var card ratecard.RateCard
	if ci.existing != nil {
		card = ci.existing.Clone()
	} else {
		card = ratecard.RateCard{
			CompanyID: companyID,
			Name:      name,
			Status:    ratecard.StatusActive,
			ZoneMode:  ratecard.ZoneModeNone,
			Surcharges: ratecard.Surcharges{
				GSTPercent: defaults.GSTPercent,
				FuelBase:   defaults.FuelBase,
			},
		}
	}

	imported := make(map[ratecard.Key]bool, len(ci.keys))
	for _, k := range ci.keys {
		imported[k] = true
	}

	var bases []ratecard.BaseRatePick
	for _, b := range card.BaseRates {
		if !imported[b.Key()] {
			bases = append(bases, b)
		}
	}
	var zoneRules []ratecard.ZoneRule
	for _, z := range card.ZoneRules {
		if !imported[z.Key()] {
			zoneRules = append(zoneRules, z)
		}
	}
	for _, k := range ci.keys {
		bases = append(bases, ci.bases[k]...)
		for _, code := range zone.AllCodes() {
			if rule, ok := ci.zones[k][code]; ok {
				zoneRules = append(zoneRules, rule)
			}
		}
	}
	card.BaseRates = bases
	card.ZoneRules = zoneRules

	if len(card.ZoneRules) > 0 && card.ZoneMode == ratecard.ZoneModeNone {
		card.ZoneMode = ratecard.ZoneModeFlat
	}
	if ci.status != "" {
		card.Status = ci.status
	}
	return card
}
