/*
Package ratecard holds the pricing rules a company ships under.

PURPOSE:
  A RateCard is a named, versioned set of pricing rules for one company:
  base weight brackets, per-kg rules for weight beyond a bracket, zone
  pricing and surcharge settings. This package defines the aggregate, its
  validation rules and the persistence interfaces. It contains no pricing
  arithmetic; see the pricing package for that.

KEY CONCEPTS IN THIS FILE (types.go):
  - RateCard: the aggregate (status, effective window, rules, surcharges)
  - BaseRatePick: flat price for a weight bracket
  - WeightRule: per-kg price for weight above a bracket
  - ZoneRule / ZoneMultipliers: the two zone pricing strategies
  - Surcharges: minimum call, fuel, COD slabs, remote area, GST

DESIGN PRINCIPLES:
  1. Precision: every money value and weight is a decimal.Decimal
  2. Explicit strategy: ZoneMode says which zone pricing applies, the
     presence of optional fields never decides it
  3. Half-open windows: [min, max) for weights and COD slabs alike
  4. Reproducibility: a card referenced by a recorded quote is never
     mutated, a new version supersedes it (see registry.go)

SEE ALSO:
  - validate.go: structural invariants (overlaps, zone mode exclusivity)
  - registry.go: create/update with versioning
  - store.go: persistence interfaces
*/
package ratecard

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RateCardID string
type CompanyID string
type Carrier string
type ServiceType string

// Tier is a company pricing tier (e.g. "lite", "basic", "advanced").
type Tier string

// NormalizeCarrier lowercases and trims a carrier name.
func NormalizeCarrier(s string) Carrier { return Carrier(strings.ToLower(strings.TrimSpace(s))) }

// NormalizeService lowercases and trims a service type.
func NormalizeService(s string) ServiceType {
	return ServiceType(strings.ToLower(strings.TrimSpace(s)))
}

// Key identifies the rules of one carrier service on a card.
type Key struct {
	Carrier     Carrier
	ServiceType ServiceType
}

func (k Key) String() string { return string(k.Carrier) + "/" + string(k.ServiceType) }

// =============================================================================
// STATUS AND ZONE MODE
// =============================================================================

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ZoneMode selects how the zone contributes to the price.
type ZoneMode string

const (
	// ZoneModeNone: the zone does not change the price.
	ZoneModeNone ZoneMode = "none"

	// ZoneModeFlat: ZoneRule.AdditionalPrice is added to freight.
	ZoneModeFlat ZoneMode = "flat"

	// ZoneModeMultiplier: freight is scaled by ZoneMultipliers[zone].
	ZoneModeMultiplier ZoneMode = "multiplier"
)

// FuelBase selects what the fuel surcharge percentage applies to.
type FuelBase string

const (
	FuelBaseFreight     FuelBase = "freight"
	FuelBaseFreightZone FuelBase = "freight+zone"
)

// SlabKind says how a COD slab charges.
type SlabKind string

const (
	SlabFlat    SlabKind = "flat"
	SlabPercent SlabKind = "percent"
)

// =============================================================================
// RULES
// =============================================================================

// Window is a half-open range [Min, Max).
type Window struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether Min <= v < Max.
func (w Window) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(w.Min) && v.LessThan(w.Max)
}

// Overlaps reports whether the two windows share any point.
// Adjacent windows ([0,1) and [1,2)) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Min.LessThan(o.Max) && o.Min.LessThan(w.Max)
}

func (w Window) String() string {
	return "[" + w.Min.String() + ", " + w.Max.String() + ")"
}

// BaseRatePick is the flat price for shipments whose weight falls in its window.
type BaseRatePick struct {
	Carrier     Carrier
	ServiceType ServiceType
	BasePrice   decimal.Decimal
	MinWeight   decimal.Decimal
	MaxWeight   decimal.Decimal
}

func (b BaseRatePick) Key() Key       { return Key{Carrier: b.Carrier, ServiceType: b.ServiceType} }
func (b BaseRatePick) Window() Window { return Window{Min: b.MinWeight, Max: b.MaxWeight} }

// WeightRule prices weight above a base bracket, per kilogram.
type WeightRule struct {
	Carrier     Carrier
	ServiceType ServiceType
	MinWeight   decimal.Decimal
	MaxWeight   decimal.Decimal
	PricePerKg  decimal.Decimal
}

func (r WeightRule) Key() Key       { return Key{Carrier: r.Carrier, ServiceType: r.ServiceType} }
func (r WeightRule) Window() Window { return Window{Min: r.MinWeight, Max: r.MaxWeight} }

// ZoneRule is the flat zone add-on for one carrier service.
type ZoneRule struct {
	Zone            zone.Code
	Carrier         Carrier
	ServiceType     ServiceType
	AdditionalPrice decimal.Decimal
	TransitDays     int
}

func (z ZoneRule) Key() Key { return Key{Carrier: z.Carrier, ServiceType: z.ServiceType} }

// CODSlab charges cash-on-delivery shipments whose order value is in [Min, Max).
type CODSlab struct {
	Min   decimal.Decimal
	Max   decimal.Decimal
	Kind  SlabKind
	Value decimal.Decimal // flat amount, or percent of order value
}

func (s CODSlab) Window() Window { return Window{Min: s.Min, Max: s.Max} }

// Surcharges are the scalar add-on settings of a card.
type Surcharges struct {
	MinimumCall         decimal.Decimal
	FuelPercent         decimal.Decimal
	FuelBase            FuelBase
	CODSlabs            []CODSlab
	RemoteAreaEnabled   bool
	RemoteAreaSurcharge decimal.Decimal
	GSTPercent          decimal.Decimal
}

// =============================================================================
// RATE CARD
// =============================================================================

type RateCard struct {
	ID        RateCardID
	CompanyID CompanyID
	Name      string
	Version   int
	Status    Status

	// Effective window. Zero EffectiveFrom means "since forever",
	// nil EffectiveTo means "until further notice". EffectiveTo is exclusive.
	EffectiveFrom time.Time
	EffectiveTo   *time.Time

	ZoneMode        ZoneMode
	BaseRates       []BaseRatePick
	WeightRules     []WeightRule
	ZoneRules       []ZoneRule
	ZoneMultipliers map[zone.Code]decimal.Decimal

	Surcharges Surcharges

	// SupersededBy is set when a newer version replaced this card.
	SupersededBy RateCardID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEffectiveAt reports whether the card is active and inside its window.
func (c *RateCard) IsEffectiveAt(at time.Time) bool {
	return c.CheckUsable(at) == nil
}

// CheckUsable returns an *InvalidRateCardError if the card cannot price at `at`.
func (c *RateCard) CheckUsable(at time.Time) error {
	if c.Status != StatusActive {
		return &InvalidRateCardError{CardID: c.ID, Reason: "card is " + string(c.Status)}
	}
	if !c.EffectiveFrom.IsZero() && at.Before(c.EffectiveFrom) {
		return &InvalidRateCardError{CardID: c.ID, Reason: "card not effective until " + c.EffectiveFrom.Format(time.RFC3339)}
	}
	if c.EffectiveTo != nil && !at.Before(*c.EffectiveTo) {
		return &InvalidRateCardError{CardID: c.ID, Reason: "card expired at " + c.EffectiveTo.Format(time.RFC3339)}
	}
	return nil
}

// BaseRatesFor returns the base brackets of one carrier service, lightest first.
func (c *RateCard) BaseRatesFor(k Key) []BaseRatePick {
	var out []BaseRatePick
	for _, b := range c.BaseRates {
		if b.Key() == k {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinWeight.LessThan(out[j].MinWeight) })
	return out
}

// WeightRulesFor returns the per-kg rules of one carrier service, lightest first.
func (c *RateCard) WeightRulesFor(k Key) []WeightRule {
	var out []WeightRule
	for _, r := range c.WeightRules {
		if r.Key() == k {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinWeight.LessThan(out[j].MinWeight) })
	return out
}

// ZoneRuleFor finds the flat zone rule for a carrier service.
func (c *RateCard) ZoneRuleFor(code zone.Code, k Key) (ZoneRule, bool) {
	for _, z := range c.ZoneRules {
		if z.Zone == code && z.Key() == k {
			return z, true
		}
	}
	return ZoneRule{}, false
}

// Keys returns every carrier service the card can price, sorted.
func (c *RateCard) Keys() []Key {
	seen := make(map[Key]bool)
	var out []Key
	for _, b := range c.BaseRates {
		if !seen[b.Key()] {
			seen[b.Key()] = true
			out = append(out, b.Key())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Clone returns a deep copy so callers can edit without touching shared state.
func (c RateCard) Clone() RateCard {
	out := c
	out.BaseRates = append([]BaseRatePick(nil), c.BaseRates...)
	out.WeightRules = append([]WeightRule(nil), c.WeightRules...)
	out.ZoneRules = append([]ZoneRule(nil), c.ZoneRules...)
	out.Surcharges.CODSlabs = append([]CODSlab(nil), c.Surcharges.CODSlabs...)
	if c.ZoneMultipliers != nil {
		out.ZoneMultipliers = make(map[zone.Code]decimal.Decimal, len(c.ZoneMultipliers))
		for k, v := range c.ZoneMultipliers {
			out.ZoneMultipliers[k] = v
		}
	}
	if c.EffectiveTo != nil {
		t := *c.EffectiveTo
		out.EffectiveTo = &t
	}
	return out
}

// =============================================================================
// COMPANY, ZONES, CARRIERS
// =============================================================================

// Zone is a company's named zone. Pricing references it by Code only.
type Zone struct {
	ID        string
	CompanyID CompanyID
	Code      zone.Code
	Name      string
	Pincodes  []string
	CreatedAt time.Time
}

// Company is the slice of company data pricing needs.
type Company struct {
	ID   CompanyID
	Name string
	Tier Tier
}

// Assignment makes a card the default for a company tier.
// At most one per (company, tier); there is no inheritance between tiers.
type Assignment struct {
	CompanyID  CompanyID
	Tier       Tier
	RateCardID RateCardID
	AssignedAt time.Time
}

// CarrierConfig enables a carrier for a company.
type CarrierConfig struct {
	CompanyID    CompanyID
	Carrier      Carrier
	ServiceTypes []ServiceType
	Active       bool

	// TransitDays is the declared default; a flat ZoneRule may override it.
	TransitDays int
}

// Supports reports whether the carrier offers the service.
func (cc CarrierConfig) Supports(s ServiceType) bool {
	for _, st := range cc.ServiceTypes {
		if st == s {
			return true
		}
	}
	return false
}
