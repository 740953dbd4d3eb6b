/*
Package factory provides JSON <-> Go rate card conversion.

PURPOSE:
  Converts JSON rate card definitions into ratecard.RateCard values and
  back. The admin API accepts this format, the SQLite store persists card
  rules in it, and the demo scenarios are written in it.

JSON SCHEMA:
  {
    "id": "",
    "company_id": "acme",
    "name": "standard",
    "status": "active",
    "effective_from": "2025-01-01T00:00:00Z",
    "zone_mode": "flat",
    "base_rates": [
      {"carrier": "delhivery", "service_type": "surface",
       "base_price": "40", "min_weight": "0", "max_weight": "0.5"}
    ],
    "weight_rules": [
      {"carrier": "delhivery", "service_type": "surface",
       "min_weight": "0.5", "max_weight": "10", "price_per_kg": "30"}
    ],
    "zone_rules": [
      {"zone": "zoneA", "carrier": "delhivery", "service_type": "surface",
       "additional_price": "0", "transit_days": 1}
    ],
    "surcharges": {
      "minimum_call": "35", "fuel_percent": "12", "fuel_base": "freight",
      "cod_slabs": [{"min": "0", "max": "2000", "kind": "flat", "value": "35"}],
      "remote_area_enabled": true, "remote_area_surcharge": "40",
      "gst_percent": "18"
    }
  }

  Numbers may be given as JSON numbers or strings; strings keep exact
  decimal precision.

KEY FEATURES:
  - Lenient input for zone codes ("zone a", "A") and carrier names (case)
  - Strict output: canonical codes, lowercase names
  - zone_mode inferred when omitted

SEE ALSO:
  - ratecard/types.go: RateCard type definition
  - api/handlers.go: POST /api/companies/{id}/ratecards
  - store/sqlite/sqlite.go: rules_json column
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RateCardJSON is the JSON representation of a rate card.
type RateCardJSON struct {
	ID              string                     `json:"id,omitempty"`
	CompanyID       string                     `json:"company_id"`
	Name            string                     `json:"name"`
	Version         int                        `json:"version,omitempty"`
	Status          string                     `json:"status,omitempty"`
	EffectiveFrom   string                     `json:"effective_from,omitempty"` // RFC3339
	EffectiveTo     string                     `json:"effective_to,omitempty"`   // RFC3339, exclusive
	ZoneMode        string                     `json:"zone_mode,omitempty"`
	BaseRates       []BaseRateJSON             `json:"base_rates"`
	WeightRules     []WeightRuleJSON           `json:"weight_rules,omitempty"`
	ZoneRules       []ZoneRuleJSON             `json:"zone_rules,omitempty"`
	ZoneMultipliers map[string]decimal.Decimal `json:"zone_multipliers,omitempty"`
	Surcharges      SurchargesJSON             `json:"surcharges"`
	SupersededBy    string                     `json:"superseded_by,omitempty"`
	CreatedAt       string                     `json:"created_at,omitempty"`
	UpdatedAt       string                     `json:"updated_at,omitempty"`
}

type BaseRateJSON struct {
	Carrier     string          `json:"carrier"`
	ServiceType string          `json:"service_type"`
	BasePrice   decimal.Decimal `json:"base_price"`
	MinWeight   decimal.Decimal `json:"min_weight"`
	MaxWeight   decimal.Decimal `json:"max_weight"`
}

type WeightRuleJSON struct {
	Carrier     string          `json:"carrier"`
	ServiceType string          `json:"service_type"`
	MinWeight   decimal.Decimal `json:"min_weight"`
	MaxWeight   decimal.Decimal `json:"max_weight"`
	PricePerKg  decimal.Decimal `json:"price_per_kg"`
}

type ZoneRuleJSON struct {
	Zone            string          `json:"zone"`
	Carrier         string          `json:"carrier"`
	ServiceType     string          `json:"service_type"`
	AdditionalPrice decimal.Decimal `json:"additional_price"`
	TransitDays     int             `json:"transit_days,omitempty"`
}

type CODSlabJSON struct {
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Kind  string          `json:"kind"` // flat, percent
	Value decimal.Decimal `json:"value"`
}

type SurchargesJSON struct {
	MinimumCall         decimal.Decimal `json:"minimum_call"`
	FuelPercent         decimal.Decimal `json:"fuel_percent"`
	FuelBase            string          `json:"fuel_base,omitempty"` // freight, freight+zone
	CODSlabs            []CODSlabJSON   `json:"cod_slabs,omitempty"`
	RemoteAreaEnabled   bool            `json:"remote_area_enabled,omitempty"`
	RemoteAreaSurcharge decimal.Decimal `json:"remote_area_surcharge"`
	GSTPercent          decimal.Decimal `json:"gst_percent"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRateCard parses a JSON string into a RateCard. The result is not
// validated; ratecard.Registry.Publish does that.
func ParseRateCard(data []byte) (*ratecard.RateCard, error) {
	var rj RateCardJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rate card JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts RateCardJSON to a RateCard.
func FromJSON(rj RateCardJSON) (*ratecard.RateCard, error) {
	card := &ratecard.RateCard{
		ID:           ratecard.RateCardID(rj.ID),
		CompanyID:    ratecard.CompanyID(rj.CompanyID),
		Name:         rj.Name,
		Version:      rj.Version,
		Status:       ratecard.Status(rj.Status),
		ZoneMode:     ratecard.ZoneMode(rj.ZoneMode),
		SupersededBy: ratecard.RateCardID(rj.SupersededBy),
	}

	var err error
	if card.EffectiveFrom, err = parseTime("effective_from", rj.EffectiveFrom); err != nil {
		return nil, err
	}
	if rj.EffectiveTo != "" {
		t, err := parseTime("effective_to", rj.EffectiveTo)
		if err != nil {
			return nil, err
		}
		card.EffectiveTo = &t
	}
	if card.CreatedAt, err = parseTime("created_at", rj.CreatedAt); err != nil {
		return nil, err
	}
	if card.UpdatedAt, err = parseTime("updated_at", rj.UpdatedAt); err != nil {
		return nil, err
	}

	for _, b := range rj.BaseRates {
		card.BaseRates = append(card.BaseRates, ratecard.BaseRatePick{
			Carrier:     ratecard.NormalizeCarrier(b.Carrier),
			ServiceType: ratecard.NormalizeService(b.ServiceType),
			BasePrice:   b.BasePrice,
			MinWeight:   b.MinWeight,
			MaxWeight:   b.MaxWeight,
		})
	}
	for _, r := range rj.WeightRules {
		card.WeightRules = append(card.WeightRules, ratecard.WeightRule{
			Carrier:     ratecard.NormalizeCarrier(r.Carrier),
			ServiceType: ratecard.NormalizeService(r.ServiceType),
			MinWeight:   r.MinWeight,
			MaxWeight:   r.MaxWeight,
			PricePerKg:  r.PricePerKg,
		})
	}
	for _, z := range rj.ZoneRules {
		code, ok := zone.NormalizeCode(z.Zone)
		if !ok {
			return nil, fmt.Errorf("zone rule: unknown zone %s", zone.Sanitize(z.Zone))
		}
		card.ZoneRules = append(card.ZoneRules, ratecard.ZoneRule{
			Zone:            code,
			Carrier:         ratecard.NormalizeCarrier(z.Carrier),
			ServiceType:     ratecard.NormalizeService(z.ServiceType),
			AdditionalPrice: z.AdditionalPrice,
			TransitDays:     z.TransitDays,
		})
	}
	if len(rj.ZoneMultipliers) > 0 {
		card.ZoneMultipliers = make(map[zone.Code]decimal.Decimal, len(rj.ZoneMultipliers))
		for raw, m := range rj.ZoneMultipliers {
			code, ok := zone.NormalizeCode(raw)
			if !ok {
				return nil, fmt.Errorf("zone multiplier: unknown zone %s", zone.Sanitize(raw))
			}
			card.ZoneMultipliers[code] = m
		}
	}

	s := rj.Surcharges
	card.Surcharges = ratecard.Surcharges{
		MinimumCall:         s.MinimumCall,
		FuelPercent:         s.FuelPercent,
		FuelBase:            parseFuelBase(s.FuelBase),
		RemoteAreaEnabled:   s.RemoteAreaEnabled,
		RemoteAreaSurcharge: s.RemoteAreaSurcharge,
		GSTPercent:          s.GSTPercent,
	}
	for _, slab := range s.CODSlabs {
		card.Surcharges.CODSlabs = append(card.Surcharges.CODSlabs, ratecard.CODSlab{
			Min:   slab.Min,
			Max:   slab.Max,
			Kind:  ratecard.SlabKind(slab.Kind),
			Value: slab.Value,
		})
	}

	return card, nil
}

// =============================================================================
// RENDERING
// =============================================================================

// ToJSON converts a RateCard to its JSON representation.
func ToJSON(c *ratecard.RateCard) RateCardJSON {
	rj := RateCardJSON{
		ID:            string(c.ID),
		CompanyID:     string(c.CompanyID),
		Name:          c.Name,
		Version:       c.Version,
		Status:        string(c.Status),
		EffectiveFrom: formatTime(c.EffectiveFrom),
		ZoneMode:      string(c.ZoneMode),
		SupersededBy:  string(c.SupersededBy),
		CreatedAt:     formatTime(c.CreatedAt),
		UpdatedAt:     formatTime(c.UpdatedAt),
		BaseRates:     []BaseRateJSON{},
	}
	if c.EffectiveTo != nil {
		rj.EffectiveTo = formatTime(*c.EffectiveTo)
	}

	for _, b := range c.BaseRates {
		rj.BaseRates = append(rj.BaseRates, BaseRateJSON{
			Carrier:     string(b.Carrier),
			ServiceType: string(b.ServiceType),
			BasePrice:   b.BasePrice,
			MinWeight:   b.MinWeight,
			MaxWeight:   b.MaxWeight,
		})
	}
	for _, r := range c.WeightRules {
		rj.WeightRules = append(rj.WeightRules, WeightRuleJSON{
			Carrier:     string(r.Carrier),
			ServiceType: string(r.ServiceType),
			MinWeight:   r.MinWeight,
			MaxWeight:   r.MaxWeight,
			PricePerKg:  r.PricePerKg,
		})
	}
	for _, z := range c.ZoneRules {
		rj.ZoneRules = append(rj.ZoneRules, ZoneRuleJSON{
			Zone:            string(z.Zone),
			Carrier:         string(z.Carrier),
			ServiceType:     string(z.ServiceType),
			AdditionalPrice: z.AdditionalPrice,
			TransitDays:     z.TransitDays,
		})
	}
	if len(c.ZoneMultipliers) > 0 {
		rj.ZoneMultipliers = make(map[string]decimal.Decimal, len(c.ZoneMultipliers))
		for code, m := range c.ZoneMultipliers {
			rj.ZoneMultipliers[string(code)] = m
		}
	}

	s := c.Surcharges
	rj.Surcharges = SurchargesJSON{
		MinimumCall:         s.MinimumCall,
		FuelPercent:         s.FuelPercent,
		FuelBase:            string(s.FuelBase),
		RemoteAreaEnabled:   s.RemoteAreaEnabled,
		RemoteAreaSurcharge: s.RemoteAreaSurcharge,
		GSTPercent:          s.GSTPercent,
	}
	for _, slab := range s.CODSlabs {
		rj.Surcharges.CODSlabs = append(rj.Surcharges.CODSlabs, CODSlabJSON{
			Min:   slab.Min,
			Max:   slab.Max,
			Kind:  string(slab.Kind),
			Value: slab.Value,
		})
	}
	sort.SliceStable(rj.BaseRates, func(i, j int) bool {
		a, b := rj.BaseRates[i], rj.BaseRates[j]
		if a.Carrier != b.Carrier {
			return a.Carrier < b.Carrier
		}
		if a.ServiceType != b.ServiceType {
			return a.ServiceType < b.ServiceType
		}
		return a.MinWeight.LessThan(b.MinWeight)
	})
	return rj
}

// MarshalRateCard renders a card as JSON.
func MarshalRateCard(c *ratecard.RateCard) ([]byte, error) {
	return json.Marshal(ToJSON(c))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseFuelBase(s string) ratecard.FuelBase {
	switch s {
	case "freight+zone", "freight_zone":
		return ratecard.FuelBaseFreightZone
	case "", "freight":
		return ratecard.FuelBaseFreight
	default:
		// Validate rejects it
		return ratecard.FuelBase(s)
	}
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
