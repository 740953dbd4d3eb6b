package ratecard

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Validate checks the structural rules of a card and returns a
// *ValidationError listing every problem, or nil.
//
// Rules:
//   - windows are well formed (min >= 0, max > min)
//   - base rate windows of one carrier service do not overlap
//   - weight rule windows of one carrier service do not overlap
//   - COD slabs do not overlap
//   - money values are non-negative
//   - flat zone rules and zone multipliers are never both present
//   - ZoneMode agrees with which zone data is present
func (c *RateCard) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.CompanyID == "" {
		add("company id is required")
	}
	if c.Name == "" {
		add("name is required")
	}
	switch c.Status {
	case StatusActive, StatusInactive:
	default:
		add("unknown status %q", c.Status)
	}
	if c.EffectiveTo != nil && !c.EffectiveFrom.IsZero() && !c.EffectiveTo.After(c.EffectiveFrom) {
		add("effective_to must be after effective_from")
	}

	for _, b := range c.BaseRates {
		if err := checkWindow(b.Window()); err != nil {
			add("base rate %s: %w", b.Key(), err)
		}
		if b.BasePrice.IsNegative() {
			add("base rate %s %s: negative price", b.Key(), b.Window())
		}
	}
	for _, r := range c.WeightRules {
		if err := checkWindow(r.Window()); err != nil {
			add("weight rule %s: %w", r.Key(), err)
		}
		if r.PricePerKg.IsNegative() {
			add("weight rule %s %s: negative price per kg", r.Key(), r.Window())
		}
	}
	problems = append(problems, overlapsByKey("base rate", baseWindows(c.BaseRates))...)
	problems = append(problems, overlapsByKey("weight rule", ruleWindows(c.WeightRules))...)

	var slabs []Window
	for _, s := range c.Surcharges.CODSlabs {
		if err := checkWindow(s.Window()); err != nil {
			add("cod slab: %w", err)
		}
		if s.Kind != SlabFlat && s.Kind != SlabPercent {
			add("cod slab %s: unknown kind %q", s.Window(), s.Kind)
		}
		if s.Value.IsNegative() {
			add("cod slab %s: negative value", s.Window())
		}
		slabs = append(slabs, s.Window())
	}
	if err := firstOverlap("cod slab", Key{}, slabs); err != nil {
		problems = append(problems, err)
	}

	sc := c.Surcharges
	for name, v := range map[string]decimal.Decimal{
		"minimum_call":          sc.MinimumCall,
		"fuel_percent":          sc.FuelPercent,
		"remote_area_surcharge": sc.RemoteAreaSurcharge,
		"gst_percent":           sc.GSTPercent,
	} {
		if v.IsNegative() {
			add("%s must not be negative", name)
		}
	}
	switch sc.FuelBase {
	case "", FuelBaseFreight, FuelBaseFreightZone:
	default:
		add("unknown fuel base %q", sc.FuelBase)
	}

	for _, z := range c.ZoneRules {
		if !z.Zone.Valid() {
			add("zone rule %s: unknown zone %q", z.Key(), z.Zone)
		}
		if z.AdditionalPrice.IsNegative() {
			add("zone rule %s %s: negative price", z.Key(), z.Zone)
		}
		if z.TransitDays < 0 {
			add("zone rule %s %s: negative transit days", z.Key(), z.Zone)
		}
	}
	for code, m := range c.ZoneMultipliers {
		if !code.Valid() {
			add("zone multiplier: unknown zone %q", code)
		}
		if !m.IsPositive() {
			add("zone multiplier %s must be positive", code)
		}
	}

	if len(c.ZoneRules) > 0 && len(c.ZoneMultipliers) > 0 {
		problems = append(problems, ErrMixedZoneModes)
	}
	switch c.ZoneMode {
	case ZoneModeNone:
	case ZoneModeFlat:
		if len(c.ZoneMultipliers) > 0 {
			add("zone mode flat does not use zone multipliers")
		}
	case ZoneModeMultiplier:
		if len(c.ZoneRules) > 0 {
			add("zone mode multiplier does not use flat zone rules")
		}
	default:
		add("unknown zone mode %q", c.ZoneMode)
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func checkWindow(w Window) error {
	if w.Min.IsNegative() {
		return fmt.Errorf("window %s: min must not be negative", w)
	}
	if !w.Max.GreaterThan(w.Min) {
		return fmt.Errorf("window %s: max must be greater than min", w)
	}
	return nil
}

func baseWindows(rates []BaseRatePick) map[Key][]Window {
	out := make(map[Key][]Window)
	for _, b := range rates {
		out[b.Key()] = append(out[b.Key()], b.Window())
	}
	return out
}

func ruleWindows(rules []WeightRule) map[Key][]Window {
	out := make(map[Key][]Window)
	for _, r := range rules {
		out[r.Key()] = append(out[r.Key()], r.Window())
	}
	return out
}

func overlapsByKey(kind string, byKey map[Key][]Window) []error {
	keys := make([]Key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var out []error
	for _, k := range keys {
		if err := firstOverlap(kind, k, byKey[k]); err != nil {
			out = append(out, err)
		}
	}
	return out
}

// firstOverlap sorts windows by Min and reports the first colliding pair.
func firstOverlap(kind string, k Key, windows []Window) error {
	sorted := append([]Window(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min.LessThan(sorted[j].Min) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Overlaps(sorted[i]) {
			return &OverlapError{Kind: kind, Key: k, First: sorted[i-1], Second: sorted[i]}
		}
	}
	return nil
}

// CheckOverlap reports whether w collides with any of existing.
// Used by the importer to reject rows against windows already accepted.
func CheckOverlap(kind string, k Key, existing []Window, w Window) error {
	for _, e := range existing {
		if e.Overlaps(w) {
			return &OverlapError{Kind: kind, Key: k, First: e, Second: w}
		}
	}
	return nil
}
