/*
Package pricing turns a rate card and a shipment into an itemized price.

PURPOSE:
  Price() is a pure function: same card, same shipment, same breakdown.
  It performs no I/O and never reads the clock. Calculator (calculator.go)
  wraps it with request validation, card lookup and zone resolution.

CALCULATION ORDER (fixed):
  1. zone       - decided by the caller, passed in the Shipment
  2. freight    - base bracket price, plus per-kg rules for excess weight
  3. zone charge- flat add-on, multiplier on freight, or nothing
  4. fuel       - percent of freight (or freight + zone charge)
  5. COD        - first matching slab, only for cash on delivery
  6. remote     - flat add-on when enabled and the destination is remote
  7. subtotal   - sum of the above
  8. floor      - subtotal never below the card's minimum call
  9. tax        - GST on the floored subtotal; total = subtotal + tax

PRECISION:
  Every intermediate is an exact decimal. Values are rounded to 2 places
  only when the Breakdown is produced.

SEE ALSO:
  - breakdown.go: the output record
  - calculator.go: request-level service
  - ranking/engine.go: prices many carriers per request
*/
package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

var hundred = decimal.NewFromInt(100)

// PaymentMode is how the consignee pays.
type PaymentMode string

const (
	PaymentPrepaid PaymentMode = "prepaid"
	PaymentCOD     PaymentMode = "cod"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool { return m == PaymentPrepaid || m == PaymentCOD }

// ZoneSource records where the zone of a quote came from.
type ZoneSource string

const (
	ZoneSourceInternal ZoneSource = "internal"
	ZoneSourceExternal ZoneSource = "external"
)

// ProviderInternal is the only pricing provider: the rate card engine itself.
const ProviderInternal = "internal"

// Shipment is everything Price needs besides the card.
type Shipment struct {
	Carrier     ratecard.Carrier
	ServiceType ratecard.ServiceType
	Weight      decimal.Decimal
	Zone        zone.Code
	ZoneSource  ZoneSource
	PaymentMode PaymentMode
	OrderValue  decimal.Decimal
	IsRemote    bool

	// DefaultTransitDays is used when the card has no zone rule transit time.
	DefaultTransitDays int
}

// Price computes the itemized price of a shipment under a card.
// The card's status and effective window are not checked here.
func Price(card *ratecard.RateCard, s Shipment) (*Breakdown, error) {
	key := ratecard.Key{Carrier: s.Carrier, ServiceType: s.ServiceType}

	freight, err := Freight(card, key, s.Weight)
	if err != nil {
		return nil, err
	}

	zoneCharge, transit, err := zoneCharge(card, key, s.Zone, freight)
	if err != nil {
		return nil, err
	}
	if transit == 0 {
		transit = s.DefaultTransitDays
	}

	sc := card.Surcharges
	fuelBase := freight
	if sc.FuelBase == ratecard.FuelBaseFreightZone {
		fuelBase = freight.Add(zoneCharge)
	}
	fuel := fuelBase.Mul(sc.FuelPercent).Div(hundred)

	cod := decimal.Zero
	if s.PaymentMode == PaymentCOD {
		cod = CODCharge(sc.CODSlabs, s.OrderValue)
	}

	remote := decimal.Zero
	if sc.RemoteAreaEnabled && s.IsRemote {
		remote = sc.RemoteAreaSurcharge
	}

	subtotal := freight.Add(zoneCharge).Add(fuel).Add(cod).Add(remote)
	floored := false
	if subtotal.LessThan(sc.MinimumCall) {
		subtotal = sc.MinimumCall
		floored = true
	}

	tax := subtotal.Mul(sc.GSTPercent).Div(hundred)
	total := subtotal.Add(tax)

	source := s.ZoneSource
	if source == "" {
		source = ZoneSourceInternal
	}

	return &Breakdown{
		Carrier:            s.Carrier,
		ServiceType:        s.ServiceType,
		RateCardID:         card.ID,
		RateCardVersion:    card.Version,
		Zone:               s.Zone,
		ZoneSource:         source,
		PricingProvider:    ProviderInternal,
		TransitDays:        transit,
		Freight:            round(freight),
		ZoneCharge:         round(zoneCharge),
		FuelCharge:         round(fuel),
		CODCharge:          round(cod),
		RemoteAreaCharge:   round(remote),
		Subtotal:           round(subtotal),
		MinimumCallApplied: floored,
		Tax:                round(tax),
		Total:              round(total),
	}, nil
}

// Freight returns the weight charge for one carrier service.
//
// A base bracket containing the weight prices it outright. Otherwise the
// heaviest bracket whose ceiling is at or below the weight is the starting
// point, and each kilogram above the ceiling is charged at the rate of the
// weight rule covering it, walking contiguous rules upwards.
func Freight(card *ratecard.RateCard, key ratecard.Key, weight decimal.Decimal) (decimal.Decimal, error) {
	bases := card.BaseRatesFor(key)
	if len(bases) == 0 {
		return decimal.Zero, &NotApplicableError{Key: key, Reason: "no base rate for carrier service"}
	}

	var floor *ratecard.BaseRatePick
	for i := range bases {
		b := bases[i]
		if b.Window().Contains(weight) {
			return b.BasePrice, nil
		}
		if b.MaxWeight.LessThanOrEqual(weight) && (floor == nil || b.MaxWeight.GreaterThan(floor.MaxWeight)) {
			floor = &bases[i]
		}
	}
	if floor == nil {
		return decimal.Zero, &NotApplicableError{Key: key, Reason: "weight " + weight.String() + " below every base bracket"}
	}

	excess, err := perKgCharge(card.WeightRulesFor(key), floor.MaxWeight, weight)
	if err != nil {
		return decimal.Zero, &NotApplicableError{Key: key, Reason: err.Error()}
	}
	return floor.BasePrice.Add(excess), nil
}

type coverageError string

func (e coverageError) Error() string { return string(e) }

// perKgCharge charges [from, weight) across contiguous rules. The weight
// itself must fall inside a rule window.
func perKgCharge(rules []ratecard.WeightRule, from, weight decimal.Decimal) (decimal.Decimal, error) {
	charge := decimal.Zero
	cursor := from
	for {
		rule, ok := ruleCovering(rules, cursor)
		if !ok {
			return decimal.Zero, coverageError("no weight rule covers " + cursor.String() + " kg")
		}
		if rule.Window().Contains(weight) {
			return charge.Add(weight.Sub(cursor).Mul(rule.PricePerKg)), nil
		}
		charge = charge.Add(rule.MaxWeight.Sub(cursor).Mul(rule.PricePerKg))
		cursor = rule.MaxWeight
	}
}

func ruleCovering(rules []ratecard.WeightRule, w decimal.Decimal) (ratecard.WeightRule, bool) {
	for _, r := range rules {
		if r.Window().Contains(w) {
			return r, true
		}
	}
	return ratecard.WeightRule{}, false
}

func zoneCharge(card *ratecard.RateCard, key ratecard.Key, code zone.Code, freight decimal.Decimal) (decimal.Decimal, int, error) {
	switch card.ZoneMode {
	case ratecard.ZoneModeFlat:
		rule, ok := card.ZoneRuleFor(code, key)
		if !ok {
			return decimal.Zero, 0, &NotApplicableError{Key: key, Reason: "no zone rule for " + string(code)}
		}
		return rule.AdditionalPrice, rule.TransitDays, nil
	case ratecard.ZoneModeMultiplier:
		factor, ok := card.ZoneMultipliers[code]
		if !ok {
			return decimal.Zero, 0, &NotApplicableError{Key: key, Reason: "no zone multiplier for " + string(code)}
		}
		return freight.Mul(factor.Sub(decimal.NewFromInt(1))), 0, nil
	default:
		return decimal.Zero, 0, nil
	}
}

// CODCharge returns the charge of the first slab whose [Min, Max) contains
// the order value, or zero when none does.
func CODCharge(slabs []ratecard.CODSlab, orderValue decimal.Decimal) decimal.Decimal {
	for _, s := range slabs {
		if !s.Window().Contains(orderValue) {
			continue
		}
		if s.Kind == ratecard.SlabPercent {
			return orderValue.Mul(s.Value).Div(hundred)
		}
		return s.Value
	}
	return decimal.Zero
}

func round(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
