package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// Breakdown is the itemized result of pricing one carrier service.
// Money fields are rounded to 2 decimal places.
type Breakdown struct {
	Carrier         ratecard.Carrier     `json:"carrier"`
	ServiceType     ratecard.ServiceType `json:"service_type"`
	RateCardID      ratecard.RateCardID  `json:"rate_card_id"`
	RateCardVersion int                  `json:"rate_card_version"`
	Zone            zone.Code            `json:"zone"`
	ZoneSource      ZoneSource           `json:"zone_source"`
	PricingProvider string               `json:"pricing_provider"`
	TransitDays     int                  `json:"transit_days"`

	Freight            decimal.Decimal `json:"freight"`
	ZoneCharge         decimal.Decimal `json:"zone_charge"`
	FuelCharge         decimal.Decimal `json:"fuel_charge"`
	CODCharge          decimal.Decimal `json:"cod_charge"`
	RemoteAreaCharge   decimal.Decimal `json:"remote_area_charge"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	MinimumCallApplied bool            `json:"minimum_call_applied"`
	Tax                decimal.Decimal `json:"tax"`
	Total              decimal.Decimal `json:"total"`
}

// Key returns the carrier service this breakdown prices.
func (b *Breakdown) Key() ratecard.Key {
	return ratecard.Key{Carrier: b.Carrier, ServiceType: b.ServiceType}
}
