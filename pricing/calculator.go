package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// CardResolver finds the card to price with. ratecard.Registry implements it.
type CardResolver interface {
	Resolve(ctx context.Context, companyID ratecard.CompanyID, explicit ratecard.RateCardID) (*ratecard.RateCard, error)
}

// ZoneClassifier is the slice of zone.Resolver the calculator uses.
type ZoneClassifier interface {
	Classify(origin, destination string) (zone.Classification, error)
	ResolvePincode(pincode string) (zone.Pincode, error)
}

// CarrierSource lists a company's carrier configs.
type CarrierSource interface {
	ListCarriers(ctx context.Context, companyID ratecard.CompanyID) ([]ratecard.CarrierConfig, error)
}

// =============================================================================
// REQUESTS
// =============================================================================

// RouteRequest is everything about a shipment except the carrier.
type RouteRequest struct {
	CompanyID          ratecard.CompanyID
	RateCardID         ratecard.RateCardID // optional; company default when empty
	OriginPincode      string
	DestinationPincode string
	Weight             decimal.Decimal
	PaymentMode        PaymentMode
	OrderValue         decimal.Decimal // required for COD

	// IsRemoteLocation defaults to the destination pincode's Remote flag.
	IsRemoteLocation *bool

	// ExternalZoneOverride is untrusted. Only an exact canonical code is used.
	ExternalZoneOverride string
}

// Request prices one carrier service.
type Request struct {
	RouteRequest
	Carrier     string
	ServiceType string
}

// Validate checks the route fields.
func (r *RouteRequest) Validate() error {
	if r.CompanyID == "" {
		return &RequestError{Field: "company_id", Reason: "required"}
	}
	if strings.TrimSpace(r.OriginPincode) == "" {
		return &RequestError{Field: "origin_pincode", Reason: "required"}
	}
	if strings.TrimSpace(r.DestinationPincode) == "" {
		return &RequestError{Field: "destination_pincode", Reason: "required"}
	}
	if !r.Weight.IsPositive() {
		return &RequestError{Field: "weight", Reason: "must be greater than zero"}
	}
	if !r.PaymentMode.Valid() {
		return &RequestError{Field: "payment_mode", Reason: fmt.Sprintf("unknown payment mode %q", r.PaymentMode)}
	}
	if r.PaymentMode == PaymentCOD && !r.OrderValue.IsPositive() {
		return &RequestError{Field: "order_value", Reason: "required for cash on delivery"}
	}
	if r.OrderValue.IsNegative() {
		return &RequestError{Field: "order_value", Reason: "must not be negative"}
	}
	return nil
}

// Validate checks the route fields plus carrier and service type.
func (r *Request) Validate() error {
	if err := r.RouteRequest.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Carrier) == "" {
		return &RequestError{Field: "carrier", Reason: "required"}
	}
	if strings.TrimSpace(r.ServiceType) == "" {
		return &RequestError{Field: "service_type", Reason: "required"}
	}
	return nil
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator validates requests, resolves card and zone, and prices.
type Calculator struct {
	cards    CardResolver
	zones    ZoneClassifier
	carriers CarrierSource
	logger   *zap.Logger
	now      func() time.Time
}

func NewCalculator(cards CardResolver, zones ZoneClassifier, carriers CarrierSource, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		cards:    cards,
		zones:    zones,
		carriers: carriers,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for the effective-window check.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Calculate prices a single carrier service.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Breakdown, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := c.Prepare(ctx, req.RouteRequest)
	if err != nil {
		return nil, err
	}

	carrier := ratecard.NormalizeCarrier(req.Carrier)
	transit := 0
	if c.carriers != nil {
		configs, err := c.carriers.ListCarriers(ctx, req.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("list carriers: %w", err)
		}
		for _, cc := range configs {
			if cc.Carrier == carrier {
				transit = cc.TransitDays
				break
			}
		}
	}

	b, err := p.Price(carrier, ratecard.NormalizeService(req.ServiceType), transit)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("priced shipment",
		zap.String("company_id", string(req.CompanyID)),
		zap.String("carrier", string(b.Carrier)),
		zap.String("zone", string(b.Zone)),
		zap.String("total", b.Total.String()))
	return b, nil
}

// Prepared holds the per-request state shared by every carrier priced for
// one route: the card, the zone and the remote flag.
type Prepared struct {
	Card        *ratecard.RateCard
	Zone        zone.Code
	ZoneSource  ZoneSource
	Remote      bool
	Weight      decimal.Decimal
	PaymentMode PaymentMode
	OrderValue  decimal.Decimal
}

// Price prices one carrier service under the prepared route.
func (p *Prepared) Price(carrier ratecard.Carrier, service ratecard.ServiceType, defaultTransitDays int) (*Breakdown, error) {
	return Price(p.Card, Shipment{
		Carrier:            carrier,
		ServiceType:        service,
		Weight:             p.Weight,
		Zone:               p.Zone,
		ZoneSource:         p.ZoneSource,
		PaymentMode:        p.PaymentMode,
		OrderValue:         p.OrderValue,
		IsRemote:           p.Remote,
		DefaultTransitDays: defaultTransitDays,
	})
}

// Prepare validates the route, loads and checks the card, and settles the zone.
func (c *Calculator) Prepare(ctx context.Context, req RouteRequest) (*Prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	card, err := c.cards.Resolve(ctx, req.CompanyID, req.RateCardID)
	if err != nil {
		return nil, err
	}
	if err := card.CheckUsable(c.now()); err != nil {
		return nil, err
	}

	code, source, err := c.zoneFor(req)
	if err != nil {
		return nil, err
	}

	remote := false
	if req.IsRemoteLocation != nil {
		remote = *req.IsRemoteLocation
	} else {
		dest, err := c.zones.ResolvePincode(req.DestinationPincode)
		if err != nil {
			return nil, pincodeError("destination_pincode", err)
		}
		remote = dest.Remote
	}

	return &Prepared{
		Card:        card,
		Zone:        code,
		ZoneSource:  source,
		Remote:      remote,
		Weight:      req.Weight,
		PaymentMode: req.PaymentMode,
		OrderValue:  req.OrderValue,
	}, nil
}

// zoneFor applies the override guardrail: an exact canonical code is used
// as-is, anything else is logged and discarded.
func (c *Calculator) zoneFor(req RouteRequest) (zone.Code, ZoneSource, error) {
	if req.ExternalZoneOverride != "" {
		if code, ok := zone.ParseCode(req.ExternalZoneOverride); ok {
			return code, ZoneSourceExternal, nil
		}
		c.logger.Warn("discarding invalid zone override",
			zap.String("company_id", string(req.CompanyID)),
			zap.String("override", zone.Sanitize(req.ExternalZoneOverride)))
	}

	cls, err := c.zones.Classify(req.OriginPincode, req.DestinationPincode)
	if err != nil {
		var up *zone.UnknownPincodeError
		if errors.As(err, &up) {
			field := "destination_pincode"
			if up.Pincode == req.OriginPincode {
				field = "origin_pincode"
			}
			return "", "", pincodeError(field, err)
		}
		return "", "", fmt.Errorf("classify route: %w", err)
	}
	return cls.Zone, ZoneSourceInternal, nil
}

func pincodeError(field string, err error) error {
	if errors.Is(err, zone.ErrUnknownPincode) {
		return &RequestError{Field: field, Reason: err.Error(), Err: err}
	}
	return fmt.Errorf("resolve %s: %w", field, err)
}
