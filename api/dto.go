/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Pricing:
    CalculateRequest, RankRequest, QuoteResponse

  Admin:
    CreateCompanyRequest, CarrierRequest, AssignmentRequest
    CompanyDTO, CarrierDTO, AssignmentDTO, ZoneDTO, QuoteDTO

  Rate cards:
    factory.RateCardJSON is used as-is for request and response

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request shape (required fields, enums, lengths) is checked with
  go-playground/validator struct tags. Business rules (positive weight,
  COD order value, card validity) stay in the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ratecard.go: RateCardJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// PRICING
// =============================================================================

// RouteFields are shared by calculate and rank requests.
type RouteFields struct {
	CompanyID          string          `json:"company_id" validate:"required"`
	RateCardID         string          `json:"rate_card_id,omitempty"`
	OriginPincode      string          `json:"origin_pincode" validate:"required,numeric,len=6"`
	DestinationPincode string          `json:"destination_pincode" validate:"required,numeric,len=6"`
	Weight             decimal.Decimal `json:"weight"`
	PaymentMode        string          `json:"payment_mode" validate:"required,oneof=prepaid cod"`
	OrderValue         decimal.Decimal `json:"order_value"`
	IsRemoteLocation   *bool           `json:"is_remote_location,omitempty"`
	ZoneOverride       string          `json:"zone_override,omitempty"`
}

func (f RouteFields) toRoute() pricing.RouteRequest {
	return pricing.RouteRequest{
		CompanyID:            ratecard.CompanyID(f.CompanyID),
		RateCardID:           ratecard.RateCardID(f.RateCardID),
		OriginPincode:        f.OriginPincode,
		DestinationPincode:   f.DestinationPincode,
		Weight:               f.Weight,
		PaymentMode:          pricing.PaymentMode(f.PaymentMode),
		OrderValue:           f.OrderValue,
		IsRemoteLocation:     f.IsRemoteLocation,
		ExternalZoneOverride: f.ZoneOverride,
	}
}

// CalculateRequest prices one carrier service.
type CalculateRequest struct {
	RouteFields
	Carrier        string `json:"carrier" validate:"required"`
	ServiceType    string `json:"service_type" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=128"`
}

// RankRequest ranks every enabled carrier for a route.
type RankRequest struct {
	RouteFields
	ServiceType string `json:"service_type,omitempty"`
}

// QuoteResponse is a priced breakdown plus the ledger entry it was recorded as.
type QuoteResponse struct {
	QuoteID   string            `json:"quote_id"`
	Replayed  bool              `json:"replayed"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// QuoteDTO represents a recorded quote.
type QuoteDTO struct {
	ID                 string            `json:"id"`
	IdempotencyKey     string            `json:"idempotency_key,omitempty"`
	CompanyID          string            `json:"company_id"`
	RateCardID         string            `json:"rate_card_id"`
	RateCardVersion    int               `json:"rate_card_version"`
	OriginPincode      string            `json:"origin_pincode"`
	DestinationPincode string            `json:"destination_pincode"`
	Breakdown          pricing.Breakdown `json:"breakdown"`
	CreatedAt          time.Time         `json:"created_at"`
}

func toQuoteDTO(q quote.Quote) QuoteDTO {
	return QuoteDTO{
		ID:                 string(q.ID),
		IdempotencyKey:     q.IdempotencyKey,
		CompanyID:          string(q.CompanyID),
		RateCardID:         string(q.RateCardID),
		RateCardVersion:    q.RateCardVersion,
		OriginPincode:      q.OriginPincode,
		DestinationPincode: q.DestinationPincode,
		Breakdown:          q.Breakdown,
		CreatedAt:          q.CreatedAt,
	}
}

// =============================================================================
// ADMIN
// =============================================================================

// CreateCompanyRequest creates or updates a company.
type CreateCompanyRequest struct {
	ID   string `json:"id" validate:"required,max=64"`
	Name string `json:"name" validate:"required"`
	Tier string `json:"tier" validate:"required"`
}

// CompanyDTO represents a company in API responses.
type CompanyDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// CarrierRequest enables or updates a carrier for a company.
type CarrierRequest struct {
	Carrier      string   `json:"carrier" validate:"required"`
	ServiceTypes []string `json:"service_types" validate:"dive,required"`
	Active       bool     `json:"active"`
	TransitDays  int      `json:"transit_days" validate:"gte=0"`
}

// CarrierDTO represents a carrier config in API responses.
type CarrierDTO struct {
	Carrier      string   `json:"carrier"`
	ServiceTypes []string `json:"service_types"`
	Active       bool     `json:"active"`
	TransitDays  int      `json:"transit_days"`
}

func toCarrierDTO(cc ratecard.CarrierConfig) CarrierDTO {
	services := make([]string, len(cc.ServiceTypes))
	for i, s := range cc.ServiceTypes {
		services[i] = string(s)
	}
	return CarrierDTO{
		Carrier:      string(cc.Carrier),
		ServiceTypes: services,
		Active:       cc.Active,
		TransitDays:  cc.TransitDays,
	}
}

// AssignmentRequest makes a card the default for a tier.
type AssignmentRequest struct {
	Tier       string `json:"tier" validate:"required"`
	RateCardID string `json:"rate_card_id" validate:"required"`
}

// AssignmentDTO represents a tier assignment in API responses.
type AssignmentDTO struct {
	CompanyID  string    `json:"company_id"`
	Tier       string    `json:"tier"`
	RateCardID string    `json:"rate_card_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

func toAssignmentDTO(a ratecard.Assignment) AssignmentDTO {
	return AssignmentDTO{
		CompanyID:  string(a.CompanyID),
		Tier:       string(a.Tier),
		RateCardID: string(a.RateCardID),
		AssignedAt: a.AssignedAt,
	}
}

// ZoneDTO represents a company zone.
type ZoneDTO struct {
	ID       string    `json:"id"`
	Code     zone.Code `json:"code"`
	Name     string    `json:"name"`
	Pincodes []string  `json:"pincodes"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is returned for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
