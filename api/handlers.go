/*
handlers.go - HTTP API handlers for the shipping rate engine

PURPOSE:
  Exposes rate calculation, carrier ranking, rate card administration and
  bulk import via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Pricing:
    POST   /api/rates/calculate                  Price one carrier service, record a quote
    POST   /api/rates/rank                       Rank every enabled carrier

  Rate cards:
    GET    /api/companies/{id}/ratecards         List cards (all versions)
    POST   /api/companies/{id}/ratecards         Create or edit a card from JSON
    POST   /api/companies/{id}/ratecards/import  Bulk import from CSV
    GET    /api/ratecards/{id}                   Get a card

  Companies:
    POST   /api/companies                        Create or update a company
    POST   /api/companies/{id}/carriers          Enable or update a carrier
    GET    /api/companies/{id}/carriers          List carriers
    POST   /api/companies/{id}/assignments       Set a tier default card
    GET    /api/companies/{id}/assignments       List tier defaults
    GET    /api/companies/{id}/zones             List company zones

  Zones:
    GET    /api/pincodes/{pincode}               Pincode reference data
    GET    /api/zones/classify?from=&to=         Zone for a pincode pair
    POST   /api/admin/reload                     Reload zone config and pincodes

  Quotes:
    GET    /api/quotes?company_id=               Recorded quotes

ARCHITECTURE:
  Handler struct holds all dependencies. Storage is reached through the
  domain interfaces so the same handlers run on SQLite or in memory.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate shape (validator struct tags)
  3. Call domain logic (calculator, ranking, registry, importer)
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, validation errors, unknown pincode
  - 404: Company, card, assignment not found
  - 409: Superseded card edit, duplicate idempotency key
  - 422: Card cannot price the request (not applicable, expired, inactive)
  - 500: Internal errors
  - 503: Zone snapshot not loaded yet

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/importer"
	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ranking"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

const maxImportBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API reads and seeds directly.
// Implemented by store/sqlite and ratecard/store.Memory.
type Store interface {
	ratecard.Store
	ratecard.ZoneStore
	ratecard.CompanyStore
	SavePincodes(ctx context.Context, pins []zone.Pincode) error
	Reset(ctx context.Context) error
}

// Services are the domain components the handlers delegate to.
type Services struct {
	Registry   *ratecard.Registry
	Calculator *pricing.Calculator
	Ranker     *ranking.Engine
	Importer   *importer.Importer
	Ledger     *quote.Ledger
	Resolver   *zone.Resolver
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	store    Store
	svc      Services
	validate *validator.Validate
	logger   *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store Store, svc Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    store,
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// decode reads a JSON body and checks its validator tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// Calculate prices one carrier service and records the quote.
// POST /api/rates/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	b, err := h.svc.Calculator.Calculate(ctx, pricing.Request{
		RouteRequest: req.toRoute(),
		Carrier:      req.Carrier,
		ServiceType:  req.ServiceType,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to calculate rate", err)
		return
	}

	q, created, err := h.svc.Ledger.Record(ctx, ratecard.CompanyID(req.CompanyID), req.IdempotencyKey,
		req.OriginPincode, req.DestinationPincode, b)
	if err != nil {
		h.writeDomainError(w, r, "Failed to record quote", err)
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{
		QuoteID:   string(q.ID),
		Replayed:  !created,
		Breakdown: q.Breakdown,
	})
}

// Rank prices every enabled carrier and orders the options.
// POST /api/rates/rank
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Ranker.Rank(r.Context(), ranking.Request{
		RouteRequest: req.toRoute(),
		ServiceType:  req.ServiceType,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to rank carriers", err)
		return
	}
	if res.Options == nil {
		res.Options = []pricing.Breakdown{}
	}
	writeJSON(w, http.StatusOK, res)
}

// ListQuotes returns a company's recorded quotes.
// GET /api/quotes?company_id=
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required", nil)
		return
	}

	quotes, err := h.svc.Ledger.List(r.Context(), ratecard.CompanyID(companyID))
	if err != nil {
		h.writeDomainError(w, r, "Failed to list quotes", err)
		return
	}

	dtos := make([]QuoteDTO, len(quotes))
	for i, q := range quotes {
		dtos[i] = toQuoteDTO(q)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RATE CARD HANDLERS
// =============================================================================

// ListRateCards returns every card version of a company.
// GET /api/companies/{id}/ratecards
func (h *Handler) ListRateCards(w http.ResponseWriter, r *http.Request) {
	companyID := ratecard.CompanyID(chi.URLParam(r, "id"))

	cards, err := h.store.ListRateCards(r.Context(), companyID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list rate cards", err)
		return
	}

	out := make([]factory.RateCardJSON, len(cards))
	for i := range cards {
		out[i] = factory.ToJSON(&cards[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRateCard returns one card.
// GET /api/ratecards/{id}
func (h *Handler) GetRateCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.store.GetRateCard(r.Context(), ratecard.RateCardID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get rate card", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(card))
}

// PublishRateCard creates a card, or edits one when the body carries an id.
// POST /api/companies/{id}/ratecards
func (h *Handler) PublishRateCard(w http.ResponseWriter, r *http.Request) {
	var body factory.RateCardJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.CompanyID = chi.URLParam(r, "id")

	card, err := factory.FromJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate card", err)
		return
	}

	saved, err := h.svc.Registry.Publish(r.Context(), *card)
	if err != nil {
		h.writeDomainError(w, r, "Failed to publish rate card", err)
		return
	}

	status := http.StatusOK
	if body.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, factory.ToJSON(saved))
}

// ImportRateCards bulk-loads cards from a CSV body.
// POST /api/companies/{id}/ratecards/import
func (h *Handler) ImportRateCards(w http.ResponseWriter, r *http.Request) {
	companyID := ratecard.CompanyID(chi.URLParam(r, "id"))
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file field", err)
			return
		}
		defer file.Close()
		h.runImport(w, r, companyID, file)
		return
	}
	h.runImport(w, r, companyID, r.Body)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, companyID ratecard.CompanyID, body io.Reader) {
	rows, err := importer.ParseCSV(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}

	res, err := h.svc.Importer.Import(r.Context(), companyID, rows)
	if err != nil {
		h.writeDomainError(w, r, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// CreateCompany creates or updates a company.
// POST /api/companies
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := ratecard.Company{ID: ratecard.CompanyID(req.ID), Name: req.Name, Tier: ratecard.Tier(req.Tier)}
	if err := h.store.SaveCompany(r.Context(), c); err != nil {
		h.writeDomainError(w, r, "Failed to save company", err)
		return
	}
	writeJSON(w, http.StatusCreated, CompanyDTO{ID: req.ID, Name: req.Name, Tier: req.Tier})
}

// SaveCarrier enables or updates a carrier for a company.
// POST /api/companies/{id}/carriers
func (h *Handler) SaveCarrier(w http.ResponseWriter, r *http.Request) {
	companyID := ratecard.CompanyID(chi.URLParam(r, "id"))
	var req CarrierRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := h.store.GetCompany(ctx, companyID); err != nil {
		h.writeDomainError(w, r, "Failed to save carrier", err)
		return
	}

	cc := ratecard.CarrierConfig{
		CompanyID:   companyID,
		Carrier:     ratecard.NormalizeCarrier(req.Carrier),
		Active:      req.Active,
		TransitDays: req.TransitDays,
	}
	for _, s := range req.ServiceTypes {
		cc.ServiceTypes = append(cc.ServiceTypes, ratecard.NormalizeService(s))
	}
	if err := h.store.SaveCarrier(ctx, cc); err != nil {
		h.writeDomainError(w, r, "Failed to save carrier", err)
		return
	}
	writeJSON(w, http.StatusOK, toCarrierDTO(cc))
}

// ListCarriers returns a company's carrier configs.
// GET /api/companies/{id}/carriers
func (h *Handler) ListCarriers(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.ListCarriers(r.Context(), ratecard.CompanyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to list carriers", err)
		return
	}

	dtos := make([]CarrierDTO, len(configs))
	for i, cc := range configs {
		dtos[i] = toCarrierDTO(cc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssignment makes a card the default for a company tier.
// POST /api/companies/{id}/assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	companyID := ratecard.CompanyID(chi.URLParam(r, "id"))
	var req AssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.svc.Registry.Assign(r.Context(), companyID, ratecard.Tier(req.Tier), ratecard.RateCardID(req.RateCardID))
	if err != nil {
		h.writeDomainError(w, r, "Failed to assign rate card", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

// ListAssignments returns a company's tier defaults.
// GET /api/companies/{id}/assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAssignments(r.Context(), ratecard.CompanyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, len(list))
	for i, a := range list {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListZones returns a company's zones.
// GET /api/companies/{id}/zones
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.store.ListZones(r.Context(), ratecard.CompanyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to list zones", err)
		return
	}

	dtos := make([]ZoneDTO, len(zones))
	for i, z := range zones {
		pins := z.Pincodes
		if pins == nil {
			pins = []string{}
		}
		dtos[i] = ZoneDTO{ID: z.ID, Code: z.Code, Name: z.Name, Pincodes: pins}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ZONE HANDLERS
// =============================================================================

// GetPincode returns the reference data of a pincode.
// GET /api/pincodes/{pincode}
func (h *Handler) GetPincode(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Resolver.ResolvePincode(chi.URLParam(r, "pincode"))
	if errors.Is(err, zone.ErrUnknownPincode) {
		writeError(w, http.StatusNotFound, "Pincode not found", err)
		return
	}
	if err != nil {
		h.writeDomainError(w, r, "Failed to resolve pincode", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Classify returns the zone of a pincode pair.
// GET /api/zones/classify?from=&to=
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", nil)
		return
	}

	c, err := h.svc.Resolver.Classify(from, to)
	if err != nil {
		h.writeDomainError(w, r, "Failed to classify route", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ReloadZones swaps in a fresh zone snapshot.
// POST /api/admin/reload
func (h *Handler) ReloadZones(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Resolver.Reload(r.Context()); err != nil {
		h.writeDomainError(w, r, "Failed to reload zones", err)
		return
	}
	h.logger.Info("zone snapshot reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case pricing.IsInvalidRequest(err), errors.Is(err, zone.ErrUnknownPincode):
		return http.StatusBadRequest
	case errors.Is(err, ratecard.ErrInvalidCard):
		return http.StatusBadRequest
	case ratecard.IsNotFound(err), errors.Is(err, quote.ErrQuoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ratecard.ErrSuperseded), errors.Is(err, quote.ErrDuplicateIdempotencyKey):
		return http.StatusConflict
	case pricing.IsExclusion(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, zone.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
