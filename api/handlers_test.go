/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Calculate: breakdown, quote recording, idempotent replay, error mapping
- Rank: ordering and empty results
- Rate card publish, import and assignment
- Zone lookup, classification and reload
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rate-engine/config"
	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/importer"
	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ranking"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/serviceability"
	"github.com/warp/rate-engine/store/sqlite"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router  *chi.Mux
	store   *sqlite.Store
	checker *serviceability.Static
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	resolver := zone.NewResolver(zone.StaticProvider{Config: config.DefaultZoneConfig}, st)
	ledger := quote.NewLedger(st)
	registry := ratecard.NewRegistry(st, st, ledger, nil)
	calc := pricing.NewCalculator(registry, resolver, st, nil)
	checker := serviceability.NewStatic()

	h := NewHandler(st, Services{
		Registry:   registry,
		Calculator: calc,
		Ranker:     ranking.NewEngine(calc, st, checker, ranking.Config{}, nil),
		Importer:   importer.New(st, st, registry, importer.Defaults{GSTPercent: decimal.NewFromInt(18)}, nil),
		Ledger:     ledger,
		Resolver:   resolver,
	}, nil)

	return &testServer{router: NewRouter(h), store: st, checker: checker}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func calcBody(company, carrier, service, from, to, weight, mode string) map[string]any {
	return map[string]any{
		"company_id":          company,
		"origin_pincode":      from,
		"destination_pincode": to,
		"weight":              weight,
		"payment_mode":        mode,
		"carrier":             carrier,
		"service_type":        service,
	}
}

// =============================================================================
// CALCULATE
// =============================================================================

func TestCalculate_FlatZoneCard(t *testing.T) {
	// GIVEN: acme on the flat zone card
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	// WHEN: pricing 1.2 kg Mumbai -> Delhi on delhivery surface
	rec := s.do(t, http.MethodPost, "/api/rates/calculate",
		calcBody("acme", "Delhivery", "Surface", "400001", "110001", "1.2", "prepaid"))

	// THEN: 40 + 0.7*30 freight, zone C add-on, fuel on freight+zone, 18% GST
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[QuoteResponse](t, rec)
	b := resp.Breakdown
	assert.Equal(t, zone.ZoneC, b.Zone)
	assert.Equal(t, 3, b.TransitDays)
	assert.True(t, b.Freight.Equal(money("61")), b.Freight.String())
	assert.True(t, b.ZoneCharge.Equal(money("20")))
	assert.True(t, b.FuelCharge.Equal(money("9.72")))
	assert.True(t, b.Subtotal.Equal(money("90.72")))
	assert.True(t, b.Tax.Equal(money("16.33")))
	assert.True(t, b.Total.Equal(money("107.05")), b.Total.String())
	assert.NotEmpty(t, resp.QuoteID)
	assert.False(t, resp.Replayed)
}

func TestCalculate_MinimumCallWithCOD(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "multiplier")

	body := calcBody("globex", "ekart", "surface", "400001", "400053", "0.5", "cod")
	body["order_value"] = "1000"
	rec := s.do(t, http.MethodPost, "/api/rates/calculate", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody[QuoteResponse](t, rec).Breakdown
	assert.Equal(t, zone.ZoneA, b.Zone)
	assert.True(t, b.Freight.Equal(money("100")))
	assert.True(t, b.FuelCharge.Equal(money("20")))
	assert.True(t, b.CODCharge.Equal(money("50")))
	assert.True(t, b.Subtotal.Equal(money("200")))
	assert.True(t, b.MinimumCallApplied)
	assert.True(t, b.Total.Equal(money("236")))
}

func TestCalculate_RemoteDestination(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	rec := s.do(t, http.MethodPost, "/api/rates/calculate",
		calcBody("acme", "delhivery", "surface", "400001", "744101", "0.4", "prepaid"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody[QuoteResponse](t, rec).Breakdown
	assert.Equal(t, zone.ZoneE, b.Zone)
	assert.True(t, b.RemoteAreaCharge.Equal(money("40")))
}

func TestCalculate_IdempotentReplay(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	body := calcBody("acme", "dtdc", "surface", "400001", "110001", "2", "prepaid")
	body["idempotency_key"] = "order-42"

	first := decodeBody[QuoteResponse](t, s.do(t, http.MethodPost, "/api/rates/calculate", body))
	second := decodeBody[QuoteResponse](t, s.do(t, http.MethodPost, "/api/rates/calculate", body))

	assert.Equal(t, first.QuoteID, second.QuoteID)
	assert.True(t, second.Replayed)

	rec := s.do(t, http.MethodGet, "/api/quotes?company_id=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quotes := decodeBody[[]QuoteDTO](t, rec)
	require.Len(t, quotes, 1)
	assert.Equal(t, "order-42", quotes[0].IdempotencyKey)
}

func TestCalculate_InvalidZoneOverrideIgnored(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	body := calcBody("acme", "delhivery", "surface", "400001", "110001", "1.2", "prepaid")
	body["zone_override"] = "'; DROP TABLE rate_cards; --"
	rec := s.do(t, http.MethodPost, "/api/rates/calculate", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody[QuoteResponse](t, rec).Breakdown
	assert.Equal(t, zone.ZoneC, b.Zone)
	assert.Equal(t, pricing.ZoneSourceInternal, b.ZoneSource)
}

func TestOversizedZoneOverrideIgnored(t *testing.T) {
	// GIVEN: a 100-byte override that is not a zone code
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")
	override := "zoneE; DROP TABLE quotes; --" + strings.Repeat("x", 72)
	require.Len(t, override, 100)

	route := map[string]any{
		"company_id": "acme", "origin_pincode": "400001", "destination_pincode": "110001",
		"weight": "1.2", "payment_mode": "prepaid", "zone_override": override,
	}
	calc := calcBody("acme", "delhivery", "surface", "400001", "110001", "1.2", "prepaid")
	calc["zone_override"] = override

	// WHEN: calculating a single rate
	rec := s.do(t, http.MethodPost, "/api/rates/calculate", calc)

	// THEN: the override is discarded and the zone is resolved internally
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody[QuoteResponse](t, rec).Breakdown
	assert.Equal(t, zone.ZoneC, b.Zone)
	assert.Equal(t, pricing.ZoneSourceInternal, b.ZoneSource)

	// WHEN: ranking with the same override
	rec = s.do(t, http.MethodPost, "/api/rates/rank", route)

	// THEN: every option is priced on the internal zone
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ranking.Result](t, rec)
	require.NotEmpty(t, res.Options)
	for _, o := range res.Options {
		assert.Equal(t, zone.ZoneC, o.Zone)
		assert.Equal(t, pricing.ZoneSourceInternal, o.ZoneSource)
	}
}

func TestCalculate_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	cod := calcBody("acme", "delhivery", "surface", "400001", "110001", "1", "cod")
	noExpressZoneE := calcBody("acme", "delhivery", "express", "400001", "781001", "1", "prepaid")
	tooHeavy := calcBody("acme", "delhivery", "surface", "400001", "110001", "50", "prepaid")

	tests := map[string]struct {
		body   any
		status int
	}{
		"malformed json":      {body: `{"company_id":`, status: http.StatusBadRequest},
		"missing carrier":     {body: calcBody("acme", "", "surface", "400001", "110001", "1", "prepaid"), status: http.StatusBadRequest},
		"bad payment mode":    {body: calcBody("acme", "dtdc", "surface", "400001", "110001", "1", "upi"), status: http.StatusBadRequest},
		"short pincode":       {body: calcBody("acme", "dtdc", "surface", "4001", "110001", "1", "prepaid"), status: http.StatusBadRequest},
		"zero weight":         {body: calcBody("acme", "dtdc", "surface", "400001", "110001", "0", "prepaid"), status: http.StatusBadRequest},
		"cod without value":   {body: cod, status: http.StatusBadRequest},
		"unknown pincode":     {body: calcBody("acme", "dtdc", "surface", "400001", "999999", "1", "prepaid"), status: http.StatusBadRequest},
		"unknown company":     {body: calcBody("nobody", "dtdc", "surface", "400001", "110001", "1", "prepaid"), status: http.StatusNotFound},
		"no zone rule":        {body: noExpressZoneE, status: http.StatusUnprocessableEntity},
		"beyond weight rules": {body: tooHeavy, status: http.StatusUnprocessableEntity},
		"unknown carrier":     {body: calcBody("acme", "fedex", "surface", "400001", "110001", "1", "prepaid"), status: http.StatusUnprocessableEntity},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/rates/calculate", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}

// =============================================================================
// RANK
// =============================================================================

func TestRank_OrdersByTotal(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	rec := s.do(t, http.MethodPost, "/api/rates/rank", map[string]any{
		"company_id": "acme", "origin_pincode": "400001", "destination_pincode": "110001",
		"weight": "1.2", "payment_mode": "prepaid",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ranking.Result](t, rec)
	require.Equal(t, 3, res.TotalOptions)
	assert.False(t, res.NoRatesAvailable)

	got := make([]string, len(res.Options))
	for i, o := range res.Options {
		got[i] = string(o.Carrier) + "/" + string(o.ServiceType) + "=" + o.Total.StringFixed(2)
	}
	assert.Equal(t, []string{
		"dtdc/surface=96.48",
		"delhivery/surface=107.05",
		"delhivery/express=153.97",
	}, got)
}

func TestRank_UnserviceableAndFilter(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")
	s.checker.Restrict("dtdc", "560001")

	rec := s.do(t, http.MethodPost, "/api/rates/rank", map[string]any{
		"company_id": "acme", "origin_pincode": "400001", "destination_pincode": "110001",
		"weight": "1.2", "payment_mode": "prepaid", "service_type": "surface",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ranking.Result](t, rec)
	require.Len(t, res.Options, 1)
	assert.Equal(t, ratecard.Carrier("delhivery"), res.Options[0].Carrier)
}

func TestRank_MissingTierDefault(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")
	ctx := context.Background()
	require.NoError(t, s.store.SaveCompany(ctx, ratecard.Company{ID: "bare", Tier: "lite"}))

	rec := s.do(t, http.MethodPost, "/api/rates/rank", map[string]any{
		"company_id": "bare", "origin_pincode": "400001", "destination_pincode": "110001",
		"weight": "1", "payment_mode": "prepaid",
	})

	// No assignment for the tier is a lookup failure, not an empty result.
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

// =============================================================================
// RATE CARD ADMIN
// =============================================================================

func TestPublishRateCard_CreateEditAndVersion(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	rec := s.do(t, http.MethodPost, "/api/companies/acme/ratecards", `{
		"name": "promo",
		"base_rates": [{"carrier": "dtdc", "service_type": "surface", "base_price": "30", "min_weight": "0", "max_weight": "5"}],
		"zone_rules": [{"zone": "zoneC", "carrier": "dtdc", "service_type": "surface", "additional_price": "5"}],
		"surcharges": {"gst_percent": "18"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[factory.RateCardJSON](t, rec)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, "flat", created.ZoneMode)

	// Price with it so the card becomes referenced.
	body := calcBody("acme", "dtdc", "surface", "400001", "110001", "2", "prepaid")
	body["rate_card_id"] = created.ID
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/rates/calculate", body).Code)

	created.BaseRates[0].BasePrice = money("35")
	rec = s.do(t, http.MethodPost, "/api/companies/acme/ratecards", created)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[factory.RateCardJSON](t, rec)
	assert.NotEqual(t, created.ID, edited.ID)
	assert.Equal(t, 2, edited.Version)

	// Editing the superseded version conflicts.
	rec = s.do(t, http.MethodPost, "/api/companies/acme/ratecards", created)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/ratecards/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	old := decodeBody[factory.RateCardJSON](t, rec)
	assert.Equal(t, edited.ID, old.SupersededBy)
	assert.Equal(t, "inactive", old.Status)
}

func TestPublishRateCard_Invalid(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	tests := map[string]string{
		"overlapping brackets": `{"name": "bad", "base_rates": [
			{"carrier": "dtdc", "service_type": "surface", "base_price": "30", "min_weight": "0", "max_weight": "2"},
			{"carrier": "dtdc", "service_type": "surface", "base_price": "40", "min_weight": "1", "max_weight": "3"}]}`,
		"mixed zone modes": `{"name": "bad",
			"base_rates": [{"carrier": "dtdc", "service_type": "surface", "base_price": "30", "min_weight": "0", "max_weight": "2"}],
			"zone_rules": [{"zone": "zoneA", "carrier": "dtdc", "service_type": "surface", "additional_price": "0"}],
			"zone_multipliers": {"zoneA": "1.0"}}`,
		"unknown zone": `{"name": "bad", "zone_rules": [{"zone": "north"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/companies/acme/ratecards", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestGetRateCard_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/ratecards/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportRateCards(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	csv := "Name,Carrier,Service Type,Base Price,Min Weight,Max Weight,Zone,Zone Price\n" +
		"bulk,dtdc,surface,45,0,1,zoneC,12\n" +
		"bulk,dtdc,surface,abc,1,2,,\n"
	req := httptest.NewRequest(http.MethodPost, "/api/companies/acme/ratecards/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[importer.Result](t, rec)
	assert.Equal(t, []string{"bulk"}, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)

	rec = s.do(t, http.MethodGet, "/api/companies/acme/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	zones := decodeBody[[]ZoneDTO](t, rec)
	require.Len(t, zones, 1)
	assert.Equal(t, zone.ZoneC, zones[0].Code)
}

func TestImportRateCards_MissingColumn(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/companies/acme/ratecards/import", "Name,Carrier\nx,y\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanyCarrierAssignment(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "csv-import")

	rec := s.do(t, http.MethodPost, "/api/companies", CreateCompanyRequest{ID: "hooli", Name: "Hooli", Tier: "lite"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/companies/hooli/carriers", CarrierRequest{Carrier: "Ekart", ServiceTypes: []string{"Surface"}, Active: true, TransitDays: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ekart", decodeBody[CarrierDTO](t, rec).Carrier)

	rec = s.do(t, http.MethodPost, "/api/companies/ghost/carriers", CarrierRequest{Carrier: "ekart"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Another company's card cannot be assigned.
	cards := decodeBody[[]factory.RateCardJSON](t, s.do(t, http.MethodGet, "/api/companies/initech/ratecards", nil))
	require.Len(t, cards, 1)
	rec = s.do(t, http.MethodPost, "/api/companies/hooli/assignments", AssignmentRequest{Tier: "lite", RateCardID: cards[0].ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/companies/initech/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assignments := decodeBody[[]AssignmentDTO](t, rec)
	require.Len(t, assignments, 1)
	assert.Equal(t, cards[0].ID, assignments[0].RateCardID)
}

// =============================================================================
// ZONES AND SCENARIOS
// =============================================================================

func TestZoneEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")

	rec := s.do(t, http.MethodGet, "/api/pincodes/744101", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[zone.Pincode](t, rec).Remote)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/pincodes/000000", nil).Code)

	rec = s.do(t, http.MethodGet, "/api/zones/classify?from=400001&to=411001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zone.ZoneB, decodeBody[zone.Classification](t, rec).Zone)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/zones/classify?from=400001", nil).Code)
}

func TestReloadPicksUpNewPincodes(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "flat-zones")
	require.NoError(t, s.store.SavePincodes(context.Background(), []zone.Pincode{
		{Pincode: "600001", City: "Chennai", District: "Chennai", State: "Tamil Nadu"},
	}))

	// Not visible until an explicit reload.
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/pincodes/600001", nil).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/admin/reload", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/pincodes/600001", nil).Code)
}

func TestScenarios(t *testing.T) {
	s := newTestServer(t)

	list := decodeBody[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, list, len(scenarios))

	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s.loadScenario(t, sc.ID)
			current := decodeBody[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, sc.ID, current.ID)
		})
	}

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(zone.ErrNotLoaded))
	assert.Equal(t, http.StatusConflict, statusFor(quote.ErrDuplicateIdempotencyKey))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&pricing.NotApplicableError{}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
