/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario seeds pincodes, a company, its carriers,
	rate cards and the tier default, then reloads the zone snapshot.

AVAILABLE SCENARIOS:

	flat-zones:     Two carriers on a flat zone add-on card with COD slabs
	multiplier:     Zone multiplier card with a minimum call
	csv-import:     Card built through the CSV importer

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the pincode directory
 3. Create company and carriers
 4. Publish rate cards via factory JSON (or import CSV)
 5. Assign the tier default card
 6. Reload the zone resolver

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "flat-zones"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - factory/ratecard.go: Rate card JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/importer"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "flat-zones",
		Name:        "Flat Zone Add-ons",
		Description: "Delhivery and DTDC on a flat zone card with COD slabs and remote surcharge",
	},
	{
		ID:          "multiplier",
		Name:        "Zone Multipliers",
		Description: "Freight scaled per zone, minimum call and COD flat fee",
	},
	{
		ID:          "csv-import",
		Name:        "CSV Import",
		Description: "Rate card loaded through the bulk importer",
	},
}

// DemoPincodes is the pincode directory every scenario starts from.
var DemoPincodes = []zone.Pincode{
	{Pincode: "400001", Circle: "Maharashtra", District: "Mumbai", City: "Mumbai", State: "Maharashtra", Lat: 18.9388, Lng: 72.8354},
	{Pincode: "400053", Circle: "Maharashtra", District: "Mumbai", City: "Mumbai", State: "Maharashtra", Lat: 19.1197, Lng: 72.8468},
	{Pincode: "411001", Circle: "Maharashtra", District: "Pune", City: "Pune", State: "Maharashtra", Lat: 18.5196, Lng: 73.8553},
	{Pincode: "110001", Circle: "Delhi", District: "New Delhi", City: "Delhi", State: "Delhi", Lat: 28.6328, Lng: 77.2197},
	{Pincode: "560001", Circle: "Karnataka", District: "Bengaluru", City: "Bengaluru", State: "Karnataka", Lat: 12.9763, Lng: 77.6033},
	{Pincode: "302001", Circle: "Rajasthan", District: "Jaipur", City: "Jaipur", State: "Rajasthan", Lat: 26.9124, Lng: 75.7873},
	{Pincode: "781001", Circle: "North East", District: "Kamrup Metropolitan", City: "Guwahati", State: "Assam", Lat: 26.1445, Lng: 91.7362},
	{Pincode: "744101", Circle: "West Bengal", District: "South Andaman", City: "Port Blair", State: "Andaman and Nicobar Islands", Lat: 11.6234, Lng: 92.7265, Remote: true},
	{Pincode: "175131", Circle: "Himachal Pradesh", District: "Kullu", City: "Manali", State: "Himachal Pradesh", Lat: 32.2432, Lng: 77.1892, Remote: true},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(ctx context.Context) error
	switch req.ScenarioID {
	case "flat-zones":
		load = h.loadFlatZonesScenario
	case "multiplier":
		load = h.loadMultiplierScenario
	case "csv-import":
		load = h.loadCSVImportScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.store.SavePincodes(ctx, DemoPincodes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed pincodes", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	if err := h.svc.Resolver.Reload(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload zones", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const flatZonesCardJSON = `{
  "name": "standard",
  "zone_mode": "flat",
  "base_rates": [
    {"carrier": "delhivery", "service_type": "surface", "base_price": "40", "min_weight": "0", "max_weight": "0.5"},
    {"carrier": "delhivery", "service_type": "express", "base_price": "60", "min_weight": "0", "max_weight": "0.5"},
    {"carrier": "dtdc", "service_type": "surface", "base_price": "50", "min_weight": "0", "max_weight": "1"}
  ],
  "weight_rules": [
    {"carrier": "delhivery", "service_type": "surface", "min_weight": "0.5", "max_weight": "10", "price_per_kg": "30"},
    {"carrier": "delhivery", "service_type": "express", "min_weight": "0.5", "max_weight": "10", "price_per_kg": "45"},
    {"carrier": "dtdc", "service_type": "surface", "min_weight": "1", "max_weight": "20", "price_per_kg": "25"}
  ],
  "zone_rules": [
    {"zone": "zoneA", "carrier": "delhivery", "service_type": "surface", "additional_price": "0", "transit_days": 1},
    {"zone": "zoneB", "carrier": "delhivery", "service_type": "surface", "additional_price": "10", "transit_days": 2},
    {"zone": "zoneC", "carrier": "delhivery", "service_type": "surface", "additional_price": "20", "transit_days": 3},
    {"zone": "zoneD", "carrier": "delhivery", "service_type": "surface", "additional_price": "30", "transit_days": 5},
    {"zone": "zoneE", "carrier": "delhivery", "service_type": "surface", "additional_price": "55", "transit_days": 7},
    {"zone": "zoneA", "carrier": "delhivery", "service_type": "express", "additional_price": "0", "transit_days": 1},
    {"zone": "zoneB", "carrier": "delhivery", "service_type": "express", "additional_price": "15", "transit_days": 1},
    {"zone": "zoneC", "carrier": "delhivery", "service_type": "express", "additional_price": "25", "transit_days": 2},
    {"zone": "zoneD", "carrier": "delhivery", "service_type": "express", "additional_price": "40", "transit_days": 3},
    {"zone": "zoneA", "carrier": "dtdc", "service_type": "surface", "additional_price": "0", "transit_days": 2},
    {"zone": "zoneB", "carrier": "dtdc", "service_type": "surface", "additional_price": "8", "transit_days": 3},
    {"zone": "zoneC", "carrier": "dtdc", "service_type": "surface", "additional_price": "18", "transit_days": 4},
    {"zone": "zoneD", "carrier": "dtdc", "service_type": "surface", "additional_price": "28", "transit_days": 6}
  ],
  "surcharges": {
    "minimum_call": "35", "fuel_percent": "12", "fuel_base": "freight+zone",
    "cod_slabs": [
      {"min": "0", "max": "2000", "kind": "flat", "value": "35"},
      {"min": "2000", "max": "100000", "kind": "percent", "value": "2"}
    ],
    "remote_area_enabled": true, "remote_area_surcharge": "40",
    "gst_percent": "18"
  }
}`

func (h *Handler) loadFlatZonesScenario(ctx context.Context) error {
	if err := h.seedCompany(ctx, "acme", "Acme Retail", "basic",
		ratecard.CarrierConfig{Carrier: "delhivery", ServiceTypes: []ratecard.ServiceType{"surface", "express"}, Active: true, TransitDays: 4},
		ratecard.CarrierConfig{Carrier: "dtdc", ServiceTypes: []ratecard.ServiceType{"surface"}, Active: true, TransitDays: 5},
	); err != nil {
		return err
	}
	return h.publishAndAssign(ctx, "acme", "basic", flatZonesCardJSON)
}

const multiplierCardJSON = `{
  "name": "multiplier",
  "zone_mode": "multiplier",
  "base_rates": [
    {"carrier": "ekart", "service_type": "surface", "base_price": "100", "min_weight": "0", "max_weight": "0.5"}
  ],
  "weight_rules": [
    {"carrier": "ekart", "service_type": "surface", "min_weight": "0.5", "max_weight": "5", "price_per_kg": "10"}
  ],
  "zone_multipliers": {"zoneA": "1.0", "zoneB": "1.1", "zoneC": "1.25", "zoneD": "1.4", "zoneE": "1.75"},
  "surcharges": {
    "minimum_call": "200", "fuel_percent": "20", "fuel_base": "freight",
    "cod_slabs": [{"min": "0", "max": "10000", "kind": "flat", "value": "50"}],
    "gst_percent": "18"
  }
}`

func (h *Handler) loadMultiplierScenario(ctx context.Context) error {
	if err := h.seedCompany(ctx, "globex", "Globex", "lite",
		ratecard.CarrierConfig{Carrier: "ekart", ServiceTypes: []ratecard.ServiceType{"surface"}, Active: true, TransitDays: 4},
	); err != nil {
		return err
	}
	return h.publishAndAssign(ctx, "globex", "lite", multiplierCardJSON)
}

const demoCSV = `Name,Carrier,Service Type,Base Price,Min Weight,Max Weight,Zone,Zone Price,Status,Transit Days
imported,bluedart,air,90,0,0.5,zoneA,0,active,1
imported,bluedart,air,150,0.5,1,zoneB,20,active,1
imported,bluedart,air,150,0.5,1,zoneC,35,active,2
imported,bluedart,air,150,0.5,1,zoneD,50,active,2
imported,xpressbees,surface,45,0,1,zoneA,0,active,2
imported,xpressbees,surface,80,1,2,zoneD,25,active,5
`

func (h *Handler) loadCSVImportScenario(ctx context.Context) error {
	if err := h.seedCompany(ctx, "initech", "Initech", "advanced",
		ratecard.CarrierConfig{Carrier: "bluedart", ServiceTypes: []ratecard.ServiceType{"air"}, Active: true, TransitDays: 2},
		ratecard.CarrierConfig{Carrier: "xpressbees", ServiceTypes: []ratecard.ServiceType{"surface"}, Active: true, TransitDays: 5},
	); err != nil {
		return err
	}

	rows, err := importer.ParseCSV(strings.NewReader(demoCSV))
	if err != nil {
		return err
	}
	res, err := h.svc.Importer.Import(ctx, "initech", rows)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("demo import row %d: %s", res.Errors[0].Row, res.Errors[0].Reason)
	}

	card, err := h.store.FindRateCard(ctx, "initech", "imported")
	if err != nil {
		return err
	}
	_, err = h.svc.Registry.Assign(ctx, "initech", "advanced", card.ID)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedCompany(ctx context.Context, id ratecard.CompanyID, name string, tier ratecard.Tier, carriers ...ratecard.CarrierConfig) error {
	if err := h.store.SaveCompany(ctx, ratecard.Company{ID: id, Name: name, Tier: tier}); err != nil {
		return err
	}
	for _, cc := range carriers {
		cc.CompanyID = id
		if err := h.store.SaveCarrier(ctx, cc); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) publishAndAssign(ctx context.Context, companyID ratecard.CompanyID, tier ratecard.Tier, cardJSON string) error {
	card, err := factory.ParseRateCard([]byte(cardJSON))
	if err != nil {
		return err
	}
	card.CompanyID = companyID

	saved, err := h.svc.Registry.Publish(ctx, *card)
	if err != nil {
		return fmt.Errorf("publish %s: %w", card.Name, err)
	}
	_, err = h.svc.Registry.Assign(ctx, companyID, tier, saved.ID)
	return err
}
