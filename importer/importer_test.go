package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rate-engine/importer"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/ratecard/store"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type harness struct {
	mem *store.Memory
	imp *importer.Importer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveCompany(context.Background(), ratecard.Company{ID: "acme", Tier: "basic"}))
	reg := ratecard.NewRegistry(mem, mem, mem, nil)
	imp := importer.New(mem, mem, reg, importer.Defaults{GSTPercent: decimal.NewFromInt(18)}, nil)
	return &harness{mem: mem, imp: imp}
}

func parse(t *testing.T, csv string) []importer.Row {
	t.Helper()
	rows, err := importer.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return rows
}

func (h *harness) run(t *testing.T, csv string) *importer.Result {
	t.Helper()
	res, err := h.imp.Import(context.Background(), "acme", parse(t, csv))
	require.NoError(t, err)
	return res
}

func (h *harness) card(t *testing.T, name string) *ratecard.RateCard {
	t.Helper()
	c, err := h.mem.FindRateCard(context.Background(), "acme", name)
	require.NoError(t, err)
	return c
}

const header = "Name,Carrier,Service Type,Base Price,Min Weight,Max Weight,Zone,Zone Price,Status\n"

// =============================================================================
// PARSING
// =============================================================================

func TestParseCSV_HeaderIsCaseInsensitive(t *testing.T) {
	rows := parse(t, "max_weight,NAME,carrier,SERVICE TYPE,base price,Min-Weight,transit days\n"+
		"0.5,standard,Delhivery,Surface,40,0,3\n\n")

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 1, r.Index)
	assert.Equal(t, "standard", r.Name)
	assert.Equal(t, "Surface", r.ServiceType)
	assert.Equal(t, "0.5", r.MaxWeight)
	assert.Equal(t, "0", r.MinWeight)
	assert.Equal(t, "3", r.TransitDays)
	assert.Equal(t, "", r.Zone)
}

func TestParseCSV_MissingColumn(t *testing.T) {
	_, err := importer.ParseCSV(strings.NewReader("Name,Carrier,Base Price,Min Weight,Max Weight\n"))
	assert.ErrorIs(t, err, importer.ErrMissingColumn)

	_, err = importer.ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, importer.ErrMissingColumn)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestImport_CreatesCard(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, header+
		"standard,Delhivery,Surface,40,0,0.5,zoneA,0,\n"+
		"standard,Delhivery,Surface,70,0.5,1,zoneA,0,\n"+
		"standard,Delhivery,Surface,70,0.5,1,zoneD,25,\n")

	assert.Equal(t, []string{"standard"}, res.Created)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Errors)

	c := h.card(t, "standard")
	assert.Len(t, c.BaseRates, 2, "identical bracket and price merges")
	assert.Len(t, c.ZoneRules, 2)
	assert.Equal(t, ratecard.ZoneModeFlat, c.ZoneMode)
	assert.Equal(t, ratecard.StatusActive, c.Status)
	assert.True(t, c.Surcharges.GSTPercent.Equal(decimal.NewFromInt(18)), "default GST")
}

func TestImport_OverlapRejectedAdjacentAccepted(t *testing.T) {
	// GIVEN: [0,1) accepted, then [0.5,2) overlapping, then [1,2) adjacent
	h := newHarness(t)

	res := h.run(t, header+
		"standard,dtdc,surface,40,0,1,,,\n"+
		"standard,dtdc,surface,60,0.5,2,,,\n"+
		"standard,dtdc,surface,60,1,2,,,\n")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, "standard", res.Errors[0].Name)
	assert.Contains(t, res.Errors[0].Reason, "overlap")
	assert.Len(t, h.card(t, "standard").BaseRates, 2)
}

func TestImport_SameBracketDifferentPriceConflicts(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, header+
		"standard,dtdc,surface,40,0,1,,,\n"+
		"standard,dtdc,surface,45,0,1,,,\n")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Reason, "already priced")
}

func TestImport_PartialSuccess(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, header+
		"standard,dtdc,surface,40,0,1,,,\n"+
		"standard,dtdc,surface,abc,1,2,,,\n"+
		"standard,dtdc,surface,-5,2,3,,,\n"+
		"standard,dtdc,surface,50,3,3,,,\n"+
		"standard,dtdc,surface,50,3,4,zoneQ,10,\n"+
		"standard,dtdc,surface,50,3,4,zoneA,,\n"+
		"standard,,surface,50,3,4,,,\n"+
		",dtdc,surface,50,3,4,,,\n"+
		"standard,dtdc,surface,50,3,4,,,draft\n"+
		"standard,dtdc,surface,50,3,4,,,\n")

	assert.Equal(t, []string{"standard"}, res.Created)
	rows := make([]int, len(res.Errors))
	for i, e := range res.Errors {
		rows[i] = e.Row
	}
	assert.ElementsMatch(t, []int{2, 3, 4, 5, 6, 7, 8, 9}, rows)
	assert.Len(t, h.card(t, "standard").BaseRates, 2)
}

func TestImport_ConflictingStatus(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, header+
		"standard,dtdc,surface,40,0,1,,,inactive\n"+
		"standard,dtdc,surface,50,1,2,,,active\n")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, ratecard.StatusInactive, h.card(t, "standard").Status)
}

func TestImport_AutoCreatesCanonicalZones(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.run(t, header+"standard,dtdc,surface,40,0,1,Zone E,90,\n")
	require.Empty(t, res.Errors)

	z, err := h.mem.GetZone(ctx, "acme", zone.ZoneE)
	require.NoError(t, err)
	assert.Equal(t, zone.ZoneE, z.Code)

	zones, err := h.mem.ListZones(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, zones, 1)
}

// rejectingPublisher refuses every card as structurally invalid.
type rejectingPublisher struct{}

func (rejectingPublisher) Publish(context.Context, ratecard.RateCard) (*ratecard.RateCard, error) {
	return nil, &ratecard.ValidationError{Problems: []error{errors.New("minimum call exceeds cap")}}
}

func TestImport_RejectedCardLeavesZonesUntouched(t *testing.T) {
	// GIVEN: a publisher that rejects the card after its rows pass
	mem := store.NewMemory()
	ctx := context.Background()
	imp := importer.New(mem, mem, rejectingPublisher{}, importer.Defaults{}, nil)

	// WHEN: importing rows that price zone E
	res, err := imp.Import(ctx, "acme", parse(t, header+"standard,dtdc,surface,40,0,1,zoneE,90,\n"))

	// THEN: the card is reported and no zone is created
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Empty(t, res.Created)

	zones, err := mem.ListZones(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, zones)
}

func TestImport_MultiplierCardRejectsZonePrices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := ratecard.NewRegistry(h.mem, h.mem, h.mem, nil)
	_, err := reg.Publish(ctx, ratecard.RateCard{
		CompanyID: "acme", Name: "multi", ZoneMode: ratecard.ZoneModeMultiplier,
		BaseRates:       []ratecard.BaseRatePick{{Carrier: "dtdc", ServiceType: "surface", BasePrice: decimal.NewFromInt(40), MinWeight: decimal.Zero, MaxWeight: decimal.NewFromInt(1)}},
		ZoneMultipliers: map[zone.Code]decimal.Decimal{zone.ZoneA: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)

	res := h.run(t, header+
		"multi,dtdc,surface,40,0,1,zoneB,10,\n"+
		"multi,dtdc,surface,45,0,1,,,\n")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Equal(t, []string{"multi"}, res.Updated)
}

// =============================================================================
// UPSERT
// =============================================================================

func TestImport_UpsertReplacesImportedKeysOnly(t *testing.T) {
	// GIVEN: a card with dtdc/surface and ekart/surface
	h := newHarness(t)
	h.run(t, header+
		"standard,dtdc,surface,40,0,1,zoneA,5,\n"+
		"standard,dtdc,surface,60,1,2,zoneA,5,\n"+
		"standard,ekart,surface,35,0,1,,,\n")

	// WHEN: re-importing dtdc/surface with a single bracket
	res := h.run(t, header+"standard,DTDC,Surface,45,0,5,zoneB,8,\n")

	// THEN: dtdc/surface is replaced wholesale, ekart is untouched
	assert.Equal(t, []string{"standard"}, res.Updated)
	c := h.card(t, "standard")
	assert.Len(t, c.BaseRatesFor(ratecard.Key{Carrier: "dtdc", ServiceType: "surface"}), 1)
	assert.Len(t, c.BaseRatesFor(ratecard.Key{Carrier: "ekart", ServiceType: "surface"}), 1)

	_, ok := c.ZoneRuleFor(zone.ZoneA, ratecard.Key{Carrier: "dtdc", ServiceType: "surface"})
	assert.False(t, ok)
	_, ok = c.ZoneRuleFor(zone.ZoneB, ratecard.Key{Carrier: "dtdc", ServiceType: "surface"})
	assert.True(t, ok)
	assert.Equal(t, 2, c.Version)
}

func TestImport_ReferencedCardIsVersioned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.run(t, header+"standard,dtdc,surface,40,0,1,,,\n")
	first := h.card(t, "standard")
	require.NoError(t, h.mem.AppendQuote(ctx, quote.Quote{ID: "q1", CompanyID: "acme", RateCardID: first.ID, RateCardVersion: 1}))

	res := h.run(t, header+"standard,dtdc,surface,55,0,1,,,\n")
	require.Empty(t, res.Errors)

	latest := h.card(t, "standard")
	assert.NotEqual(t, first.ID, latest.ID)
	assert.Equal(t, 2, latest.Version)

	old, err := h.mem.GetRateCard(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, old.SupersededBy)
	assert.True(t, old.BaseRates[0].BasePrice.Equal(decimal.NewFromInt(40)), "historical card unchanged")
}
