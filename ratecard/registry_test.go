package ratecard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/ratecard/store"
)

func newRegistry(t *testing.T) (*ratecard.Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveCompany(context.Background(), ratecard.Company{ID: "acme", Name: "Acme", Tier: "basic"}))
	return ratecard.NewRegistry(mem, mem, mem, nil), mem
}

func TestRegistry_CreateAssignsIDAndVersion(t *testing.T) {
	reg, _ := newRegistry(t)

	card, err := reg.Publish(context.Background(), validCard())

	require.NoError(t, err)
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, 1, card.Version)
	assert.False(t, card.CreatedAt.IsZero())
}

func TestRegistry_CreateRejectsInvalid(t *testing.T) {
	reg, _ := newRegistry(t)
	c := validCard()
	c.BaseRates = append(c.BaseRates, base("delhivery", "surface", "55", "0.25", "0.75"))

	_, err := reg.Publish(context.Background(), c)

	assert.ErrorIs(t, err, ratecard.ErrOverlappingWindows)
}

func TestRegistry_InfersZoneMode(t *testing.T) {
	reg, _ := newRegistry(t)
	c := validCard()
	c.ZoneMode = ""

	card, err := reg.Publish(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, ratecard.ZoneModeFlat, card.ZoneMode)
}

func TestRegistry_UnreferencedUpdateInPlace(t *testing.T) {
	// GIVEN: a card no quote has used
	ctx := context.Background()
	reg, mem := newRegistry(t)
	card, err := reg.Publish(ctx, validCard())
	require.NoError(t, err)

	// WHEN: it is edited
	edit := *card
	edit.Surcharges.FuelPercent = d("12")
	updated, err := reg.Publish(ctx, edit)

	// THEN: same ID, version bumped
	require.NoError(t, err)
	assert.Equal(t, card.ID, updated.ID)
	assert.Equal(t, 2, updated.Version)

	cards, err := mem.ListRateCards(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestRegistry_ReferencedCardIsVersioned(t *testing.T) {
	// GIVEN: a card assigned to the basic tier and used by a recorded quote
	ctx := context.Background()
	reg, mem := newRegistry(t)
	card, err := reg.Publish(ctx, validCard())
	require.NoError(t, err)
	_, err = reg.Assign(ctx, "acme", "basic", card.ID)
	require.NoError(t, err)
	require.NoError(t, mem.AppendQuote(ctx, quote.Quote{ID: "q1", CompanyID: "acme", RateCardID: card.ID, RateCardVersion: card.Version}))

	// WHEN: it is edited
	edit := *card
	edit.Surcharges.FuelPercent = d("12")
	next, err := reg.Publish(ctx, edit)
	require.NoError(t, err)

	// THEN: a new card supersedes the old one, which is untouched otherwise
	assert.NotEqual(t, card.ID, next.ID)
	assert.Equal(t, 2, next.Version)

	old, err := mem.GetRateCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, ratecard.StatusInactive, old.Status)
	assert.Equal(t, next.ID, old.SupersededBy)
	assert.True(t, old.Surcharges.FuelPercent.Equal(d("10")))

	// AND: the tier default follows the new version
	a, err := mem.GetAssignment(ctx, "acme", "basic")
	require.NoError(t, err)
	assert.Equal(t, next.ID, a.RateCardID)

	// AND: the superseded card can no longer be edited
	_, err = reg.Publish(ctx, *old)
	assert.ErrorIs(t, err, ratecard.ErrSuperseded)
}

func TestRegistry_ResolveDefaultByTier(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	card, err := reg.Publish(ctx, validCard())
	require.NoError(t, err)

	// No assignment yet
	_, err = reg.Resolve(ctx, "acme", "")
	assert.ErrorIs(t, err, ratecard.ErrAssignmentNotFound)
	assert.True(t, ratecard.IsNotFound(err))

	_, err = reg.Assign(ctx, "acme", "basic", card.ID)
	require.NoError(t, err)

	got, err := reg.Resolve(ctx, "acme", "")
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)

	got, err = reg.Resolve(ctx, "acme", card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)
}

func TestRegistry_ResolveRejectsOtherCompanysCard(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	card, err := reg.Publish(ctx, validCard())
	require.NoError(t, err)

	_, err = reg.Resolve(ctx, "globex", card.ID)
	assert.ErrorIs(t, err, ratecard.ErrRateCardNotFound)
}
