package quote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/ratecard/store"
)

func breakdown(card ratecard.RateCardID, total string) *pricing.Breakdown {
	return &pricing.Breakdown{
		Carrier:         "dtdc",
		ServiceType:     "surface",
		RateCardID:      card,
		RateCardVersion: 3,
		Total:           decimal.RequireFromString(total),
	}
}

func TestRecord_PinsCardVersion(t *testing.T) {
	ctx := context.Background()
	l := quote.NewLedger(store.NewMemory())

	q, created, err := l.Record(ctx, "acme", "", "400001", "110001", breakdown("c1", "236"))
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, ratecard.RateCardID("c1"), q.RateCardID)
	assert.Equal(t, 3, q.RateCardVersion)
	assert.Equal(t, "110001", q.DestinationPincode)
	assert.False(t, q.CreatedAt.IsZero())
}

func TestRecord_Idempotent(t *testing.T) {
	// GIVEN: a quote recorded under key k1
	ctx := context.Background()
	mem := store.NewMemory()
	l := quote.NewLedger(mem)
	first, created, err := l.Record(ctx, "acme", "k1", "400001", "110001", breakdown("c1", "236"))
	require.NoError(t, err)
	require.True(t, created)

	// WHEN: the same key is recorded again with a different price
	again, created, err := l.Record(ctx, "acme", "k1", "400001", "110001", breakdown("c1", "999"))

	// THEN: the original quote comes back and nothing is appended
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Breakdown.Total.Equal(decimal.NewFromInt(236)))

	list, err := l.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecord_KeysAreScopedToCompany(t *testing.T) {
	// GIVEN: acme recorded a quote under order-1
	ctx := context.Background()
	l := quote.NewLedger(store.NewMemory())
	mine, _, err := l.Record(ctx, "acme", "order-1", "400001", "110001", breakdown("acme-card", "236"))
	require.NoError(t, err)

	// WHEN: globex records its own quote under the same key
	theirs, created, err := l.Record(ctx, "globex", "order-1", "560001", "302001", breakdown("globex-card", "99"))

	// THEN: globex gets a fresh quote priced from its own card
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, mine.ID, theirs.ID)
	assert.Equal(t, ratecard.CompanyID("globex"), theirs.CompanyID)
	assert.Equal(t, ratecard.RateCardID("globex-card"), theirs.RateCardID)
	assert.Equal(t, "560001", theirs.OriginPincode)

	// AND: a replay for acme still returns acme's quote
	again, created, err := l.Record(ctx, "acme", "order-1", "400001", "110001", breakdown("acme-card", "1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, mine.ID, again.ID)
}

func TestRecord_WithoutKeyAlwaysAppends(t *testing.T) {
	ctx := context.Background()
	l := quote.NewLedger(store.NewMemory())

	for i := 0; i < 3; i++ {
		_, created, err := l.Record(ctx, "acme", "", "400001", "110001", breakdown("c1", "236"))
		require.NoError(t, err)
		assert.True(t, created)
	}
	list, err := l.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	other, err := l.List(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestIsRateCardReferenced(t *testing.T) {
	ctx := context.Background()
	l := quote.NewLedger(store.NewMemory())

	ref, err := l.IsRateCardReferenced(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ref)

	_, _, err = l.Record(ctx, "acme", "", "400001", "110001", breakdown("c1", "236"))
	require.NoError(t, err)

	ref, err = l.IsRateCardReferenced(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ref)

	ref, err = l.IsRateCardReferenced(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, ref)
}

// racyStore reports no quote on lookup, as if a concurrent retry landed
// between the lookup and the append.
type racyStore struct {
	quote.Store
	lookups int
}

func (s *racyStore) GetQuoteByKey(ctx context.Context, companyID ratecard.CompanyID, key string) (*quote.Quote, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, quote.ErrQuoteNotFound
	}
	return s.Store.GetQuoteByKey(ctx, companyID, key)
}

func TestRecord_LostRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.AppendQuote(ctx, quote.Quote{ID: "winner", IdempotencyKey: "k1", CompanyID: "acme"}))

	l := quote.NewLedger(&racyStore{Store: mem})
	q, created, err := l.Record(ctx, "acme", "k1", "400001", "110001", breakdown("c1", "236"))

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, quote.ID("winner"), q.ID)
}

type failingStore struct{ quote.Store }

func (failingStore) GetQuoteByKey(context.Context, ratecard.CompanyID, string) (*quote.Quote, error) {
	return nil, errors.New("disk on fire")
}

func TestRecord_LookupFailure(t *testing.T) {
	l := quote.NewLedger(failingStore{Store: store.NewMemory()})
	_, _, err := l.Record(context.Background(), "acme", "k1", "a", "b", breakdown("c1", "1"))
	assert.ErrorContains(t, err, "disk on fire")
}
