/*
Package quote records completed price calculations.

PURPOSE:
  A quote pins the exact card version a price was computed with. The ledger
  is append-only: no update, no delete. The rate card registry consults it
  to decide whether a card edit must create a new version instead of
  mutating the card in place.

IDEMPOTENCY:
  Every quote may carry an idempotency key, scoped to its company.
  Recording the same key twice for a company returns the quote stored the
  first time.

SEE ALSO:
  - ratecard/registry.go: versioning driven by IsRateCardReferenced
  - store/sqlite/sqlite.go, ratecard/store/memory.go: Store implementations
*/
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/ratecard"
)

var (
	// ErrDuplicateIdempotencyKey is returned by Store.AppendQuote when the
	// company already used the key.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	ErrQuoteNotFound = errors.New("quote not found")
)

type ID string

type Quote struct {
	ID                 ID
	IdempotencyKey     string
	CompanyID          ratecard.CompanyID
	RateCardID         ratecard.RateCardID
	RateCardVersion    int
	Carrier            ratecard.Carrier
	ServiceType        ratecard.ServiceType
	OriginPincode      string
	DestinationPincode string
	Breakdown          pricing.Breakdown
	CreatedAt          time.Time
}

// Store persists quotes. Append-only.
type Store interface {
	AppendQuote(ctx context.Context, q Quote) error
	GetQuoteByKey(ctx context.Context, companyID ratecard.CompanyID, idempotencyKey string) (*Quote, error)
	ListQuotes(ctx context.Context, companyID ratecard.CompanyID) ([]Quote, error)
	IsRateCardReferenced(ctx context.Context, id ratecard.RateCardID) (bool, error)
}

// Ledger is the write path for quotes.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Record appends a quote for a breakdown. A key the company already used
// returns the original quote and created=false.
func (l *Ledger) Record(ctx context.Context, companyID ratecard.CompanyID, key string, origin, destination string, b *pricing.Breakdown) (q *Quote, created bool, err error) {
	if key != "" {
		existing, err := l.store.GetQuoteByKey(ctx, companyID, key)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrQuoteNotFound) {
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	rec := Quote{
		ID:                 ID(uuid.NewString()),
		IdempotencyKey:     key,
		CompanyID:          companyID,
		RateCardID:         b.RateCardID,
		RateCardVersion:    b.RateCardVersion,
		Carrier:            b.Carrier,
		ServiceType:        b.ServiceType,
		OriginPincode:      origin,
		DestinationPincode: destination,
		Breakdown:          *b,
		CreatedAt:          l.now().UTC(),
	}
	if err := l.store.AppendQuote(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// Lost a race with a concurrent retry.
			existing, getErr := l.store.GetQuoteByKey(ctx, companyID, key)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("append quote: %w", err)
	}
	return &rec, true, nil
}

// List returns a company's quotes, oldest first.
func (l *Ledger) List(ctx context.Context, companyID ratecard.CompanyID) ([]Quote, error) {
	return l.store.ListQuotes(ctx, companyID)
}

// IsRateCardReferenced lets the ledger serve as a ratecard.ReferenceChecker.
func (l *Ledger) IsRateCardReferenced(ctx context.Context, id ratecard.RateCardID) (bool, error) {
	return l.store.IsRateCardReferenced(ctx, id)
}
