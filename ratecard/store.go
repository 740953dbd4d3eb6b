/*
store.go - Persistence interfaces for rate cards and company data

PURPOSE:
  Defines the boundary between the rate card domain and storage. The
  registry, importer and calculator depend only on these interfaces.

KEY INTERFACES:
  Store:        rate cards by id, by name, by company
  ZoneStore:    company zones (code + pincode list)
  CompanyStore: companies, carrier configs, tier assignments

NOT FOUND CONTRACT:
  Getters return the matching Err*NotFound sentinel, never (nil, nil).

IMPLEMENTATIONS:
  - ratecard/store/memory.go: in-memory, for tests and the demo server
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - registry.go: versioned writes on top of Store
*/
package ratecard

import (
	"context"

	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// STORE - Rate cards
// =============================================================================

type Store interface {
	GetRateCard(ctx context.Context, id RateCardID) (*RateCard, error)

	// FindRateCard returns the latest version of a card by (company, name).
	FindRateCard(ctx context.Context, companyID CompanyID, name string) (*RateCard, error)

	// ListRateCards returns every card of a company, superseded versions included.
	ListRateCards(ctx context.Context, companyID CompanyID) ([]RateCard, error)

	// SaveRateCard inserts or replaces the card with the same ID.
	SaveRateCard(ctx context.Context, card RateCard) error
}

// =============================================================================
// ZONE STORE
// =============================================================================

type ZoneStore interface {
	GetZone(ctx context.Context, companyID CompanyID, code zone.Code) (*Zone, error)
	ListZones(ctx context.Context, companyID CompanyID) ([]Zone, error)
	SaveZone(ctx context.Context, z Zone) error
}

// =============================================================================
// COMPANY STORE
// =============================================================================

type CompanyStore interface {
	GetCompany(ctx context.Context, id CompanyID) (*Company, error)
	SaveCompany(ctx context.Context, c Company) error

	// ListCarriers returns every carrier config of a company, active or not.
	ListCarriers(ctx context.Context, companyID CompanyID) ([]CarrierConfig, error)
	SaveCarrier(ctx context.Context, cc CarrierConfig) error

	GetAssignment(ctx context.Context, companyID CompanyID, tier Tier) (*Assignment, error)
	ListAssignments(ctx context.Context, companyID CompanyID) ([]Assignment, error)
	SaveAssignment(ctx context.Context, a Assignment) error
}

// ReferenceChecker reports whether a recorded quote used a card.
// Implemented by the quote ledger.
type ReferenceChecker interface {
	IsRateCardReferenced(ctx context.Context, id RateCardID) (bool, error)
}
