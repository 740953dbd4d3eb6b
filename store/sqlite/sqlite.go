/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the rate engine using SQLite.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  ratecard.Store:        Rate cards (all versions)
  ratecard.ZoneStore:    Company zones
  ratecard.CompanyStore: Companies, carrier configs, tier assignments
  quote.Store:           Append-only quote ledger
  zone.PincodeSource:    Pincode directory for the zone resolver

APPEND-ONLY ENFORCEMENT:
  The quotes table is never updated or deleted from. Rate card rows are
  replaced in place only while no quote references them; ratecard.Registry
  decides that, not this package.

KEY TABLES:
  rate_cards:  One row per card version; rules stored as JSON
  zones:       (company, code) -> pincode list
  pincodes:    Pincode directory (circle, district, city, state, coords)
  companies:   Company records with pricing tier
  carriers:    Per-company carrier enablement
  assignments: (company, tier) -> default rate card
  quotes:      Recorded calculations, unique idempotency key

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/rates.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  registry := ratecard.NewRegistry(store, store, quote.NewLedger(store), logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ratecard/store.go: Interface definitions
  - ratecard/store/memory.go: In-memory implementation for testing
  - factory/ratecard.go: rules_json encoding
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ratecard.Store        = (*Store)(nil)
	_ ratecard.ZoneStore    = (*Store)(nil)
	_ ratecard.CompanyStore = (*Store)(nil)
	_ quote.Store           = (*Store)(nil)
	_ zone.PincodeSource    = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_cards (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		status TEXT NOT NULL,
		rules_json TEXT NOT NULL,
		superseded_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_cards_company_name
		ON rate_cards(company_id, name, version);

	CREATE TABLE IF NOT EXISTS zones (
		company_id TEXT NOT NULL,
		code TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		pincodes_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (company_id, code)
	);

	CREATE TABLE IF NOT EXISTS pincodes (
		pincode TEXT PRIMARY KEY,
		circle TEXT,
		district TEXT,
		city TEXT,
		state TEXT,
		lat REAL,
		lng REAL,
		remote INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tier TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS carriers (
		company_id TEXT NOT NULL,
		carrier TEXT NOT NULL,
		service_types_json TEXT NOT NULL,
		active INTEGER NOT NULL,
		transit_days INTEGER NOT NULL,
		PRIMARY KEY (company_id, carrier)
	);

	CREATE TABLE IF NOT EXISTS assignments (
		company_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		rate_card_id TEXT NOT NULL REFERENCES rate_cards(id),
		assigned_at TEXT NOT NULL,
		PRIMARY KEY (company_id, tier)
	);

	-- Quotes (append-only)
	CREATE TABLE IF NOT EXISTS quotes (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT,
		company_id TEXT NOT NULL,
		rate_card_id TEXT NOT NULL,
		rate_card_version INTEGER NOT NULL,
		carrier TEXT NOT NULL,
		service_type TEXT NOT NULL,
		origin_pincode TEXT NOT NULL,
		destination_pincode TEXT NOT NULL,
		breakdown_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (company_id, idempotency_key)
	);

	CREATE INDEX IF NOT EXISTS idx_quotes_company ON quotes(company_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_quotes_rate_card ON quotes(rate_card_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RATE CARD STORE (ratecard.Store interface)
// =============================================================================

const rateCardColumns = "rules_json, superseded_by, created_at, updated_at"

// SaveRateCard inserts a card or replaces the row with the same ID.
func (s *Store) SaveRateCard(ctx context.Context, card ratecard.RateCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := factory.MarshalRateCard(&card)
	if err != nil {
		return fmt.Errorf("failed to encode rate card: %w", err)
	}

	query := `
		INSERT INTO rate_cards (id, company_id, name, version, status, rules_json, superseded_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			status = excluded.status,
			rules_json = excluded.rules_json,
			superseded_by = excluded.superseded_by,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(card.ID),
		string(card.CompanyID),
		card.Name,
		card.Version,
		string(card.Status),
		string(rules),
		nullString(string(card.SupersededBy)),
		formatTime(card.CreatedAt),
		formatTime(card.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate card: %w", err)
	}
	return nil
}

// GetRateCard retrieves a card by ID.
func (s *Store) GetRateCard(ctx context.Context, id ratecard.RateCardID) (*ratecard.RateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+rateCardColumns+" FROM rate_cards WHERE id = ?", string(id))
	return scanRateCard(row)
}

// FindRateCard returns the highest version of a named card.
func (s *Store) FindRateCard(ctx context.Context, companyID ratecard.CompanyID, name string) (*ratecard.RateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+rateCardColumns+" FROM rate_cards WHERE company_id = ? AND name = ? ORDER BY version DESC LIMIT 1",
		string(companyID), name)
	return scanRateCard(row)
}

// ListRateCards returns every card version of a company.
func (s *Store) ListRateCards(ctx context.Context, companyID ratecard.CompanyID) ([]ratecard.RateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+rateCardColumns+" FROM rate_cards WHERE company_id = ? ORDER BY name, version",
		string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []ratecard.RateCard
	for rows.Next() {
		card, err := scanRateCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRateCard(row scanner) (*ratecard.RateCard, error) {
	var rules, createdAt, updatedAt string
	var supersededBy sql.NullString

	err := row.Scan(&rules, &supersededBy, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ratecard.ErrRateCardNotFound
	}
	if err != nil {
		return nil, err
	}

	card, err := factory.ParseRateCard([]byte(rules))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rate card: %w", err)
	}
	card.SupersededBy = ratecard.RateCardID(supersededBy.String)
	card.CreatedAt = parseTime(createdAt)
	card.UpdatedAt = parseTime(updatedAt)
	return card, nil
}

// =============================================================================
// ZONE STORE (ratecard.ZoneStore interface)
// =============================================================================

// SaveZone upserts a company zone.
func (s *Store) SaveZone(ctx context.Context, z ratecard.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins := z.Pincodes
	if pins == nil {
		pins = []string{}
	}
	pinsJSON, _ := json.Marshal(pins)

	query := `
		INSERT INTO zones (company_id, code, id, name, pincodes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, code) DO UPDATE SET
			name = excluded.name,
			pincodes_json = excluded.pincodes_json
	`

	_, err := s.db.ExecContext(ctx, query,
		string(z.CompanyID), string(z.Code), z.ID, z.Name, string(pinsJSON), formatTime(z.CreatedAt))
	return err
}

// GetZone retrieves a company zone by code.
func (s *Store) GetZone(ctx context.Context, companyID ratecard.CompanyID, code zone.Code) (*ratecard.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT company_id, code, id, name, pincodes_json, created_at FROM zones WHERE company_id = ? AND code = ?",
		string(companyID), string(code))
	z, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ratecard.ErrZoneNotFound
	}
	return z, err
}

// ListZones returns a company's zones ordered by code.
func (s *Store) ListZones(ctx context.Context, companyID ratecard.CompanyID) ([]ratecard.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT company_id, code, id, name, pincodes_json, created_at FROM zones WHERE company_id = ? ORDER BY code",
		string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []ratecard.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}
	return zones, rows.Err()
}

func scanZone(row scanner) (*ratecard.Zone, error) {
	var z ratecard.Zone
	var companyID, code, pinsJSON, createdAt string
	if err := row.Scan(&companyID, &code, &z.ID, &z.Name, &pinsJSON, &createdAt); err != nil {
		return nil, err
	}
	z.CompanyID = ratecard.CompanyID(companyID)
	z.Code = zone.Code(code)
	z.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(pinsJSON), &z.Pincodes); err != nil {
		return nil, fmt.Errorf("failed to decode zone pincodes: %w", err)
	}
	return &z, nil
}

// =============================================================================
// COMPANY STORE (ratecard.CompanyStore interface)
// =============================================================================

// SaveCompany upserts a company.
func (s *Store) SaveCompany(ctx context.Context, c ratecard.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, tier) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, tier = excluded.tier
	`, string(c.ID), c.Name, string(c.Tier))
	return err
}

// GetCompany retrieves a company by ID.
func (s *Store) GetCompany(ctx context.Context, id ratecard.CompanyID) (*ratecard.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c ratecard.Company
	var cid, tier string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, tier FROM companies WHERE id = ?", string(id),
	).Scan(&cid, &c.Name, &tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ratecard.ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ID = ratecard.CompanyID(cid)
	c.Tier = ratecard.Tier(tier)
	return &c, nil
}

// SaveCarrier upserts a carrier config.
func (s *Store) SaveCarrier(ctx context.Context, cc ratecard.CarrierConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	services := cc.ServiceTypes
	if services == nil {
		services = []ratecard.ServiceType{}
	}
	servicesJSON, _ := json.Marshal(services)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carriers (company_id, carrier, service_types_json, active, transit_days)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, carrier) DO UPDATE SET
			service_types_json = excluded.service_types_json,
			active = excluded.active,
			transit_days = excluded.transit_days
	`, string(cc.CompanyID), string(cc.Carrier), string(servicesJSON), cc.Active, cc.TransitDays)
	return err
}

// ListCarriers returns a company's carrier configs ordered by carrier.
func (s *Store) ListCarriers(ctx context.Context, companyID ratecard.CompanyID) ([]ratecard.CarrierConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT carrier, service_types_json, active, transit_days FROM carriers WHERE company_id = ? ORDER BY carrier",
		string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []ratecard.CarrierConfig
	for rows.Next() {
		cc := ratecard.CarrierConfig{CompanyID: companyID}
		var carrier, servicesJSON string
		if err := rows.Scan(&carrier, &servicesJSON, &cc.Active, &cc.TransitDays); err != nil {
			return nil, err
		}
		cc.Carrier = ratecard.Carrier(carrier)
		if err := json.Unmarshal([]byte(servicesJSON), &cc.ServiceTypes); err != nil {
			return nil, fmt.Errorf("failed to decode service types: %w", err)
		}
		configs = append(configs, cc)
	}
	return configs, rows.Err()
}

// SaveAssignment makes a card the default for a company tier.
func (s *Store) SaveAssignment(ctx context.Context, a ratecard.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (company_id, tier, rate_card_id, assigned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(company_id, tier) DO UPDATE SET
			rate_card_id = excluded.rate_card_id,
			assigned_at = excluded.assigned_at
	`, string(a.CompanyID), string(a.Tier), string(a.RateCardID), formatTime(a.AssignedAt))
	return err
}

// GetAssignment retrieves the default card of a company tier.
func (s *Store) GetAssignment(ctx context.Context, companyID ratecard.CompanyID, tier ratecard.Tier) (*ratecard.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := ratecard.Assignment{CompanyID: companyID, Tier: tier}
	var cardID, assignedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT rate_card_id, assigned_at FROM assignments WHERE company_id = ? AND tier = ?",
		string(companyID), string(tier),
	).Scan(&cardID, &assignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ratecard.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	a.RateCardID = ratecard.RateCardID(cardID)
	a.AssignedAt = parseTime(assignedAt)
	return &a, nil
}

// ListAssignments returns a company's tier assignments ordered by tier.
func (s *Store) ListAssignments(ctx context.Context, companyID ratecard.CompanyID) ([]ratecard.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tier, rate_card_id, assigned_at FROM assignments WHERE company_id = ? ORDER BY tier",
		string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ratecard.Assignment
	for rows.Next() {
		a := ratecard.Assignment{CompanyID: companyID}
		var tier, cardID, assignedAt string
		if err := rows.Scan(&tier, &cardID, &assignedAt); err != nil {
			return nil, err
		}
		a.Tier = ratecard.Tier(tier)
		a.RateCardID = ratecard.RateCardID(cardID)
		a.AssignedAt = parseTime(assignedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// PINCODE DIRECTORY (zone.PincodeSource interface)
// =============================================================================

// SavePincodes upserts pincode records in a single transaction.
func (s *Store) SavePincodes(ctx context.Context, pins []zone.Pincode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pincodes (pincode, circle, district, city, state, lat, lng, remote)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pincode) DO UPDATE SET
			circle = excluded.circle,
			district = excluded.district,
			city = excluded.city,
			state = excluded.state,
			lat = excluded.lat,
			lng = excluded.lng,
			remote = excluded.remote
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pins {
		if _, err := stmt.ExecContext(ctx,
			p.Pincode, p.Circle, p.District, p.City, p.State, p.Lat, p.Lng, p.Remote,
		); err != nil {
			return fmt.Errorf("failed to save pincode %s: %w", p.Pincode, err)
		}
	}
	return tx.Commit()
}

// ListPincodes returns the whole directory ordered by pincode.
func (s *Store) ListPincodes(ctx context.Context) ([]zone.Pincode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT pincode, circle, district, city, state, lat, lng, remote FROM pincodes ORDER BY pincode")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pins []zone.Pincode
	for rows.Next() {
		var p zone.Pincode
		var circle, district, city, state sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&p.Pincode, &circle, &district, &city, &state, &lat, &lng, &p.Remote); err != nil {
			return nil, err
		}
		p.Circle, p.District, p.City, p.State = circle.String, district.String, city.String, state.String
		p.Lat, p.Lng = lat.Float64, lng.Float64
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

// =============================================================================
// QUOTE STORE (quote.Store interface)
// =============================================================================

// AppendQuote adds a quote to the ledger.
func (s *Store) AppendQuote(ctx context.Context, q quote.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	breakdownJSON, err := json.Marshal(q.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}

	query := `
		INSERT INTO quotes
		(id, idempotency_key, company_id, rate_card_id, rate_card_version, carrier, service_type,
		 origin_pincode, destination_pincode, breakdown_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		string(q.ID),
		nullString(q.IdempotencyKey),
		string(q.CompanyID),
		string(q.RateCardID),
		q.RateCardVersion,
		string(q.Carrier),
		string(q.ServiceType),
		q.OriginPincode,
		q.DestinationPincode,
		string(breakdownJSON),
		formatTime(q.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return quote.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append quote: %w", err)
	}
	return nil
}

const quoteColumns = `id, idempotency_key, company_id, rate_card_id, rate_card_version, carrier, service_type,
	origin_pincode, destination_pincode, breakdown_json, created_at`

// GetQuoteByKey retrieves a company's quote by idempotency key.
func (s *Store) GetQuoteByKey(ctx context.Context, companyID ratecard.CompanyID, key string) (*quote.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE company_id = ? AND idempotency_key = ?",
		string(companyID), key)
	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, quote.ErrQuoteNotFound
	}
	return q, err
}

// ListQuotes returns a company's quotes, oldest first.
func (s *Store) ListQuotes(ctx context.Context, companyID ratecard.CompanyID) ([]quote.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE company_id = ? ORDER BY created_at, rowid",
		string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []quote.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

// IsRateCardReferenced reports whether any quote used the card.
func (s *Store) IsRateCardReferenced(ctx context.Context, id ratecard.RateCardID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM quotes WHERE rate_card_id = ?", string(id),
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanQuote(row scanner) (*quote.Quote, error) {
	var q quote.Quote
	var id, companyID, cardID, carrier, service, breakdownJSON, createdAt string
	var key sql.NullString

	err := row.Scan(&id, &key, &companyID, &cardID, &q.RateCardVersion, &carrier, &service,
		&q.OriginPincode, &q.DestinationPincode, &breakdownJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	q.ID = quote.ID(id)
	q.IdempotencyKey = key.String
	q.CompanyID = ratecard.CompanyID(companyID)
	q.RateCardID = ratecard.RateCardID(cardID)
	q.Carrier = ratecard.Carrier(carrier)
	q.ServiceType = ratecard.ServiceType(service)
	q.CreatedAt = parseTime(createdAt)

	var b pricing.Breakdown
	if err := json.Unmarshal([]byte(breakdownJSON), &b); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}
	q.Breakdown = b
	return &q, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"quotes", "assignments", "carriers", "companies", "zones", "pincodes", "rate_cards"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
