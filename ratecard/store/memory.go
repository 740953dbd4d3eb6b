// Package store provides in-memory implementations of the rate card,
// company, zone, pincode and quote stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/zone"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	cards       map[ratecard.RateCardID]ratecard.RateCard
	zones       map[zoneKey]ratecard.Zone
	companies   map[ratecard.CompanyID]ratecard.Company
	carriers    map[carrierKey]ratecard.CarrierConfig
	assignments map[tierKey]ratecard.Assignment
	pincodes    map[string]zone.Pincode
	quotes      []quote.Quote
	idempotency map[quoteKey]int // -> index in quotes
}

type zoneKey struct {
	CompanyID ratecard.CompanyID
	Code      zone.Code
}

type carrierKey struct {
	CompanyID ratecard.CompanyID
	Carrier   ratecard.Carrier
}

type tierKey struct {
	CompanyID ratecard.CompanyID
	Tier      ratecard.Tier
}

type quoteKey struct {
	CompanyID ratecard.CompanyID
	Key       string
}

func NewMemory() *Memory {
	return &Memory{
		cards:       make(map[ratecard.RateCardID]ratecard.RateCard),
		zones:       make(map[zoneKey]ratecard.Zone),
		companies:   make(map[ratecard.CompanyID]ratecard.Company),
		carriers:    make(map[carrierKey]ratecard.CarrierConfig),
		assignments: make(map[tierKey]ratecard.Assignment),
		pincodes:    make(map[string]zone.Pincode),
		idempotency: make(map[quoteKey]int),
	}
}

// =============================================================================
// RATE CARDS
// =============================================================================

func (m *Memory) GetRateCard(_ context.Context, id ratecard.RateCardID) (*ratecard.RateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cards[id]
	if !ok {
		return nil, ratecard.ErrRateCardNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (m *Memory) FindRateCard(_ context.Context, companyID ratecard.CompanyID, name string) (*ratecard.RateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *ratecard.RateCard
	for _, c := range m.cards {
		if c.CompanyID != companyID || c.Name != name {
			continue
		}
		if found == nil || c.Version > found.Version {
			cp := c.Clone()
			found = &cp
		}
	}
	if found == nil {
		return nil, ratecard.ErrRateCardNotFound
	}
	return found, nil
}

func (m *Memory) ListRateCards(_ context.Context, companyID ratecard.CompanyID) ([]ratecard.RateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ratecard.RateCard
	for _, c := range m.cards {
		if c.CompanyID == companyID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (m *Memory) SaveRateCard(_ context.Context, card ratecard.RateCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[card.ID] = card.Clone()
	return nil
}

// =============================================================================
// ZONES
// =============================================================================

func (m *Memory) GetZone(_ context.Context, companyID ratecard.CompanyID, code zone.Code) (*ratecard.Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	z, ok := m.zones[zoneKey{CompanyID: companyID, Code: code}]
	if !ok {
		return nil, ratecard.ErrZoneNotFound
	}
	return &z, nil
}

func (m *Memory) ListZones(_ context.Context, companyID ratecard.CompanyID) ([]ratecard.Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ratecard.Zone
	for k, z := range m.zones {
		if k.CompanyID == companyID {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveZone(_ context.Context, z ratecard.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z.Pincodes = append([]string(nil), z.Pincodes...)
	m.zones[zoneKey{CompanyID: z.CompanyID, Code: z.Code}] = z
	return nil
}

// =============================================================================
// COMPANIES, CARRIERS, ASSIGNMENTS
// =============================================================================

func (m *Memory) GetCompany(_ context.Context, id ratecard.CompanyID) (*ratecard.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companies[id]
	if !ok {
		return nil, ratecard.ErrCompanyNotFound
	}
	return &c, nil
}

func (m *Memory) SaveCompany(_ context.Context, c ratecard.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return nil
}

func (m *Memory) ListCarriers(_ context.Context, companyID ratecard.CompanyID) ([]ratecard.CarrierConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ratecard.CarrierConfig
	for k, cc := range m.carriers {
		if k.CompanyID == companyID {
			cc.ServiceTypes = append([]ratecard.ServiceType(nil), cc.ServiceTypes...)
			out = append(out, cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Carrier < out[j].Carrier })
	return out, nil
}

func (m *Memory) SaveCarrier(_ context.Context, cc ratecard.CarrierConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc.ServiceTypes = append([]ratecard.ServiceType(nil), cc.ServiceTypes...)
	m.carriers[carrierKey{CompanyID: cc.CompanyID, Carrier: cc.Carrier}] = cc
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, companyID ratecard.CompanyID, tier ratecard.Tier) (*ratecard.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assignments[tierKey{CompanyID: companyID, Tier: tier}]
	if !ok {
		return nil, ratecard.ErrAssignmentNotFound
	}
	return &a, nil
}

func (m *Memory) ListAssignments(_ context.Context, companyID ratecard.CompanyID) ([]ratecard.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ratecard.Assignment
	for k, a := range m.assignments {
		if k.CompanyID == companyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}

func (m *Memory) SaveAssignment(_ context.Context, a ratecard.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[tierKey{CompanyID: a.CompanyID, Tier: a.Tier}] = a
	return nil
}

// =============================================================================
// PINCODES - zone.PincodeSource
// =============================================================================

func (m *Memory) SavePincodes(_ context.Context, pins []zone.Pincode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pins {
		m.pincodes[p.Pincode] = p
	}
	return nil
}

func (m *Memory) ListPincodes(_ context.Context) ([]zone.Pincode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]zone.Pincode, 0, len(m.pincodes))
	for _, p := range m.pincodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pincode < out[j].Pincode })
	return out, nil
}

// =============================================================================
// QUOTES - quote.Store (append-only)
// =============================================================================

func (m *Memory) AppendQuote(_ context.Context, q quote.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q.IdempotencyKey != "" {
		k := quoteKey{q.CompanyID, q.IdempotencyKey}
		if _, ok := m.idempotency[k]; ok {
			return quote.ErrDuplicateIdempotencyKey
		}
		m.idempotency[k] = len(m.quotes)
	}
	m.quotes = append(m.quotes, q)
	return nil
}

func (m *Memory) GetQuoteByKey(_ context.Context, companyID ratecard.CompanyID, key string) (*quote.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.idempotency[quoteKey{companyID, key}]
	if !ok {
		return nil, quote.ErrQuoteNotFound
	}
	q := m.quotes[i]
	return &q, nil
}

func (m *Memory) ListQuotes(_ context.Context, companyID ratecard.CompanyID) ([]quote.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []quote.Quote
	for _, q := range m.quotes {
		if q.CompanyID == companyID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *Memory) IsRateCardReferenced(_ context.Context, id ratecard.RateCardID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, q := range m.quotes {
		if q.RateCardID == id {
			return true, nil
		}
	}
	return false, nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := NewMemory()
	m.cards = fresh.cards
	m.zones = fresh.zones
	m.companies = fresh.companies
	m.carriers = fresh.carriers
	m.assignments = fresh.assignments
	m.pincodes = fresh.pincodes
	m.quotes = nil
	m.idempotency = fresh.idempotency
	return nil
}

var (
	_ ratecard.Store        = (*Memory)(nil)
	_ ratecard.ZoneStore    = (*Memory)(nil)
	_ ratecard.CompanyStore = (*Memory)(nil)
	_ quote.Store           = (*Memory)(nil)
	_ zone.PincodeSource    = (*Memory)(nil)
)
