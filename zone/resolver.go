package zone

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Pincode is one row of the postal reference table.
type Pincode struct {
	Pincode  string  `json:"pincode"`
	Circle   string  `json:"circle"`
	District string  `json:"district"`
	City     string  `json:"city"`
	State    string  `json:"state"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
	Remote   bool    `json:"remote"`
}

func (p Pincode) hasCoordinates() bool { return p.Lat != 0 || p.Lng != 0 }

func (p Pincode) cityName() string {
	if p.City != "" {
		return p.City
	}
	return p.District
}

// DistanceBand describes how far apart two pincodes are, in pricing terms.
type DistanceBand string

const (
	BandLocal    DistanceBand = "local"
	BandRegional DistanceBand = "regional"
	BandMetro    DistanceBand = "metro"
	BandNational DistanceBand = "national"
	BandFar      DistanceBand = "far"
	BandSpecial  DistanceBand = "special"
)

// Classification is the result of classifying an origin/destination pair.
type Classification struct {
	Zone         Code         `json:"zone"`
	SameCity     bool         `json:"is_same_city"`
	SameState    bool         `json:"is_same_state"`
	DistanceBand DistanceBand `json:"distance_band"`
	DistanceKm   float64      `json:"distance_km,omitempty"`
	Origin       Pincode      `json:"origin"`
	Destination  Pincode      `json:"destination"`
}

// =============================================================================
// RESOLVER
// =============================================================================

// snapshot is immutable once published.
type snapshot struct {
	pincodes      map[string]Pincode
	metros        map[string]struct{}
	specialStates map[string]struct{}
	nationalMaxKm float64
}

// Resolver maps pincodes to reference data and pincode pairs to zones.
// Safe for concurrent use. Reference data changes only on Reload.
type Resolver struct {
	config  ConfigProvider
	source  PincodeSource
	current atomic.Pointer[snapshot]
}

// NewResolver creates an unloaded resolver. Call Reload before use.
func NewResolver(config ConfigProvider, source PincodeSource) *Resolver {
	return &Resolver{config: config, source: source}
}

// Reload re-reads configuration and the pincode table and swaps the snapshot.
// On error the previous snapshot stays in place.
func (r *Resolver) Reload(ctx context.Context) error {
	cfg, err := r.config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load zone config: %w", err)
	}
	rows, err := r.source.ListPincodes(ctx)
	if err != nil {
		return fmt.Errorf("load pincodes: %w", err)
	}

	snap := &snapshot{
		pincodes:      make(map[string]Pincode, len(rows)),
		metros:        toSet(cfg.MetroCities),
		specialStates: toSet(cfg.SpecialStates),
		nationalMaxKm: cfg.NationalMaxKm,
	}
	for _, p := range rows {
		snap.pincodes[strings.TrimSpace(p.Pincode)] = p
	}
	r.current.Store(snap)
	return nil
}

// Loaded reports whether at least one Reload succeeded.
func (r *Resolver) Loaded() bool { return r.current.Load() != nil }

// ResolvePincode looks up a pincode in the current snapshot.
func (r *Resolver) ResolvePincode(pincode string) (Pincode, error) {
	snap := r.current.Load()
	if snap == nil {
		return Pincode{}, ErrNotLoaded
	}
	return snap.lookup(pincode)
}

// Classify determines the zone for an origin/destination pair.
func (r *Resolver) Classify(origin, destination string) (Classification, error) {
	snap := r.current.Load()
	if snap == nil {
		return Classification{}, ErrNotLoaded
	}
	from, err := snap.lookup(origin)
	if err != nil {
		return Classification{}, err
	}
	to, err := snap.lookup(destination)
	if err != nil {
		return Classification{}, err
	}
	return snap.classify(from, to), nil
}

func (s *snapshot) lookup(pincode string) (Pincode, error) {
	p, ok := s.pincodes[strings.TrimSpace(pincode)]
	if !ok {
		return Pincode{}, &UnknownPincodeError{Pincode: pincode}
	}
	return p, nil
}

func (s *snapshot) classify(from, to Pincode) Classification {
	c := Classification{
		Origin:      from,
		Destination: to,
		SameState:   sameState(from, to),
	}
	c.SameCity = from.Pincode == to.Pincode || (c.SameState && sameDistrict(from, to))
	if from.hasCoordinates() && to.hasCoordinates() {
		c.DistanceKm = math.Round(haversineKm(from.Lat, from.Lng, to.Lat, to.Lng)*10) / 10
	}

	switch {
	case c.SameCity:
		c.Zone, c.DistanceBand = ZoneA, BandLocal
	case c.SameState:
		c.Zone, c.DistanceBand = ZoneB, BandRegional
	case s.isMetro(from) && s.isMetro(to):
		c.Zone, c.DistanceBand = ZoneC, BandMetro
	case s.isSpecial(from) || s.isSpecial(to):
		c.Zone, c.DistanceBand = ZoneE, BandSpecial
	case s.nationalMaxKm > 0 && c.DistanceKm > s.nationalMaxKm:
		c.Zone, c.DistanceBand = ZoneE, BandFar
	default:
		c.Zone, c.DistanceBand = ZoneD, BandNational
	}
	return c
}

// sameState needs state data on both sides.
func sameState(a, b Pincode) bool {
	st := normalizeName(a.State)
	return st != "" && st == normalizeName(b.State)
}

func sameDistrict(a, b Pincode) bool {
	if a.District != "" && normalizeName(a.District) == normalizeName(b.District) {
		return true
	}
	return a.City != "" && normalizeName(a.City) == normalizeName(b.City)
}

func (s *snapshot) isMetro(p Pincode) bool {
	_, ok := s.metros[normalizeName(p.cityName())]
	return ok
}

func (s *snapshot) isSpecial(p Pincode) bool {
	_, ok := s.specialStates[normalizeName(p.State)]
	return ok
}
