/*
Package serviceability answers "does this carrier deliver to this pincode?".

PURPOSE:
  Ranking asks a serviceability collaborator about every active carrier
  before pricing it. Implementations:
    - Static:        fixed table, for tests and the demo server
    - HTTPChecker:   remote lookup service
    - CachedChecker: Redis cache in front of any Checker

CONTRACT:
  Check returns (serviceable, error). Callers treat an error, including a
  timeout, as "not serviceable" for that carrier only.

SEE ALSO:
  - ranking/engine.go: the caller, with per-call timeouts
*/
package serviceability

import (
	"context"
	"sync"

	"github.com/warp/rate-engine/ratecard"
)

// Checker reports whether a carrier serves a destination pincode.
type Checker interface {
	Check(ctx context.Context, carrier ratecard.Carrier, pincode string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, carrier ratecard.Carrier, pincode string) (bool, error)

func (f CheckerFunc) Check(ctx context.Context, carrier ratecard.Carrier, pincode string) (bool, error) {
	return f(ctx, carrier, pincode)
}

// Static is an in-memory Checker. A carrier with no entry serves every
// pincode; a carrier with an entry serves only the listed pincodes.
type Static struct {
	mu      sync.RWMutex
	servers map[ratecard.Carrier]map[string]struct{}
}

func NewStatic() *Static {
	return &Static{servers: make(map[ratecard.Carrier]map[string]struct{})}
}

// Restrict limits a carrier to the given pincodes.
func (s *Static) Restrict(carrier ratecard.Carrier, pincodes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(pincodes))
	for _, p := range pincodes {
		set[p] = struct{}{}
	}
	s.servers[carrier] = set
}

func (s *Static) Check(_ context.Context, carrier ratecard.Carrier, pincode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.servers[carrier]
	if !ok {
		return true, nil
	}
	_, ok = set[pincode]
	return ok, nil
}
