/*
Package zone classifies origin/destination pincode pairs into pricing zones.

PURPOSE:
  Rate cards never price by raw postal code. They price by a canonical zone
  code (zoneA..zoneE) derived from how close the two pincodes are. This
  package owns the zone codes, the pincode reference table and the
  classification rules.

KEY CONCEPTS:
  - Code: canonical zone code, validated against a closed allow-list
  - Pincode: one row of the reference table (circle, district, state, geo)
  - Resolver: holds an immutable snapshot of pincodes + tunables
  - ConfigProvider: external source of the metro-city list and tunables

CLASSIFICATION (first match wins):
  zoneA  same district / city       (local)
  zoneB  same state                 (regional)
  zoneC  both cities are metros     (metro)
  zoneE  special state or far away  (special / far)
  zoneD  everything else            (national)

RELOAD:
  The Resolver never polls. Callers invoke Reload() explicitly and the new
  snapshot replaces the old one atomically. A request that started on the
  old snapshot finishes on it.

SEE ALSO:
  - resolver.go: Resolver, Classify, ResolvePincode
  - config.go: ConfigProvider, PincodeSource
  - config/zones.go: YAML-backed ConfigProvider
*/
package zone

import (
	"strconv"
	"strings"
)

// Code is a canonical zone code.
type Code string

const (
	ZoneA Code = "zoneA" // local
	ZoneB Code = "zoneB" // regional
	ZoneC Code = "zoneC" // metro to metro
	ZoneD Code = "zoneD" // rest of country
	ZoneE Code = "zoneE" // special / far
)

var allCodes = []Code{ZoneA, ZoneB, ZoneC, ZoneD, ZoneE}

// AllCodes returns every canonical code, cheapest tier first.
func AllCodes() []Code {
	out := make([]Code, len(allCodes))
	copy(out, allCodes)
	return out
}

// Valid reports whether c is one of the canonical codes.
func (c Code) Valid() bool {
	for _, known := range allCodes {
		if c == known {
			return true
		}
	}
	return false
}

func (c Code) String() string { return string(c) }

// ParseCode matches s exactly against the allow-list.
// No trimming or case folding: anything that is not byte-for-byte a
// canonical code is rejected.
func ParseCode(s string) (Code, bool) {
	c := Code(s)
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// NormalizeCode is the lenient variant used for admin input (imports, JSON).
// It accepts "zonea", "ZONE A", "A" and friends.
func NormalizeCode(s string) (Code, bool) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	s = strings.TrimPrefix(s, "zone")
	if len(s) != 1 {
		return "", false
	}
	return ParseCode("zone" + strings.ToUpper(s))
}

// Sanitize renders an untrusted zone string for logs: quoted, truncated,
// control characters escaped.
func Sanitize(s string) string {
	const max = 32
	if len(s) > max {
		s = s[:max] + "..."
	}
	return strconv.Quote(s)
}
