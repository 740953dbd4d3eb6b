package zone

import (
	"context"
	"strings"
)

// Config holds the classification tunables. It is supplied by a
// ConfigProvider and only changes on Reload.
type Config struct {
	// MetroCities are matched case-insensitively against Pincode.City.
	MetroCities []string `yaml:"metro_cities" json:"metro_cities"`

	// SpecialStates always classify as zoneE (e.g. north-east, islands).
	SpecialStates []string `yaml:"special_states" json:"special_states"`

	// NationalMaxKm is the haversine cut-off between zoneD and zoneE.
	// Zero disables the distance gradient.
	NationalMaxKm float64 `yaml:"national_max_km" json:"national_max_km"`
}

// ConfigProvider supplies zone configuration. Implementations are read on
// Reload only.
type ConfigProvider interface {
	Load(ctx context.Context) (Config, error)
}

// PincodeSource supplies the pincode reference table.
type PincodeSource interface {
	ListPincodes(ctx context.Context) ([]Pincode, error)
}

// StaticProvider is a fixed ConfigProvider, mostly for tests.
type StaticProvider struct {
	Config Config
}

func (p StaticProvider) Load(context.Context) (Config, error) { return p.Config, nil }

// StaticPincodes is a fixed PincodeSource.
type StaticPincodes []Pincode

func (s StaticPincodes) ListPincodes(context.Context) ([]Pincode, error) {
	out := make([]Pincode, len(s))
	copy(out, s)
	return out, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k := normalizeName(v); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
