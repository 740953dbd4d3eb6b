package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/rate-engine/zone"
)

// DefaultZoneConfig is used when no zone file is configured.
var DefaultZoneConfig = zone.Config{
	MetroCities: []string{
		"Delhi", "New Delhi", "Mumbai", "Kolkata", "Chennai",
		"Bengaluru", "Hyderabad", "Ahmedabad", "Pune",
	},
	SpecialStates: []string{
		"Arunachal Pradesh", "Assam", "Manipur", "Meghalaya", "Mizoram",
		"Nagaland", "Sikkim", "Tripura", "Jammu and Kashmir", "Ladakh",
		"Andaman and Nicobar Islands", "Lakshadweep",
	},
	NationalMaxKm: 2000,
}

// FileZoneProvider reads zone tunables from a YAML file on every Load:
//
//	metro_cities: [Delhi, Mumbai]
//	special_states: [Assam]
//	national_max_km: 2000
//
// An empty Path yields DefaultZoneConfig.
type FileZoneProvider struct {
	Path string
}

func (p FileZoneProvider) Load(context.Context) (zone.Config, error) {
	if p.Path == "" {
		return DefaultZoneConfig, nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return zone.Config{}, fmt.Errorf("read zone config: %w", err)
	}
	var cfg zone.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return zone.Config{}, fmt.Errorf("parse zone config %s: %w", p.Path, err)
	}
	if cfg.NationalMaxKm < 0 {
		return zone.Config{}, fmt.Errorf("parse zone config %s: national_max_km must not be negative", p.Path)
	}
	return cfg, nil
}

var _ zone.ConfigProvider = FileZoneProvider{}
