package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/tradingdesk/internal/domain"
)

// ProviderRoster is the YAML document listing the desk's providers.
//
//	providers:
//	  - name: openai
//	    api_key: ${OPENAI_API_KEY}
//	    active: true
//	    allocation_ceiling: 1000
//	    persona: momentum
type ProviderRoster struct {
	Providers []ProviderEntry `yaml:"providers"`
}

// ProviderEntry is one roster line before validation.
type ProviderEntry struct {
	Name              string  `yaml:"name"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	Active            bool    `yaml:"active"`
	AllocationCeiling float64 `yaml:"allocation_ceiling"`
	Persona           string  `yaml:"persona"`
}

// LoadProviderRoster reads and validates a roster file.
func LoadProviderRoster(path string) ([]domain.ProviderConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider roster: %w", err)
	}
	return ParseProviderRoster(b)
}

// ParseProviderRoster validates roster YAML. Environment references in
// api_key are expanded; missing ceilings default to DefaultAllocationCeiling.
func ParseProviderRoster(data []byte) ([]domain.ProviderConfig, error) {
	var roster ProviderRoster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse provider roster: %w", err)
	}

	seen := make(map[domain.ProviderName]bool, len(roster.Providers))
	providers := make([]domain.ProviderConfig, 0, len(roster.Providers))
	for i, entry := range roster.Providers {
		name, err := domain.ProviderNameFromString(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("provider #%d: %w", i+1, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("provider %s listed twice", name)
		}
		seen[name] = true

		persona, err := domain.PersonaFromString(entry.Persona)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}

		ceiling := entry.AllocationCeiling
		if ceiling == 0 {
			ceiling = domain.DefaultAllocationCeiling
		}
		if ceiling < 0 {
			return nil, fmt.Errorf("provider %s: allocation_ceiling must be positive", name)
		}

		providers = append(providers, domain.ProviderConfig{
			Name:              name,
			APIKey:            os.ExpandEnv(entry.APIKey),
			Model:             entry.Model,
			Active:            entry.Active,
			AllocationCeiling: ceiling,
			Persona:           persona,
		})
	}

	return providers, nil
}
