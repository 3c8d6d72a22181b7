package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// GroupType describes one operationally configured booking group, including
// the prefix used when minting booking ids.
type GroupType struct {
	Description string `json:"description"`
	Prefix      string `json:"prefix"`
}

// KeyMapping maps internal record fields to the normalized sheet column keys
// they are sourced from.
type KeyMapping struct {
	Leader  map[string]string `json:"leader"`
	Booking map[string]string `json:"booking"`
}

// Tariff holds the rates used to estimate the cost of a booking, in pence.
type Tariff struct {
	PerPerson   map[string]int64 `json:"per_person"`
	PerFacility int64            `json:"per_facility"`
}

// FieldMappings is the operational configuration loaded from the field
// mappings JSON file: group types, sheet column mapping, bookable facilities
// and the tariff table.
type FieldMappings struct {
	GroupTypes         map[string]GroupType `json:"group_types"`
	KeyMapping         KeyMapping           `json:"key_mapping"`
	BookableFacilities []string             `json:"bookable_facilities"`
	Tariff             Tariff               `json:"tariff"`
	DefaultGroupType   string               `json:"default_group_type"`
}

// LoadFieldMappings reads and parses the field mappings JSON file.
func LoadFieldMappings(path string) (*FieldMappings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFieldMappings: read %s: %w", path, err)
	}

	var m FieldMappings
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("LoadFieldMappings: parse %s: %w", path, err)
	}
	return &m, nil
}

// Prefix returns the booking id prefix for a group type, falling back to
// "BKG" when the type is not configured.
func (m *FieldMappings) Prefix(groupType string) string {
	if gt, ok := m.GroupTypes[groupType]; ok && gt.Prefix != "" {
		return gt.Prefix
	}
	return "BKG"
}

// IsBookableFacility reports whether the named facility is configured.
func (m *FieldMappings) IsBookableFacility(name string) bool {
	for _, f := range m.BookableFacilities {
		if f == name {
			return true
		}
	}
	return false
}

// EstimateCost calculates the estimated cost in pence for a booking from the
// tariff table: a per-person rate keyed by event type plus a flat fee per
// booked facility.
func (m *FieldMappings) EstimateCost(eventType string, groupSize int, facilities []string) int64 {
	perPerson := m.Tariff.PerPerson[eventType]
	return perPerson*int64(groupSize) + m.Tariff.PerFacility*int64(len(facilities))
}
