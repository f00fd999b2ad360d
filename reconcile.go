package main

import (
	"fmt"
)

// FlattenCodes collects every country code of a Table, regardless of
// continent.
func FlattenCodes(table Table) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, countries := range table {
		for code := range countries {
			codes[code] = struct{}{}
		}
	}
	return codes
}

// FlattenShortcuts collects every ISO code referenced by the region table.
func FlattenShortcuts(regions map[string][]string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, members := range regions {
		for _, code := range members {
			codes[code] = struct{}{}
		}
	}
	return codes
}

// Mismatches lists the codes that only one naming convention knows about.
type Mismatches struct {
	ISOOnly       []string `yaml:"iso_only"`
	GeofabrikOnly []string `yaml:"geofabrik_only"`
}

// FindMismatches compares the codes of the ISO and GeoFabrik tables.
func FindMismatches(iso, geofabrik Table) Mismatches {
	isoCodes := FlattenCodes(iso)
	geofabrikCodes := FlattenCodes(geofabrik)
	return Mismatches{
		ISOOnly:       difference(isoCodes, geofabrikCodes),
		GeofabrikOnly: difference(geofabrikCodes, isoCodes),
	}
}

// UncoveredCodes returns the ISO-only codes that have no correction entry,
// i.e. ISO codes for which no download URL can be built.
func UncoveredCodes(m Mismatches, corrections map[string]string) []string {
	uncovered := []string{}
	for _, code := range m.ISOOnly {
		if _, ok := corrections[code]; !ok {
			uncovered = append(uncovered, code)
		}
	}
	return uncovered
}

// InvalidCorrections returns the ISO codes whose correction points at a code
// the GeoFabrik table does not have.
func InvalidCorrections(corrections map[string]string, geofabrik Table) []string {
	geofabrikCodes := FlattenCodes(geofabrik)
	invalid := []string{}
	for _, code := range sortedKeys(corrections) {
		if _, ok := geofabrikCodes[corrections[code]]; !ok {
			invalid = append(invalid, code)
		}
	}
	return invalid
}

// ResolveContinentAndCountry scans the continents of table in name order and
// returns the first one listing code. Prefer the LookupISO and LookupGeofabrik
// indexes for repeated lookups.
func ResolveContinentAndCountry(code string, table Table) (Location, error) {
	code = normalizeCode(code)
	for _, continent := range continentNames(table) {
		if name, ok := table[continent][code]; ok {
			return Location{Continent: continent, Code: code, Name: name}, nil
		}
	}
	return Location{}, fmt.Errorf("%q : %w", code, ErrUnknownCode)
}

// Reconciliation is the full consistency report over the reference tables.
type Reconciliation struct {
	Mismatches         Mismatches        `yaml:"mismatches"`
	Corrections        map[string]string `yaml:"corrections"`
	Uncovered          []string          `yaml:"uncovered"`
	InvalidCorrections []string          `yaml:"invalid_corrections"`
	Unassigned         []string          `yaml:"unassigned_to_region"`
	Collisions         []string          `yaml:"continent_collisions"`
}

// Complete reports whether every ISO code can be mapped to an extract.
func (r Reconciliation) Complete() bool {
	return len(r.Uncovered) == 0 && len(r.InvalidCorrections) == 0
}

// Reconcile checks the correction mapping and region table against the
// country tables.
func (r *ReferenceTables) Reconcile() Reconciliation {
	mismatches := FindMismatches(r.iso, r.geofabrik)
	return Reconciliation{
		Mismatches:         mismatches,
		Corrections:        r.Corrections(),
		Uncovered:          UncoveredCodes(mismatches, r.corrections),
		InvalidCorrections: InvalidCorrections(r.corrections, r.geofabrik),
		Unassigned:         difference(FlattenCodes(r.iso), FlattenShortcuts(r.regions)),
		Collisions:         r.Collisions(),
	}
}

// ExpandRegion returns the ISO codes of a shortcut region label.
func (r *ReferenceTables) ExpandRegion(label string) ([]string, error) {
	members, ok := r.regions[normalizeCode(label)]
	if !ok {
		return nil, fmt.Errorf("%q : %w", label, ErrUnknownRegion)
	}
	return append([]string(nil), members...), nil
}

// ExpandContinent returns the ISO codes of every country on a continent,
// given its two-letter abbreviation. The abbreviation is never interpreted as
// a country code: "SA" is South America here, not Saudi Arabia.
func (r *ReferenceTables) ExpandContinent(abbr string) ([]string, error) {
	sections, ok := r.continentSections[normalizeCode(abbr)]
	if !ok {
		return nil, fmt.Errorf("%q : %w", abbr, ErrUnknownContinent)
	}
	codes := []string{}
	for _, section := range sections {
		codes = append(codes, sortedKeys(r.iso[section])...)
	}
	return codes, nil
}
