package main

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var referenceData []byte

// Table maps a continent to the country codes it contains and the name
// attached to each code. For the ISO table the name is a display name, for
// the GeoFabrik table it is the download slug.
type Table map[string]map[string]string

// Location is where a code was found in a Table.
type Location struct {
	Continent string `yaml:"continent"`
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
}

// referenceFile represents the structure of the embedded tables.yaml
type referenceFile struct {
	Continents        map[string]string   `yaml:"continents"`
	ContinentSections map[string][]string `yaml:"continent_sections"`
	ISO               Table               `yaml:"iso"`
	Geofabrik         Table               `yaml:"geofabrik"`
	Corrections       map[string]string   `yaml:"corrections"`
	Regions           map[string][]string `yaml:"regions"`
}

// ReferenceTables holds the static country tables. It is never modified
// after load; accessors hand out copies.
type ReferenceTables struct {
	iso               Table
	geofabrik         Table
	corrections       map[string]string
	regions           map[string][]string
	continents        map[string]string
	continentSections map[string][]string

	isoIndex       map[string]Location
	geofabrikIndex map[string]Location
}

var (
	referenceOnce sync.Once
	reference     *ReferenceTables
)

// LoadReferenceTables returns the tables compiled into the binary. They are
// decoded on first use only.
func LoadReferenceTables() *ReferenceTables {
	referenceOnce.Do(func() {
		tables, err := parseReferenceTables(referenceData)
		if err != nil {
			panic(fmt.Sprintf("embedded reference tables : %v", err))
		}
		reference = tables
	})
	return reference
}

func parseReferenceTables(data []byte) (*ReferenceTables, error) {
	var file referenceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not unmarshal reference tables : %w", err)
	}

	isoIndex, err := newIndex(file.ISO)
	if err != nil {
		return nil, fmt.Errorf("iso table : %w", err)
	}
	geofabrikIndex, err := newIndex(file.Geofabrik)
	if err != nil {
		return nil, fmt.Errorf("geofabrik table : %w", err)
	}

	return &ReferenceTables{
		iso:               file.ISO,
		geofabrik:         file.Geofabrik,
		corrections:       file.Corrections,
		regions:           file.Regions,
		continents:        file.Continents,
		continentSections: file.ContinentSections,
		isoIndex:          isoIndex,
		geofabrikIndex:    geofabrikIndex,
	}, nil
}

// newIndex flattens a Table into code -> Location. A code listed under two
// continents is rejected since lookups would become ambiguous.
func newIndex(table Table) (map[string]Location, error) {
	index := make(map[string]Location)
	for continent, countries := range table {
		for code, name := range countries {
			if prev, exists := index[code]; exists {
				return nil, fmt.Errorf("code %s listed under both %s and %s", code, prev.Continent, continent)
			}
			index[code] = Location{Continent: continent, Code: code, Name: name}
		}
	}
	return index, nil
}

// ISO returns a copy of the continent -> ISO code -> name table.
func (r *ReferenceTables) ISO() Table { return copyTable(r.iso) }

// Geofabrik returns a copy of the continent -> GeoFabrik code -> slug table.
func (r *ReferenceTables) Geofabrik() Table { return copyTable(r.geofabrik) }

// Corrections returns a copy of the ISO -> GeoFabrik code mapping.
func (r *ReferenceTables) Corrections() map[string]string { return copyStrings(r.corrections) }

// Regions returns a copy of the continent shortcut table.
func (r *ReferenceTables) Regions() map[string][]string { return copyLists(r.regions) }

// Continents returns a copy of the continent abbreviation table.
func (r *ReferenceTables) Continents() map[string]string { return copyStrings(r.continents) }

// LookupISO finds an ISO country code. Codes are matched case-insensitively.
func (r *ReferenceTables) LookupISO(code string) (Location, error) {
	return lookup(r.isoIndex, code)
}

// LookupGeofabrik finds a code in the GeoFabrik table.
func (r *ReferenceTables) LookupGeofabrik(code string) (Location, error) {
	return lookup(r.geofabrikIndex, code)
}

// Collisions lists continent abbreviations that are also ISO country codes.
func (r *ReferenceTables) Collisions() []string {
	return intersection(sortedKeys(r.continents), sortedKeys(r.isoIndex))
}

func lookup(index map[string]Location, code string) (Location, error) {
	loc, ok := index[normalizeCode(code)]
	if !ok {
		return Location{}, fmt.Errorf("%q : %w", code, ErrUnknownCode)
	}
	return loc, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func copyTable(t Table) Table {
	out := make(Table, len(t))
	for continent, countries := range t {
		out[continent] = copyStrings(countries)
	}
	return out
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyLists(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// continentNames returns the continents of a Table in a stable order.
func continentNames(t Table) []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
