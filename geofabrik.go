package main

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the public GeoFabrik download server.
const DefaultBaseURL = "https://download.geofabrik.de"

// Target is a single GeoFabrik extract and the ISO codes it covers.
type Target struct {
	Codes    []string `yaml:"codes"`
	Location Location `yaml:"extract"`
	URL      string   `yaml:"url"`
}

// Filename is the name GeoFabrik serves the extract under.
func (t Target) Filename() string {
	return fmt.Sprintf("%s-latest.osm.pbf", t.Location.Name)
}

// Locator turns country codes into GeoFabrik extract URLs.
type Locator struct {
	baseURL string
	tables  *ReferenceTables
}

func NewLocator(baseURL string, tables *ReferenceTables) *Locator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Locator{
		baseURL: strings.TrimRight(baseURL, "/"),
		tables:  tables,
	}
}

// Locate resolves an ISO code through the correction mapping to its extract.
// GeoFabrik-only codes such as "IC" or "SN-GM" are accepted as well.
func (l *Locator) Locate(code string) (Target, error) {
	code = normalizeCode(code)

	geofabrikCode := code
	if corrected, ok := l.tables.corrections[code]; ok {
		geofabrikCode = corrected
	}

	loc, err := l.tables.LookupGeofabrik(geofabrikCode)
	if err != nil {
		return Target{}, fmt.Errorf("no GeoFabrik extract for %q : %w", code, ErrUnknownCode)
	}

	t := Target{Codes: []string{code}, Location: loc}
	t.URL = fmt.Sprintf("%s/%s/%s", l.baseURL, loc.Continent, t.Filename())
	return t, nil
}

// URL returns the download URL of the extract covering code.
func (l *Locator) URL(code string) (string, error) {
	t, err := l.Locate(code)
	if err != nil {
		return "", err
	}
	return t.URL, nil
}

// UniqueTargets locates every code and merges codes served by the same
// extract. Codes that cannot be located are returned separately, in input
// order.
func (l *Locator) UniqueTargets(codes []string) (targets []Target, unknown []string) {
	byURL := make(map[string]int)
	for _, code := range dedupe(normalizeAll(codes)) {
		t, err := l.Locate(code)
		if err != nil {
			unknown = append(unknown, code)
			continue
		}
		if i, ok := byURL[t.URL]; ok {
			targets[i].Codes = append(targets[i].Codes, code)
			continue
		}
		byURL[t.URL] = len(targets)
		targets = append(targets, t)
	}
	return targets, unknown
}

// BuildDownloadURL returns the download.geofabrik.de URL for an ISO country
// code, e.g. "AO" -> https://download.geofabrik.de/africa/angola-latest.osm.pbf
func BuildDownloadURL(code string) (string, error) {
	return NewLocator(DefaultBaseURL, LoadReferenceTables()).URL(code)
}

func normalizeAll(codes []string) []string {
	res := make([]string, 0, len(codes))
	for _, c := range codes {
		res = append(res, normalizeCode(c))
	}
	return res
}
