package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDownloadURL(t *testing.T) {
	cases := []struct {
		code string
		url  string
	}{
		{"AO", "https://download.geofabrik.de/africa/angola-latest.osm.pbf"},
		{"ao", "https://download.geofabrik.de/africa/angola-latest.osm.pbf"},
		{"SN", "https://download.geofabrik.de/africa/senegal-and-gambia-latest.osm.pbf"},
		{"GM", "https://download.geofabrik.de/africa/senegal-and-gambia-latest.osm.pbf"},
		{"EH", "https://download.geofabrik.de/africa/morocco-latest.osm.pbf"},
		{"SA", "https://download.geofabrik.de/asia/gcc-states-latest.osm.pbf"},
		{"US", "https://download.geofabrik.de/north-america/us-latest.osm.pbf"},
		{"IC", "https://download.geofabrik.de/africa/canary-islands-latest.osm.pbf"},
	}

	for _, c := range cases {
		t.Run(c.code, func(t *testing.T) {
			url, err := BuildDownloadURL(c.code)
			require.NoError(t, err)
			assert.Equal(t, c.url, url)

			again, err := BuildDownloadURL(c.code)
			require.NoError(t, err)
			assert.Equal(t, url, again)
		})
	}
}

func TestBuildDownloadURLUnknown(t *testing.T) {
	_, err := BuildDownloadURL("ZZ")
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestEveryISOCodeHasExtract(t *testing.T) {
	tables := LoadReferenceTables()
	l := NewLocator("", tables)

	for code := range FlattenCodes(tables.ISO()) {
		_, err := l.URL(code)
		assert.NoError(t, err, code)
	}
	for code := range FlattenCodes(tables.Geofabrik()) {
		_, err := l.URL(code)
		assert.NoError(t, err, code)
	}
}

func TestLocatorBaseURL(t *testing.T) {
	l := NewLocator("http://mirror.local/osm/", LoadReferenceTables())

	url, err := l.URL("AO")
	require.NoError(t, err)
	assert.Equal(t, "http://mirror.local/osm/africa/angola-latest.osm.pbf", url)
}

func TestLocate(t *testing.T) {
	target, err := NewLocator("", LoadReferenceTables()).Locate("ao")
	require.NoError(t, err)
	assert.Equal(t, []string{"AO"}, target.Codes)
	assert.Equal(t, Location{Continent: "africa", Code: "AO", Name: "angola"}, target.Location)
	assert.Equal(t, "angola-latest.osm.pbf", target.Filename())
}

func TestUniqueTargets(t *testing.T) {
	l := NewLocator("", LoadReferenceTables())

	targets, unknown := l.UniqueTargets([]string{"SN", "AO", "gm", "ZZ", "AO", "SN"})
	assert.Equal(t, []string{"ZZ"}, unknown)
	require.Len(t, targets, 2)

	assert.Equal(t, []string{"SN", "GM"}, targets[0].Codes)
	assert.Equal(t, "SN-GM", targets[0].Location.Code)
	assert.Equal(t, []string{"AO"}, targets[1].Codes)
}
