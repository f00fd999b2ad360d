package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	err := app.RunContext(context.Background(), append([]string{"osm-mirror-locator"}, args...))
	return stdout.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	return exitErr.ExitCode()
}

func TestURLCommand(t *testing.T) {
	out, err := runApp(t, "--format", "yaml", "url", "AO")
	require.NoError(t, err)

	var targets []Target
	require.NoError(t, yaml.Unmarshal([]byte(out), &targets))
	require.Len(t, targets, 1)
	assert.Equal(t, "https://download.geofabrik.de/africa/angola-latest.osm.pbf", targets[0].URL)
}

func TestURLCommandTable(t *testing.T) {
	out, err := runApp(t, "--base-url", "http://mirror.local", "url", "--region", "WAR")
	require.NoError(t, err)
	assert.Contains(t, out, "http://mirror.local/africa/senegal-and-gambia-latest.osm.pbf")
	assert.Contains(t, out, "SN,GM")
}

func TestURLCommandUnknown(t *testing.T) {
	_, err := runApp(t, "url", "AO", "ZZ")
	assert.Equal(t, exitFailure, exitCode(t, err))

	_, err = runApp(t, "url")
	assert.Equal(t, exitUsage, exitCode(t, err))

	_, err = runApp(t, "url", "--region", "SA")
	assert.Equal(t, exitUsage, exitCode(t, err))
}

func TestResolveCommand(t *testing.T) {
	out, err := runApp(t, "-f", "yaml", "resolve", "SA", "ao")
	require.NoError(t, err)

	var locs []Location
	require.NoError(t, yaml.Unmarshal([]byte(out), &locs))
	assert.Equal(t, []Location{
		{Continent: "asia", Code: "SA", Name: "Saudi Arabia"},
		{Continent: "africa", Code: "AO", Name: "Angola"},
	}, locs)

	out, err = runApp(t, "resolve", "--table", "geofabrik", "SN-GM")
	require.NoError(t, err)
	assert.Contains(t, out, "senegal-and-gambia")

	_, err = runApp(t, "resolve", "SN-GM")
	assert.Equal(t, exitFailure, exitCode(t, err))
}

func TestMismatchesCommand(t *testing.T) {
	out, err := runApp(t, "-f", "yaml", "mismatches", "--strict")
	require.NoError(t, err)

	var rec Reconciliation
	require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
	assert.Empty(t, rec.Uncovered)
	assert.Contains(t, rec.Mismatches.ISOOnly, "SN")
	assert.Contains(t, rec.Mismatches.GeofabrikOnly, "XK")
	assert.Equal(t, []string{"GW", "SO"}, rec.Unassigned)
}

func TestRegionsAndContinentsCommands(t *testing.T) {
	out, err := runApp(t, "regions", "sar")
	require.NoError(t, err)
	assert.Contains(t, out, "SAR")
	assert.NotContains(t, out, "WAR")

	out, err = runApp(t, "continents")
	require.NoError(t, err)
	assert.Contains(t, out, "South America")
	assert.Contains(t, out, "Saudi Arabia")
}

func TestProbeCommand(t *testing.T) {
	srv, _ := newTestMirror(t)

	_, err := runApp(t, "--base-url", srv.URL, "--log-level", "error",
		"probe", "--delay", "0s", "AO")
	require.NoError(t, err)

	out, err := runApp(t, "--base-url", srv.URL, "--log-level", "error",
		"probe", "--delay", "0s", "--method", "HEAD", "AO", "SN")
	assert.Equal(t, exitProblems, exitCode(t, err))
	assert.Contains(t, out, string(OutcomeRateLimited))
}

func TestDownloadCommand(t *testing.T) {
	srv, _ := newTestMirror(t)
	dir := t.TempDir()

	out, err := runApp(t, "--base-url", srv.URL, "--log-level", "error",
		"download", "-o", dir, "AO")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "angola-latest.osm.pbf")+"\n", out)
}

func TestGlobalFlagValidation(t *testing.T) {
	_, err := runApp(t, "--format", "json", "regions")
	assert.Equal(t, exitUsage, exitCode(t, err))

	_, err = runApp(t, "--base-url", "not a url", "regions")
	assert.Equal(t, exitUsage, exitCode(t, err))

	_, err = runApp(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "regions")
	assert.Equal(t, exitUsage, exitCode(t, err))
}
