package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
)

func validFormat(format string) bool {
	return format == formatTable || format == formatYAML
}

// render writes v as YAML, or header and rows as a table.
func render(w io.Writer, format string, v any, header table.Row, rows []table.Row) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
	return nil
}

func renderLocations(w io.Writer, format string, locs []Location) error {
	rows := make([]table.Row, 0, len(locs))
	for _, l := range locs {
		rows = append(rows, table.Row{l.Code, l.Continent, l.Name})
	}
	return render(w, format, locs, table.Row{"Code", "Continent", "Name"}, rows)
}

func renderTargets(w io.Writer, format string, targets []Target) error {
	rows := make([]table.Row, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, table.Row{strings.Join(t.Codes, ","), t.Location.Continent, t.Location.Name, t.URL})
	}
	return render(w, format, targets, table.Row{"Codes", "Continent", "Extract", "URL"}, rows)
}

func renderReconciliation(w io.Writer, format string, rec Reconciliation) error {
	rows := []table.Row{}
	for _, code := range rec.Mismatches.ISOOnly {
		detail := "-> " + rec.Corrections[code]
		if rec.Corrections[code] == "" {
			detail = "no correction"
		}
		rows = append(rows, table.Row{"iso only", code, detail})
	}
	for _, code := range rec.Mismatches.GeofabrikOnly {
		rows = append(rows, table.Row{"geofabrik only", code, ""})
	}
	for _, code := range rec.Uncovered {
		rows = append(rows, table.Row{"uncovered", code, "add a correction"})
	}
	for _, code := range rec.InvalidCorrections {
		rows = append(rows, table.Row{"invalid correction", code, "-> " + rec.Corrections[code]})
	}
	for _, code := range rec.Unassigned {
		rows = append(rows, table.Row{"no region", code, ""})
	}
	for _, code := range rec.Collisions {
		rows = append(rows, table.Row{"continent collision", code, "also a country code"})
	}
	return render(w, format, rec, table.Row{"Kind", "Code", "Detail"}, rows)
}

func renderRegions(w io.Writer, format string, regions map[string][]string) error {
	rows := []table.Row{}
	for _, label := range sortedKeys(regions) {
		rows = append(rows, table.Row{label, len(regions[label]), strings.Join(regions[label], " ")})
	}
	return render(w, format, regions, table.Row{"Region", "Countries", "Codes"}, rows)
}

func renderContinents(w io.Writer, format string, tables *ReferenceTables) error {
	type continent struct {
		Code     string   `yaml:"code"`
		Name     string   `yaml:"name"`
		Sections []string `yaml:"sections"`
		Country  string   `yaml:"same_code_country,omitempty"`
	}

	continents := []continent{}
	rows := []table.Row{}
	for _, code := range sortedKeys(tables.continents) {
		c := continent{Code: code, Name: tables.continents[code], Sections: tables.continentSections[code]}
		if loc, err := tables.LookupISO(code); err == nil {
			c.Country = loc.Name
		}
		continents = append(continents, c)
		rows = append(rows, table.Row{c.Code, c.Name, strings.Join(c.Sections, " "), c.Country})
	}
	return render(w, format, continents, table.Row{"Code", "Continent", "Sections", "Same Code Country"}, rows)
}

func renderProbeReport(w io.Writer, format string, report *ProbeReport) error {
	rows := make([]table.Row, 0, len(report.Results))
	for _, res := range report.Results {
		status := ""
		if res.Status != 0 {
			status = fmt.Sprint(res.Status)
		}
		rows = append(rows, table.Row{strings.Join(res.Codes, ","), res.Method, status, res.Outcome, res.URL})
	}
	return render(w, format, report, table.Row{"Codes", "Method", "Status", "Outcome", "URL"}, rows)
}
