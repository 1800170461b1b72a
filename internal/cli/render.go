package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pluginhub/pluginhub/internal/plugins"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func isOutputFormat(format string) bool {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return true
	}
	return false
}

// pluginRow is the rendered form of one available plugin
type pluginRow struct {
	ID          string     `json:"id" yaml:"id"`
	Version     string     `json:"version" yaml:"version"`
	DisplayName string     `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Source      string     `json:"source" yaml:"source"`
	PackageURI  string     `json:"package_uri,omitempty" yaml:"package_uri,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
}

func toRows(available []plugins.AvailablePlugin) []pluginRow {
	rows := make([]pluginRow, len(available))
	for i, p := range available {
		rows[i] = pluginRow{
			ID:          p.Identity.ID,
			Version:     p.Version,
			DisplayName: p.DisplayName,
			Source:      p.Source.String(),
			PackageURI:  p.PackageURI,
		}
		if !p.PublishedAt.IsZero() {
			published := p.PublishedAt.UTC()
			rows[i].PublishedAt = &published
		}
	}
	return rows
}

func renderPlugins(w io.Writer, format string, available []plugins.AvailablePlugin) error {
	rows := toRows(available)
	if format != outputTable {
		return encode(w, format, rows)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "VERSION", "NAME", "SOURCE", "PUBLISHED"})
	for _, r := range rows {
		published := ""
		if r.PublishedAt != nil {
			published = r.PublishedAt.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{r.ID, r.Version, r.DisplayName, r.Source, published})
	}
	t.Render()
	return nil
}

// manifestResult is the validation outcome of one manifest file
type manifestResult struct {
	File       string              `json:"file" yaml:"file"`
	Valid      bool                `json:"valid" yaml:"valid"`
	Error      string              `json:"error,omitempty" yaml:"error,omitempty"`
	Violations []plugins.Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

func renderManifestResults(w io.Writer, format string, results []manifestResult) error {
	if format != outputTable {
		return encode(w, format, results)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"FILE", "VALID", "FIELD", "MESSAGE"})
	for _, r := range results {
		switch {
		case r.Error != "":
			t.AppendRow(table.Row{r.File, false, "", r.Error})
		case r.Valid:
			t.AppendRow(table.Row{r.File, true, "", ""})
		default:
			for _, v := range r.Violations {
				t.AppendRow(table.Row{r.File, false, v.Field, v.Message})
			}
		}
	}
	t.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
