// Package render writes catalog data to the terminal in table, JSON or YAML
// form.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"ci-component-catalog/internal/domain"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format names accepted by the CLI.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	headerColor = color.New(color.Bold)
	errorColor  = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
)

// Components renders the component list in the requested format.
func Components(w io.Writer, format string, components []domain.Component, sourceErrors map[string]string) error {
	switch format {
	case FormatJSON:
		return JSON(w, components)
	case FormatYAML:
		return YAML(w, components)
	case FormatTable, "":
		return componentsTable(w, components, sourceErrors)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func componentsTable(w io.Writer, components []domain.Component, sourceErrors map[string]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headerColor.Fprintln(tw, "NAME\tVERSION\tSOURCE\tPARAMETERS\tDESCRIPTION")
	for _, c := range components {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			c.Name, c.Version, c.Source, len(c.Parameters), firstLine(c.Description))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(sourceErrors) > 0 {
		fmt.Fprintln(w)
		errorColor.Fprintln(w, "Some sources failed on the last refresh:")
		for name, message := range sourceErrors {
			fmt.Fprintf(w, "  %s: %s\n", name, message)
		}
	}
	return nil
}

// Component renders a single component in detail.
func Component(w io.Writer, format string, component domain.Component) error {
	switch format {
	case FormatJSON:
		return JSON(w, component)
	case FormatYAML:
		return YAML(w, component)
	}

	headerColor.Fprintf(w, "%s", component.Name)
	fmt.Fprintf(w, " @%s\n", component.Version)
	fmt.Fprintf(w, "%s\n\n", component.Description)
	fmt.Fprintf(w, "Include: %s\n", component.URL)
	if len(component.AvailableVersions) > 0 {
		fmt.Fprintf(w, "Versions: %s\n", strings.Join(component.AvailableVersions, ", "))
	}

	if len(component.Parameters) == 0 {
		dimColor.Fprintln(w, "\nNo inputs declared.")
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headerColor.Fprintln(tw, "INPUT\tTYPE\tREQUIRED\tDEFAULT\tDESCRIPTION")
	for _, p := range component.Parameters {
		def := p.Default.String()
		if !p.Default.IsSet() {
			def = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", p.Name, p.Type, p.Required, def, p.Description)
	}
	return tw.Flush()
}

// Versions renders a resolved version list.
func Versions(w io.Writer, format string, versions []string) error {
	switch format {
	case FormatJSON:
		return JSON(w, versions)
	case FormatYAML:
		return YAML(w, versions)
	}
	for _, v := range versions {
		fmt.Fprintln(w, v)
	}
	return nil
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
