package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/melodi/internal/manifest"
	"github.com/conneroisu/melodi/internal/renderer"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the components a manifest declares",
	Long: `List every component the manifest declares, including components nested
inside another component, with their props, methods and template source.

Examples:
  melodi list                    # Table of components in melodi.yaml
  melodi list -f json            # Output as JSON
  melodi list -m site.yaml -f yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "manifest", "output")
}

// componentEntry is one listed component
type componentEntry struct {
	Tag      string   `json:"tag" yaml:"tag"`
	Name     string   `json:"name" yaml:"name"`
	Parent   string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Template string   `json:"template" yaml:"template"`
	Props    []string `json:"props" yaml:"props"`
	Methods  []string `json:"methods" yaml:"methods"`
	Hooks    []string `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"manifest": "app.manifest"})
	if err != nil {
		return err
	}
	src, err := renderer.FromConfig(cfg, nil)
	if err != nil {
		return err
	}
	m, err := src.LoadManifest()
	if err != nil {
		return err
	}

	entries := listEntries(m.Components, "")
	out := cmd.OutOrStdout()

	switch strings.ToLower(listFlags.Format) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(entries)
	case "table", "":
		if len(entries) == 0 {
			fmt.Fprintln(out, "No components declared.")
			return nil
		}
		return outputTable(out, entries)
	default:
		return fmt.Errorf("unsupported format: %s", listFlags.Format)
	}
}

func listEntries(components manifest.Components, parent string) []componentEntry {
	entries := []componentEntry{}
	for _, tag := range components.Names() {
		spec, _ := components.Get(tag)
		entry := componentEntry{
			Tag:      tag,
			Name:     displayName(tag),
			Parent:   parent,
			Template: templateSource(spec.Template),
			Props:    []string{},
			Methods:  sortedNames(spec.Methods),
			Hooks:    sortedNames(spec.Hooks),
			Line:     spec.Line,
		}
		for _, p := range spec.Props {
			if p.Type != "" {
				entry.Props = append(entry.Props, p.Name+":"+p.Type)
			} else {
				entry.Props = append(entry.Props, p.Name)
			}
		}
		entries = append(entries, entry)

		path := tag
		if parent != "" {
			path = parent + " > " + tag
		}
		entries = append(entries, listEntries(spec.Components, path)...)
	}
	return entries
}

// displayName turns a tag like h-user-card into "User Card". A single
// leading segment of at most two letters is treated as a namespace prefix.
func displayName(tag string) string {
	parts := strings.Split(tag, "-")
	if len(parts) > 1 && len(parts[0]) <= 2 {
		parts = parts[1:]
	}
	return cases.Title(language.English).String(strings.Join(parts, " "))
}

func templateSource(t manifest.TemplateSpec) string {
	switch {
	case t.Inline != "":
		return "inline"
	case t.File != "":
		return "file " + t.File
	case t.El != "":
		return "el " + t.El
	case t.URL != "":
		return "url " + t.URL
	default:
		return "children"
	}
}

func sortedNames(m map[string]manifest.Steps) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func outputTable(out io.Writer, entries []componentEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tNAME\tTEMPLATE\tPROPS\tMETHODS")
	for _, e := range entries {
		tag := e.Tag
		if e.Parent != "" {
			tag = e.Parent + " > " + e.Tag
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tag, e.Name, e.Template,
			orDash(strings.Join(e.Props, ", ")), orDash(strings.Join(e.Methods, ", ")))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d component(s)\n", len(entries))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
