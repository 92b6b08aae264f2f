package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jward/instancemap"
)

// formatModulesText formats modules as aligned columns.
func formatModulesText(w io.Writer, mods []instancemap.Module) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VIRTUAL PATH\tCLASS\tKIND\tFILE")
	for _, m := range mods {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.VirtualPath, m.ClassName, m.Kind, m.RealPath)
	}
	tw.Flush()
}

// formatDependenciesText formats require edges as aligned columns.
func formatDependenciesText(w io.Writer, deps []instancemap.Dependency) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tLINE\tCOL\tTO\tEXPRESSION")
	for _, d := range deps {
		to := d.To
		if !d.Resolved() {
			to = "?"
		} else if d.Optional {
			to += " (optional)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", d.From, d.Line, d.Column, to, d.Expression)
	}
	tw.Flush()
}

func formatResolutionText(w io.Writer, r CLIResolution) {
	if !r.Resolved {
		fmt.Fprintf(w, "%s: unresolved\n", r.Expression)
		return
	}
	name := r.Module.Name
	if r.Module.Optional {
		name += " (optional)"
	}
	if r.RealPath != "" {
		fmt.Fprintf(w, "%s\n%s\n", name, r.RealPath)
		return
	}
	fmt.Fprintln(w, name)
}

// formatConfigText formats a .luaurc configuration as key/value lines.
func formatConfigText(w io.Writer, c CLIConfig) {
	fmt.Fprintf(w, "Module: %s\n", c.Name)
	fmt.Fprintf(w, "Language mode: %s\n", c.Config.Mode)
	fmt.Fprintf(w, "Type errors: %t\n", c.Config.TypeErrors)
	fmt.Fprintf(w, "Lint errors: %t\n", c.Config.LintErrors)

	if len(c.Config.Lint) > 0 {
		fmt.Fprintln(w, "Lints:")
		names := make([]string, 0, len(c.Config.Lint))
		for name := range c.Config.Lint {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %t\n", name, c.Config.Lint[name])
		}
	}
	if len(c.Config.Globals) > 0 {
		fmt.Fprintf(w, "Globals: %s\n", strings.Join(c.Config.Globals, ", "))
	}
	if len(c.Config.Aliases) > 0 {
		fmt.Fprintln(w, "Aliases:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		names := make([]string, 0, len(c.Config.Aliases))
		for name := range c.Config.Aliases {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(tw, "  @%s\t%s\n", name, c.Config.Aliases[name])
		}
		tw.Flush()
	}
	for _, e := range c.Errors {
		fmt.Fprintf(w, "Error: %s\n", e.Error())
	}
}

// formatNameText formats the identities of a module.
func formatNameText(w io.Writer, n CLIName) {
	fmt.Fprintln(w, n.HumanReadable)
	if n.VirtualPath != "" {
		fmt.Fprintf(w, "Virtual path: %s\n", n.VirtualPath)
	}
	if n.RealPath != "" {
		fmt.Fprintf(w, "File: %s\n", n.RealPath)
	}
}

// formatStoredModulesText formats exported modules as aligned columns.
func formatStoredModulesText(w io.Writer, mods []CLIStoredModule) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVIRTUAL PATH\tCLASS\tKIND\tFILE")
	for _, m := range mods {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.VirtualPath, m.ClassName, m.Kind, m.RealPath)
	}
	tw.Flush()
}

// formatStoredRequiresText formats exported require edges as aligned columns.
func formatStoredRequiresText(w io.Writer, reqs []CLIStoredRequire) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tLINE\tCOL\tTO\tEXPRESSION")
	for _, r := range reqs {
		to := "?"
		if r.To != nil {
			to = *r.To
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.From, r.Line, r.Col, to, r.Expression)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []instancemap.Module:
		formatModulesText(w, v)
	case []instancemap.Dependency:
		formatDependenciesText(w, v)
	case CLIResolution:
		formatResolutionText(w, v)
	case CLISource:
		// Raw source, so the output can be piped.
		fmt.Fprint(w, v.Text)
	case CLIConfig:
		formatConfigText(w, v)
	case CLIName:
		formatNameText(w, v)
	case CLIExport:
		fmt.Fprintf(w, "Exported %d modules to %s\n", v.Modules, v.Database)
	case []CLIStoredModule:
		formatStoredModulesText(w, v)
	case CLIStoredModule:
		formatStoredModulesText(w, []CLIStoredModule{v})
	case []CLIStoredRequire:
		formatStoredRequiresText(w, v)
	case CLIDependents:
		fmt.Fprintf(w, "Dependents of %s:\n", v.Module)
		formatStoredRequiresText(w, v.Requires)
	case CLIExportInfo:
		fmt.Fprintf(w, "Workspace: %s\nBase: %s\nHash: %s\nExported: %s\n",
			v.WorkspaceRoot, v.BaseName, v.SnapshotHash, v.ExportedAt)
	case string:
		fmt.Fprintln(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
