package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/instancemap"
	"github.com/jward/instancemap/internal/pathutil"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List every node of the instance tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("modules", err)
		}
		return outputResult(CLIResult{Command: "modules", Results: engine.Modules()})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <module> <expression>",
	Short: "Resolve a require expression as written in a module",
	Long:  "Resolves a Luau reference expression such as script.Parent.Utils or \"./utils\" relative to <module>, which may be a virtual path, a file path or a URI.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("resolve", err)
		}
		from, err := moduleArg(engine, args[0])
		if err != nil {
			return outputError("resolve", err)
		}

		info, ok, err := engine.ResolveExpression(cmd.Context(), from, args[1])
		if err != nil {
			return outputError("resolve", err)
		}
		res := CLIResolution{From: from, Expression: args[1], Resolved: ok}
		if ok {
			res.Module = &info
			res.RealPath, _ = engine.ResolveToRealPath(info.Name)
		}
		return outputResult(CLIResult{Command: "resolve", Results: res})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <module>",
	Short: "Print the source of a module",
	Long:  "Prints the source text of a module. JSON files are printed as the generated Luau data module.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("load", err)
		}
		name, err := moduleArg(engine, args[0])
		if err != nil {
			return outputError("load", err)
		}
		src, ok := engine.LoadSource(name)
		if !ok {
			return outputError("load", fmt.Errorf("no source for %s", name))
		}
		return outputResult(CLIResult{
			Command: "load",
			Results: CLISource{Name: name, Kind: src.Kind.String(), Text: src.Text},
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config <module>",
	Short: "Show the .luaurc configuration governing a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("config", err)
		}
		name, err := moduleArg(engine, args[0])
		if err != nil {
			return outputError("config", err)
		}
		cfg := engine.ConfigFor(name)
		return outputResult(CLIResult{
			Command: "config",
			Results: CLIConfig{Name: name, Config: cfg, Errors: engine.ConfigErrors()},
		})
	},
}

var nameCmd = &cobra.Command{
	Use:   "name <module>",
	Short: "Show the virtual path, file and display name of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("name", err)
		}
		name, err := moduleArg(engine, args[0])
		if err != nil {
			return outputError("name", err)
		}
		res := CLIName{Name: name, HumanReadable: engine.HumanReadableName(name)}
		res.VirtualPath, _ = engine.ResolveToVirtualPath(name)
		res.RealPath, _ = engine.ResolveToRealPath(name)
		return outputResult(CLIResult{Command: "name", Results: res})
	},
}

var uriCmd = &cobra.Command{
	Use:   "uri <uri>",
	Short: "Translate a document URI into a module identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("uri", err)
		}
		name, err := engine.ModuleNameForURI(args[0])
		if err != nil {
			return outputError("uri", err)
		}
		return outputResult(CLIResult{Command: "uri", Results: name})
	},
}

var flagUnresolved bool

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Scan every module for require calls and resolve them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("deps", err)
		}
		deps, err := engine.ScanDependencies(cmd.Context())
		if err != nil {
			return outputError("deps", err)
		}
		if flagUnresolved {
			deps = unresolvedOnly(deps)
		}
		return outputResult(CLIResult{Command: "deps", Results: deps})
	},
}

func init() {
	depsCmd.Flags().BoolVar(&flagUnresolved, "unresolved", false, "only list requires that did not resolve")
}

var exportCmd = &cobra.Command{
	Use:   "export [db]",
	Short: "Write modules and dependencies to a SQLite database",
	Long:  "Scans the workspace and writes the module map and require edges to a SQLite database (default: .instancemap/modules.db under the workspace root).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return outputError("export", err)
		}

		dbPath := defaultDBPath(engine.WorkspaceRoot())
		if len(args) > 0 {
			if dbPath, err = filepath.Abs(args[0]); err != nil {
				return outputError("export", fmt.Errorf("resolving path %q: %w", args[0], err))
			}
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return outputError("export", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
		}

		if err := engine.Export(cmd.Context(), dbPath); err != nil {
			return outputError("export", err)
		}
		return outputResult(CLIResult{
			Command: "export",
			Results: CLIExport{Database: dbPath, Modules: len(engine.Modules())},
		})
	},
}

// --- Helpers ---

// moduleArg turns a command-line module argument into a module identity.
// Virtual paths pass through, URIs are translated, and anything else is
// taken as a file path relative to the working directory.
func moduleArg(engine *instancemap.Engine, arg string) (string, error) {
	if pathutil.IsVirtualPath(arg) {
		return arg, nil
	}
	if strings.Contains(arg, "://") || strings.HasPrefix(arg, "untitled:") {
		return engine.ModuleNameForURI(arg)
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", arg, err)
	}
	if vp, ok := engine.ResolveToVirtualPath(abs); ok {
		return vp, nil
	}
	return abs, nil
}

func unresolvedOnly(deps []instancemap.Dependency) []instancemap.Dependency {
	out := deps[:0]
	for _, d := range deps {
		if !d.Resolved() {
			out = append(out, d)
		}
	}
	return out
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
