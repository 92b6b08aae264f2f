package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/instancemap/internal/pathutil"
	"github.com/jward/instancemap/internal/store"
)

var flagDB string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query an exported module database",
	Long:  "Run queries against a database written by 'instancemap export'. Line and column numbers are 1-based.",
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .instancemap/modules.db relative to the workspace root)")

	queryCmd.AddCommand(queryModulesCmd)
	queryCmd.AddCommand(queryModuleCmd)
	queryCmd.AddCommand(queryRequiresCmd)
	queryCmd.AddCommand(queryDependentsCmd)
	queryCmd.AddCommand(queryUnresolvedCmd)
	queryCmd.AddCommand(queryInfoCmd)
}

var queryModulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List exported modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("modules", err)
		}
		defer s.Close()

		mods, err := s.Modules()
		if err != nil {
			return outputError("modules", err)
		}
		return outputResult(CLIResult{Command: "modules", Results: modulesToCLI(mods)})
	},
}

var queryModuleCmd = &cobra.Command{
	Use:   "module <module>",
	Short: "Look up an exported module by virtual path or file path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("module", err)
		}
		defer s.Close()

		m, err := lookupStoredModule(s, args[0])
		if err != nil {
			return outputError("module", err)
		}
		return outputResult(CLIResult{Command: "module", Results: moduleToCLI(m)})
	},
}

var queryRequiresCmd = &cobra.Command{
	Use:   "requires <module>",
	Short: "List the requires made by a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("requires", err)
		}
		defer s.Close()

		m, err := lookupStoredModule(s, args[0])
		if err != nil {
			return outputError("requires", err)
		}
		reqs, err := s.RequiresFrom(m.VirtualPath)
		if err != nil {
			return outputError("requires", err)
		}
		return outputResult(CLIResult{Command: "requires", Results: requiresToCLI(reqs)})
	},
}

var queryDependentsCmd = &cobra.Command{
	Use:   "dependents <module>",
	Short: "List the modules that require a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("dependents", err)
		}
		defer s.Close()

		m, err := lookupStoredModule(s, args[0])
		if err != nil {
			return outputError("dependents", err)
		}
		reqs, err := s.Dependents(m.VirtualPath)
		if err != nil {
			return outputError("dependents", err)
		}

		var from []string
		seen := map[string]bool{}
		for _, r := range reqs {
			if !seen[r.FromPath] {
				seen[r.FromPath] = true
				from = append(from, r.FromPath)
			}
		}
		mods, err := s.ModulesByVirtualPaths(from)
		if err != nil {
			return outputError("dependents", err)
		}
		return outputResult(CLIResult{
			Command: "dependents",
			Results: CLIDependents{
				Module:   m.VirtualPath,
				Requires: requiresToCLI(reqs),
				Modules:  modulesToCLI(mods),
			},
		})
	},
}

var queryUnresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List requires that did not resolve at export time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("unresolved", err)
		}
		defer s.Close()

		reqs, err := s.UnresolvedRequires()
		if err != nil {
			return outputError("unresolved", err)
		}
		return outputResult(CLIResult{Command: "unresolved", Results: requiresToCLI(reqs)})
	},
}

var queryInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show export metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError("info", err)
		}
		defer s.Close()

		var info CLIExportInfo
		for key, dst := range map[string]*string{
			store.MetaWorkspaceRoot: &info.WorkspaceRoot,
			store.MetaBaseName:      &info.BaseName,
			store.MetaSnapshotHash:  &info.SnapshotHash,
			store.MetaExportedAt:    &info.ExportedAt,
		} {
			if *dst, err = s.Metadata(key); err != nil {
				return outputError("info", err)
			}
		}
		return outputResult(CLIResult{Command: "info", Results: info})
	},
}

// --- Helpers ---

// openStore opens the exported database from the --db flag path (or default).
func openStore() (*store.Store, error) {
	root, err := resolveWorkspaceRoot()
	if err != nil {
		return nil, err
	}
	dbPath := defaultDBPath(root)
	if flagDB != "" {
		if dbPath, err = filepath.Abs(flagDB); err != nil {
			return nil, fmt.Errorf("resolving path %q: %w", flagDB, err)
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'instancemap export' first)", dbPath)
	}
	return store.NewStore(dbPath)
}

// defaultDBPath is where export writes when no path is given.
func defaultDBPath(root string) string {
	return filepath.Join(root, ".instancemap", "modules.db")
}

// lookupStoredModule finds a module by virtual path, or by file path
// relative to the working directory.
func lookupStoredModule(s *store.Store, arg string) (*store.Module, error) {
	var (
		m   *store.Module
		err error
	)
	if pathutil.IsVirtualPath(arg) {
		m, err = s.ModuleByVirtualPath(arg)
	} else {
		abs, absErr := filepath.Abs(arg)
		if absErr != nil {
			return nil, fmt.Errorf("resolving file path %q: %w", arg, absErr)
		}
		m, err = s.ModuleByRealPath(filepath.ToSlash(abs))
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no exported module %s", arg)
	}
	return m, nil
}

func moduleToCLI(m *store.Module) CLIStoredModule {
	return CLIStoredModule{
		ID:          m.ID,
		VirtualPath: m.VirtualPath,
		Name:        m.Name,
		ClassName:   m.ClassName,
		RealPath:    m.RealPath,
		Kind:        m.Kind,
	}
}

func modulesToCLI(mods []*store.Module) []CLIStoredModule {
	out := make([]CLIStoredModule, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleToCLI(m))
	}
	return out
}

func requiresToCLI(reqs []*store.Require) []CLIStoredRequire {
	out := make([]CLIStoredRequire, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, CLIStoredRequire{
			From:       r.FromPath,
			To:         r.ToPath,
			Expression: r.Expression,
			Line:       r.Line,
			Col:        r.Col,
		})
	}
	return out
}
