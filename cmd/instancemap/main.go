package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jward/instancemap"
	"github.com/jward/instancemap/internal/settings"
)

var (
	flagRoot      string
	flagSourcemap string
	flagFormat    string
	flagVerbose   bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "instancemap",
	Short:         "Map Luau modules between the instance tree and disk",
	Long:          "instancemap reads a Rojo-style sourcemap and answers module resolution, source loading and .luaurc configuration queries for a workspace.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "workspace root (default: nearest ancestor with a settings file, sourcemap or .git)")
	rootCmd.PersistentFlags().StringVar(&flagSourcemap, "sourcemap", "", "sourcemap path, relative to the workspace root (default: from settings)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log rebuild and configuration events to stderr")

	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(uriCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
}

// openEngine builds an Engine for the workspace and loads its sourcemap.
func openEngine() (*instancemap.Engine, error) {
	root, err := resolveWorkspaceRoot()
	if err != nil {
		return nil, err
	}

	s, err := settings.Load(afero.NewOsFs(), root, settings.LoadOptions{})
	if err != nil {
		return nil, err
	}

	level := log.WarnLevel
	if flagVerbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "instancemap",
		Level:  level,
	})

	engine, err := instancemap.New(root,
		instancemap.WithSettings(settings.Static{S: s}),
		instancemap.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	if flagSourcemap != "" {
		_, err = engine.LoadSourcemapFile(flagSourcemap)
	} else {
		_, err = engine.LoadSourcemap()
	}
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// resolveWorkspaceRoot returns the absolute workspace root from --root or
// by searching upward from the working directory.
func resolveWorkspaceRoot() (string, error) {
	if flagRoot != "" {
		abs, err := filepath.Abs(flagRoot)
		if err != nil {
			return "", fmt.Errorf("resolving path %q: %w", flagRoot, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("directory not found: %s", abs)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("not a directory: %s", abs)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findWorkspaceRoot(cwd), nil
}

// workspaceMarkers identify a workspace root directory.
var workspaceMarkers = append(append([]string{}, settings.FileNames...), settings.DefaultSourcemapFile, ".git")

// findWorkspaceRoot walks up from startDir looking for a workspace marker.
// Returns the first directory containing one, or startDir if none is found.
func findWorkspaceRoot(startDir string) string {
	dir := startDir
	for {
		for _, marker := range workspaceMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
