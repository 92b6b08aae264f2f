package instancemap

import (
	"github.com/jward/instancemap/internal/diag"
	"github.com/jward/instancemap/internal/luaurc"
	"github.com/jward/instancemap/internal/require"
	"github.com/jward/instancemap/internal/settings"
	"github.com/jward/instancemap/internal/source"
	"github.com/jward/instancemap/internal/sourcemap"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=), identical to the internal types at compile time.

type ModuleInfo = require.ModuleInfo
type Expr = require.Expr
type StringLit = require.StringLit
type Global = require.Global
type IndexName = require.IndexName
type IndexExpr = require.IndexExpr
type Call = require.Call
type Unsupported = require.Unsupported

type Source = source.Source
type Overlay = source.Overlay
type MapOverlay = source.MapOverlay
type ModuleKind = sourcemap.ModuleKind
type PluginNode = sourcemap.PluginNode

type Config = luaurc.Config
type ConfigError = luaurc.ParseError
type Diagnostic = diag.Diagnostic
type DiagnosticSink = diag.Sink

type Settings = settings.Settings
type SettingsProvider = settings.Provider

// Module kinds.
const (
	KindModule = sourcemap.KindModule
	KindScript = sourcemap.KindScript
)
