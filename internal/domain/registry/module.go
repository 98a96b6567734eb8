package registry

import "go.uber.org/fx"

// Config carries the node id the registry stamps into every handle it
// mints, kept here (rather than reading it off some app-level config
// type directly) so this package stays free of an app→domain import.
type Config struct {
	Node uint8
}

// DefaultConfig is used when no Config is supplied to the graph.
var DefaultConfig = Config{Node: 1}

// Module provides the node-wide Registry singleton.
var Module = fx.Module("registry",
	fx.Provide(
		func(cfg Config) *Registry { return New(WithNode(cfg.Node)) },
	),
)
