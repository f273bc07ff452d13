package coordinator

import "context"

// Plugin extends a Coordinator with optional behaviour.
// Plugins are initialized in registration order during Start and shut down
// in reverse order during Stop. A plugin that also implements EventHandler
// receives every coordinator event.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string
	// Initialize is called during Start. ctx is cancelled on Stop.
	// Returning an error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error
	// Shutdown releases plugin resources.
	Shutdown(ctx context.Context) error
}

// Controller is the part of a Coordinator exposed to plugins.
type Controller interface {
	Threshold() int64
	SetThreshold(seconds int64)
	Sessions() []Session
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	LogDir   string
	StateDir string
	Logger   Logger
	// Coordinator is the running instance.
	Coordinator Controller
}

// BasePlugin provides a name and no-op lifecycle methods for embedding.
type BasePlugin struct {
	name string
}

// NewBasePlugin returns a BasePlugin called name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (b BasePlugin) Name() string                                 { return b.name }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
