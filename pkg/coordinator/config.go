package coordinator

import (
	"fmt"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
)

// Config holds the settings of an embedded coordinator.
type Config struct {
	// ListenAddr is the control-plane TCP address, e.g. ":5000".
	// Ignored when a listener is supplied with WithListener.
	ListenAddr string

	// Threshold is the replay window in seconds. Messages older than this
	// at reconnect time are not replayed. Zero replays only messages that
	// arrived in the same second as the reconnect.
	Threshold int64

	// LogDir holds the storage<ID>.txt offline logs. Default: ".".
	LogDir string

	// StateDir holds registry.json. Default: LogDir.
	StateDir string

	// Capacity is the maximum number of registered participants.
	// Default: 10.
	Capacity int

	// PushTimeout bounds one push to a participant. Zero means no limit.
	PushTimeout time.Duration

	// ReadTimeout bounds how long a control connection may take to send
	// its command. Zero means no limit.
	ReadTimeout time.Duration

	// DisablePersistence skips loading and saving registry.json.
	DisablePersistence bool
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.LogDir == "" {
		c.LogDir = "."
	}
	if c.StateDir == "" {
		c.StateDir = c.LogDir
	}
	if c.Capacity <= 0 {
		c.Capacity = domain.MaxSessions
	}
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidConfig)
	}
	if c.PushTimeout < 0 || c.ReadTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	}
	return nil
}
