package cliconfig

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
)

// CoordinatorConfig holds CLI configuration for the coordinator.
type CoordinatorConfig struct {
	Port      int
	Threshold int64 // seconds
	LogDir    string
	StateDir  string
	Capacity  int

	PushTimeout time.Duration
	ReadTimeout time.Duration

	MetricsAddr   string
	SweepInterval time.Duration
	SweepMaxAge   time.Duration
	WatchConfig   bool

	LogLevel string
}

// DefaultCoordinatorConfig returns a CoordinatorConfig with default values.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Port:        5000,
		Threshold:   30,
		LogDir:      ".",
		StateDir:    "", // Derived from LogDir during Validate
		Capacity:    domain.MaxSessions,
		ReadTimeout: 10 * time.Second,
		SweepMaxAge: 24 * time.Hour,
		WatchConfig: true,
		LogLevel:    "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *CoordinatorConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative", domain.ErrInvalidConfig)
	}
	if c.LogDir == "" {
		return fmt.Errorf("%w: log-dir is required", domain.ErrInvalidConfig)
	}
	if c.StateDir == "" {
		c.StateDir = c.LogDir
	}
	if c.Capacity <= 0 {
		c.Capacity = domain.MaxSessions
	}
	if c.PushTimeout < 0 || c.ReadTimeout < 0 || c.SweepInterval < 0 || c.SweepMaxAge < 0 {
		return fmt.Errorf("%w: durations must not be negative", domain.ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ListenAddr returns the control-plane listen address.
func (c *CoordinatorConfig) ListenAddr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// ParticipantConfig holds CLI configuration for a participant.
type ParticipantConfig struct {
	ID int
	// LogPath is the file every received message is appended to.
	LogPath string
	// Coordinator is the control-plane address as host:port.
	Coordinator string
	// AdvertiseAddress is the host the coordinator dials for pushes.
	AdvertiseAddress string
	DialTimeout      time.Duration

	LogLevel string
}

// DefaultParticipantConfig returns a ParticipantConfig with default values.
func DefaultParticipantConfig() ParticipantConfig {
	return ParticipantConfig{
		ID:               -1,
		AdvertiseAddress: "127.0.0.1",
		DialTimeout:      5 * time.Second,
		LogLevel:         "warn",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *ParticipantConfig) Validate() error {
	if c.ID < 0 {
		return fmt.Errorf("%w: participant id is required", domain.ErrInvalidConfig)
	}
	if c.Coordinator == "" {
		return fmt.Errorf("%w: coordinator address is required", domain.ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(c.Coordinator); err != nil {
		return fmt.Errorf("%w: coordinator %q: %v", domain.ErrInvalidConfig, c.Coordinator, err)
	}
	if c.LogPath == "" {
		c.LogPath = fmt.Sprintf("participant%d.log", c.ID)
	}
	if c.AdvertiseAddress == "" {
		return fmt.Errorf("%w: advertise-address is required", domain.ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 from a pointer so an explicit zero is honoured.
func (s *configSetter) setInt64(flag string, value *int64, dst *int64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, flag, err)
	}
	*dst = i
	return nil
}

// setInt64FromString parses a string to int64 and sets the destination.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
