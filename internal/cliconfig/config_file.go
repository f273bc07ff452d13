package cliconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/groupcast/internal/domain"
)

// CoordinatorFileConfig mirrors CoordinatorConfig but uses strings for
// durations to make TOML friendly.
type CoordinatorFileConfig struct {
	Port          int    `toml:"port"`
	Threshold     *int64 `toml:"threshold"`
	LogDir        string `toml:"log_dir"`
	StateDir      string `toml:"state_dir"`
	Capacity      int    `toml:"capacity"`
	PushTimeout   string `toml:"push_timeout"`
	ReadTimeout   string `toml:"read_timeout"`
	MetricsAddr   string `toml:"metrics_addr"`
	SweepInterval string `toml:"sweep_interval"`
	SweepMaxAge   string `toml:"sweep_max_age"`
	WatchConfig   *bool  `toml:"watch_config"`
	LogLevel      string `toml:"log_level"`
}

// ParticipantFileConfig mirrors ParticipantConfig for TOML files.
type ParticipantFileConfig struct {
	ID               *int   `toml:"id"`
	LogPath          string `toml:"log_path"`
	Coordinator      string `toml:"coordinator"`
	AdvertiseAddress string `toml:"advertise_address"`
	DialTimeout      string `toml:"dial_timeout"`
	LogLevel         string `toml:"log_level"`
}

// isTOML reports whether path should be parsed as TOML rather than the
// line-oriented legacy format.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadCoordinatorFile reads a coordinator config file. Files ending in
// .toml are TOML; anything else is the legacy two-line format holding the
// port and the threshold.
func LoadCoordinatorFile(path string) (CoordinatorFileConfig, error) {
	var fc CoordinatorFileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if isTOML(path) {
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
		}
		return fc, nil
	}

	lines, err := legacyLines(b, 2)
	if err != nil {
		return fc, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
	}
	if fc.Port, err = strconv.Atoi(lines[0]); err != nil {
		return fc, fmt.Errorf("%w: %s: port: %v", domain.ErrInvalidConfig, path, err)
	}
	threshold, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return fc, fmt.Errorf("%w: %s: threshold: %v", domain.ErrInvalidConfig, path, err)
	}
	fc.Threshold = &threshold
	return fc, nil
}

// LoadParticipantFile reads a participant config file. The legacy format has
// three lines: the participant id, the message log path and the coordinator
// as "host port".
func LoadParticipantFile(path string) (ParticipantFileConfig, error) {
	var fc ParticipantFileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if isTOML(path) {
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
		}
		return fc, nil
	}

	lines, err := legacyLines(b, 3)
	if err != nil {
		return fc, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, path, err)
	}
	id, err := strconv.Atoi(lines[0])
	if err != nil {
		return fc, fmt.Errorf("%w: %s: id: %v", domain.ErrInvalidConfig, path, err)
	}
	fc.ID = &id
	fc.LogPath = lines[1]

	host, port, ok := strings.Cut(lines[2], " ")
	if !ok {
		return fc, fmt.Errorf("%w: %s: coordinator line %q is not \"host port\"", domain.ErrInvalidConfig, path, lines[2])
	}
	fc.Coordinator = net.JoinHostPort(host, strings.TrimSpace(port))
	return fc, nil
}

// legacyLines returns the first n lines, trimmed.
func legacyLines(b []byte, n int) ([]string, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	lines := make([]string, 0, n)
	for len(lines) < n && sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < n {
		return nil, fmt.Errorf("want %d lines, got %d", n, len(lines))
	}
	return lines, nil
}

// LoadThreshold reads only the replay threshold from a coordinator config
// file. Used when the file changes at runtime.
func LoadThreshold(path string) (int64, error) {
	fc, err := LoadCoordinatorFile(path)
	if err != nil {
		return 0, err
	}
	if fc.Threshold == nil {
		return 0, fmt.Errorf("%w: %s: threshold not set", domain.ErrInvalidConfig, path)
	}
	if *fc.Threshold < 0 {
		return 0, fmt.Errorf("%w: %s: threshold must not be negative", domain.ErrInvalidConfig, path)
	}
	return *fc.Threshold, nil
}

// DefaultConfigPath returns ~/.groupcast/<name>.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath(name string) string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".groupcast", name+".toml")
	}
	return ""
}

// ApplyCoordinatorFile applies file values to cfg, skipping flags that were
// set explicitly.
func ApplyCoordinatorFile(cfg *CoordinatorConfig, fc CoordinatorFileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt64("threshold", fc.Threshold, &cfg.Threshold)
	s.setString("log-dir", fc.LogDir, &cfg.LogDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setInt("capacity", fc.Capacity, &cfg.Capacity)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("push-timeout", fc.PushTimeout, &cfg.PushTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sweep-interval", fc.SweepInterval, &cfg.SweepInterval); err != nil {
		return err
	}
	if err := s.setDuration("sweep-max-age", fc.SweepMaxAge, &cfg.SweepMaxAge); err != nil {
		return err
	}
	return nil
}

// ApplyParticipantFile applies file values to cfg, skipping flags that were
// set explicitly.
func ApplyParticipantFile(cfg *ParticipantConfig, fc ParticipantFileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if fc.ID != nil && !changed["id"] {
		cfg.ID = *fc.ID
	}
	s.setString("log-path", fc.LogPath, &cfg.LogPath)
	s.setString("coordinator", fc.Coordinator, &cfg.Coordinator)
	s.setString("advertise-address", fc.AdvertiseAddress, &cfg.AdvertiseAddress)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	return s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
