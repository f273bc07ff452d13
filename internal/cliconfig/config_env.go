package cliconfig

import (
	"os"
	"time"
)

// EnvPrefix prefixes every environment variable read by the CLIs.
const EnvPrefix = "GROUPCAST_"

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// ApplyCoordinatorEnv applies GROUPCAST_* variables to cfg. They override
// file values but not explicitly set flags.
func ApplyCoordinatorEnv(cfg *CoordinatorConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setIntFromString("port", env("PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setInt64FromString("threshold", env("THRESHOLD"), &cfg.Threshold); err != nil {
		return err
	}
	if err := s.setIntFromString("capacity", env("CAPACITY"), &cfg.Capacity); err != nil {
		return err
	}
	s.setString("log-dir", env("LOG_DIR"), &cfg.LogDir)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("watch-config", env("WATCH_CONFIG"), &cfg.WatchConfig)

	durations := []struct {
		flag, name string
		dst        *time.Duration
	}{
		{"push-timeout", "PUSH_TIMEOUT", &cfg.PushTimeout},
		{"read-timeout", "READ_TIMEOUT", &cfg.ReadTimeout},
		{"sweep-interval", "SWEEP_INTERVAL", &cfg.SweepInterval},
		{"sweep-max-age", "SWEEP_MAX_AGE", &cfg.SweepMaxAge},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, env(d.name), d.dst); err != nil {
			return err
		}
	}
	return nil
}

// ApplyParticipantEnv applies GROUPCAST_* variables to cfg.
func ApplyParticipantEnv(cfg *ParticipantConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setIntFromString("id", env("PARTICIPANT_ID"), &cfg.ID); err != nil {
		return err
	}
	s.setString("log-path", env("PARTICIPANT_LOG"), &cfg.LogPath)
	s.setString("coordinator", env("COORDINATOR"), &cfg.Coordinator)
	s.setString("advertise-address", env("ADVERTISE_ADDRESS"), &cfg.AdvertiseAddress)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	return s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout)
}
