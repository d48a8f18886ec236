package config

import (
	"fmt"
	"time"
)

// Validate checks everything that can be checked without touching the
// network: duration fields parse, the display timezone loads, the storage
// driver is one we know. It is the default hook for Manager.SetValidator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("dispatcher.poll_interval", cfg.Dispatcher.PollInterval); err != nil {
		return err
	}
	if cfg.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher.workers: must be >= 0")
	}
	if cfg.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("dispatcher.queue_size: must be >= 0")
	}
	if tz := cfg.Time.DisplayTimezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("time.display_timezone: unknown zone %q: %w", tz, err)
		}
	}
	if s := cfg.Storage; s != nil {
		switch s.Driver {
		case "", "memory", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if s.Driver == "sqlite" && s.Path == "" {
			return fmt.Errorf("storage.path: required for sqlite driver")
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}
	if n := cfg.Notifier; n != nil && n.RatePerSec < 0 {
		return fmt.Errorf("notifier.rate_per_sec: must be >= 0")
	}
	return nil
}
