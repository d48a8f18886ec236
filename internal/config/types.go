package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Time controls how stored UTC instants are rendered for people.
	Time TimeConfig `json:"time"`

	Dispatcher DispatcherConfig `json:"dispatcher"`
	Notifier   *NotifierConfig  `json:"notifier,omitempty"`
	Storage    *StorageConfig   `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// OperatorChat receives post-claim delivery failures. Zero disables it.
	OperatorChat int64 `json:"operator_chat,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TimeConfig is presentation only: changing the timezone never rewrites
// stored trigger instants, it only changes how they are shown.
type TimeConfig struct {
	// DisplayTimezone is an IANA zone name (e.g. "Africa/Lagos").
	// Empty means UTC.
	DisplayTimezone string `json:"display_timezone,omitempty"`
}

// DispatcherConfig controls the trigger polling loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "5s"
//   - workers: 2
//   - queue_size: 256
type DispatcherConfig struct {
	Enabled      bool   `json:"enabled"`
	PollInterval string `json:"poll_interval,omitempty"`
	Workers      int    `json:"workers,omitempty"`
	QueueSize    int    `json:"queue_size,omitempty"`
}

// NotifierConfig controls outgoing message pacing. If the whole section is
// omitted, the notifier uses its built-in defaults.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec"`
}

// StorageConfig selects the reminder store backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./reminders.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
