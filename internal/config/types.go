package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is chorebot's full configuration. YAML and JSON are both
// accepted; unknown fields are rejected.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`

	// Timezone is the single local timezone all schedules evaluate in
	// (IANA name, e.g. "America/Chicago"). Empty means the host's local
	// timezone.
	Timezone string `json:"timezone,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`
	Board     BoardConfig     `json:"board,omitempty"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	BillMail  BillMailConfig  `json:"billmail,omitempty"`
	Presence  PresenceConfig  `json:"presence,omitempty"`

	// Admins may run destructive commands such as clearing the board.
	Admins []int64 `json:"admins,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console,omitempty"`
	File    LogFileConfig     `json:"file,omitempty"`
	Chat    LogChatSinkConfig `json:"chat,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LogChatSinkConfig routes warnings and errors to a chat channel; this is
// the audit channel for scheduler and notifier failures.
type LogChatSinkConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type RemindersConfig struct {
	// Path of the durable reminder snapshot.
	Path string `json:"path,omitempty"`
	// FireHour is the local hour day-token schedules fire at (default 9).
	FireHour int `json:"fire_hour,omitempty"`
}

type BoardConfig struct {
	Enabled bool  `json:"enabled,omitempty"`
	ChatID  int64 `json:"chat_id,omitempty"`
	// Cron controls when the board is posted automatically
	// (default "0 9 * * 1", Monday 09:00).
	Cron string `json:"cron,omitempty"`
}

type NotifyConfig struct {
	Workers    int `json:"workers,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type BillMailConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Host     string `json:"host,omitempty"` // host:port, IMAP over TLS
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Mailbox  string `json:"mailbox,omitempty"`
	Interval string `json:"interval,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	Gemini   GeminiConfig `json:"gemini,omitempty"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model,omitempty"`
}

type PresenceConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	URL      string `json:"url,omitempty"` // Home Assistant base URL
	Token    string `json:"token,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Interval string `json:"interval,omitempty"`
	// ChatID, if set, receives a line whenever the state changes.
	ChatID int64 `json:"chat_id,omitempty"`
}

// Validate checks cross-field constraints that the strict decoder cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Reminders.FireHour < 0 || c.Reminders.FireHour > 23 {
		return fmt.Errorf("reminders.fire_hour %d is out of range", c.Reminders.FireHour)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if c.BillMail.Enabled {
		if c.BillMail.Host == "" || c.BillMail.Username == "" {
			return errors.New("billmail requires host and username")
		}
		if c.BillMail.Gemini.APIKey == "" {
			return errors.New("billmail requires gemini.api_key")
		}
		if _, err := ParseDurationField("billmail.interval", c.BillMail.Interval); err != nil {
			return err
		}
	}
	if c.Presence.Enabled {
		if c.Presence.URL == "" || c.Presence.EntityID == "" {
			return errors.New("presence requires url and entity_id")
		}
		if _, err := ParseDurationField("presence.interval", c.Presence.Interval); err != nil {
			return err
		}
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

// ReminderPath returns the snapshot path with its default applied.
func (c *Config) ReminderPath() string {
	if strings.TrimSpace(c.Reminders.Path) != "" {
		return c.Reminders.Path
	}
	return "./reminders.json"
}

// FireHour returns the configured fire hour with its default applied.
func (c *Config) FireHour() int {
	if c.Reminders.FireHour > 0 {
		return c.Reminders.FireHour
	}
	return 9
}

// BoardCron returns the board posting spec with its default applied.
func (c *Config) BoardCron() string {
	if strings.TrimSpace(c.Board.Cron) != "" {
		return c.Board.Cron
	}
	return "0 9 * * 1"
}
