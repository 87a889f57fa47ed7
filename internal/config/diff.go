package config

import (
	"reflect"
	"sort"
	"strings"

	logx "chorebot/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (tokens, passwords, API keys) are
// reported only as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}

	if oldCfg.Timezone != newCfg.Timezone ||
		!reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("timezone", newCfg.Timezone),
			logx.Int("reminders.fire_hour", newCfg.FireHour()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Board, newCfg.Board) {
		changed = append(changed, "board")
		attrs = append(attrs,
			logx.Bool("board.enabled", newCfg.Board.Enabled),
			logx.String("board.cron", newCfg.BoardCron()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.workers", newCfg.Notify.Workers),
			logx.Int("notify.queue_size", newCfg.Notify.QueueSize),
			logx.Int("notify.rate_per_sec", newCfg.Notify.RatePerSec),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.BillMail, newCfg.BillMail) {
		changed = append(changed, "billmail")
		attrs = append(attrs,
			logx.Bool("billmail.enabled", newCfg.BillMail.Enabled),
			logx.Bool("billmail.password_set", newCfg.BillMail.Password != ""),
			logx.Bool("billmail.gemini_key_set", newCfg.BillMail.Gemini.APIKey != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Presence, newCfg.Presence) {
		changed = append(changed, "presence")
		attrs = append(attrs,
			logx.Bool("presence.enabled", newCfg.Presence.Enabled),
			logx.String("presence.entity", newCfg.Presence.EntityID),
		)
	}

	if !reflect.DeepEqual(oldCfg.Admins, newCfg.Admins) {
		changed = append(changed, "admins")
		attrs = append(attrs, logx.Int("admins.count", len(newCfg.Admins)))
	}

	sort.Strings(changed)
	return changed, attrs
}
