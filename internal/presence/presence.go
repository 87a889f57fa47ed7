// Package presence polls a Home Assistant entity and surfaces its state:
// state changes go to the event bus and, optionally, a chat announcement.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"chorebot/internal/chore"
	"chorebot/internal/eventbus"
	"chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

type Config struct {
	URL      string // Home Assistant base URL, no trailing slash needed
	Token    string // long-lived access token
	EntityID string
	Interval time.Duration // default 5m
	Announce transport.ChatTarget // zero ChatID disables announcements
}

// Change describes one observed state transition.
type Change struct {
	EntityID string
	From     string
	To       string
	At       time.Time
}

type Watcher struct {
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	adapter transport.Adapter
	http    *http.Client

	mu        sync.Mutex
	state     string
	changedAt time.Time
	lastErr   error
}

func NewWatcher(cfg Config, adapter transport.Adapter, bus eventbus.Bus, log logx.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		adapter: adapter,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Schedule arms the recurring poll on the engine's clock.
func (w *Watcher) Schedule(e *chore.Engine) error {
	return e.AddJob("presence poll", "@every "+w.cfg.Interval.String(), func(ctx context.Context) {
		w.Poll(ctx)
	})
}

// Poll fetches the entity state once and handles any transition.
func (w *Watcher) Poll(ctx context.Context) {
	state, err := w.fetchState(ctx)

	w.mu.Lock()
	prev := w.state
	w.lastErr = err
	if err == nil && state != prev {
		w.state = state
		w.changedAt = time.Now()
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Warn("presence poll failed", logx.String("entity", w.cfg.EntityID), logx.Err(err))
		return
	}
	if state == prev {
		return
	}

	w.log.Info("presence changed",
		logx.String("entity", w.cfg.EntityID),
		logx.String("from", prev), logx.String("to", state))
	if w.bus != nil {
		w.bus.Publish(eventbus.Event{
			Type: eventbus.EventPresenceChanged,
			Data: Change{EntityID: w.cfg.EntityID, From: prev, To: state, At: time.Now()},
		})
	}

	// First observation after startup is a baseline, not a transition.
	if prev == "" || w.cfg.Announce.ChatID == 0 {
		return
	}
	text := fmt.Sprintf("🏠 %s is now %s", entityLabel(w.cfg.EntityID), state)
	if _, err := w.adapter.SendText(ctx, w.cfg.Announce, text, nil); err != nil {
		w.log.Warn("presence announce failed", logx.Err(err))
	}
}

func (w *Watcher) fetchState(ctx context.Context) (string, error) {
	url := strings.TrimRight(w.cfg.URL, "/") + "/api/states/" + w.cfg.EntityID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("home assistant returned %d for %s", resp.StatusCode, w.cfg.EntityID)
	}

	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode state: %w", err)
	}
	if body.State == "" {
		return "", fmt.Errorf("entity %s has no state", w.cfg.EntityID)
	}
	return body.State, nil
}

// Status renders /status lines for the watched entity.
func (w *Watcher) Status() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lastErr != nil {
		return []string{fmt.Sprintf("Presence %s: unavailable (%v)", entityLabel(w.cfg.EntityID), w.lastErr)}
	}
	if w.state == "" {
		return []string{fmt.Sprintf("Presence %s: not polled yet", entityLabel(w.cfg.EntityID))}
	}
	line := fmt.Sprintf("Presence %s: %s", entityLabel(w.cfg.EntityID), w.state)
	if !w.changedAt.IsZero() {
		line += " (since " + w.changedAt.Format("Jan 2 15:04") + ")"
	}
	return []string{line}
}

// entityLabel strips the HA domain prefix: "person.alex" -> "alex".
func entityLabel(entity string) string {
	if i := strings.IndexByte(entity, '.'); i >= 0 && i+1 < len(entity) {
		return entity[i+1:]
	}
	return entity
}
