package chore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chorebot/internal/eventbus"
	logx "chorebot/pkg/logx"
)

// Registry is the public surface for reminders: create, list, delete (by
// fuzzy match or by id) and manual trigger. It owns the in-memory reminder
// set; after every acknowledged mutation the set equals the durable
// snapshot, and every reminder in it has exactly one armed engine entry.
//
// All mutating paths are serialized on a single mutex, so a concurrent
// create+delete can never lose an update.
type Registry struct {
	mu sync.Mutex

	log    logx.Logger
	bus    eventbus.Bus
	store  Store
	engine *Engine
	auth   Authorizer

	fireHour  int
	reminders []Reminder
	lastID    int64
}

func NewRegistry(store Store, engine *Engine, bus eventbus.Bus, auth Authorizer, fireHour int, log logx.Logger) *Registry {
	if fireHour < 0 || fireHour > 23 {
		fireHour = DefaultFireHour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		log:      log,
		bus:      bus,
		store:    store,
		engine:   engine,
		auth:     auth,
		fireHour: fireHour,
	}
}

// Load reads the durable snapshot and arms every entry. It must complete
// before any external trigger is accepted. A corrupt snapshot is reported
// loudly and the registry starts empty instead of crashing.
func (g *Registry) Load(ctx context.Context) error {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()

	loaded, err := g.store.LoadAll()
	if errors.Is(err, ErrCorruptState) {
		g.log.Error("reminder snapshot is corrupt; starting with zero reminders", logx.Err(err))
		if g.bus != nil {
			g.bus.Publish(eventbus.Event{Type: eventbus.EventStoreCorrupt, Data: err.Error()})
		}
		g.reminders = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}

	g.reminders = g.reminders[:0]
	for _, r := range loaded {
		if err := g.engine.Register(r); err != nil {
			g.log.Error("failed to re-arm persisted reminder; dropping it from the active set",
				logx.Int64("id", r.ID), logx.Err(err))
			continue
		}
		g.reminders = append(g.reminders, r)
		if r.ID > g.lastID {
			g.lastID = r.ID
		}
	}
	g.log.Info("reminders loaded", logx.Int("count", len(g.reminders)))
	return nil
}

// Create validates, persists and arms a new reminder. On validation failure
// nothing is created; on persistence failure the in-memory set and the
// engine are left untouched.
func (g *Registry) Create(ctx context.Context, message, dayToken string, repeat Repeat, user, channelID int64) (Reminder, error) {
	_ = ctx
	message = strings.TrimSpace(message)
	if message == "" {
		return Reminder{}, invalidf("message", "message is required")
	}

	sched, err := TranslateAt(dayToken, repeat, g.fireHour)
	if err != nil {
		return Reminder{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r := Reminder{
		ID:        g.nextIDLocked(),
		Message:   message,
		Schedule:  sched,
		ChannelID: channelID,
		User:      user,
	}

	if err := g.store.Append(r); err != nil {
		return Reminder{}, fmt.Errorf("persist reminder: %w", err)
	}
	if err := g.engine.Register(r); err != nil {
		// Keep store and memory in lockstep: undo the write.
		if rbErr := g.store.RemoveByID(r.ID); rbErr != nil {
			g.log.Error("rollback of unarmable reminder failed", logx.Int64("id", r.ID), logx.Err(rbErr))
		}
		return Reminder{}, err
	}
	g.reminders = append(g.reminders, r)

	g.log.Info("reminder created",
		logx.Int64("id", r.ID),
		logx.String("schedule", FormatSchedule(r.Schedule)),
		logx.Int64("user", r.User))
	if g.bus != nil {
		g.bus.Publish(eventbus.Event{Type: eventbus.EventReminderCreated, Data: r})
	}
	return r, nil
}

// nextIDLocked derives a fresh id from the creation timestamp, bumped past
// the last issued id so two creations in the same millisecond stay unique.
func (g *Registry) nextIDLocked() int64 {
	id := time.Now().UnixMilli()
	if id <= g.lastID {
		id = g.lastID + 1
	}
	g.lastID = id
	return id
}

// List returns the active set ordered by id.
func (g *Registry) List() []Reminder {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Reminder, len(g.reminders))
	copy(out, g.reminders)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupByUserAndDay aggregates reminder messages per assignee and weekday
// for board display. Reminders without a weekday (monthly day-of-month
// schedules) are not part of the weekly grid.
func (g *Registry) GroupByUserAndDay() map[int64]map[time.Weekday][]string {
	out := map[int64]map[time.Weekday][]string{}
	for _, r := range g.List() {
		wd, ok := r.Schedule.weekday()
		if !ok {
			continue
		}
		byDay := out[r.User]
		if byDay == nil {
			byDay = map[time.Weekday][]string{}
			out[r.User] = byDay
		}
		byDay[wd] = append(byDay[wd], r.Message)
	}
	return out
}

// weekday reports the weekday a schedule is pinned to, if any.
func (s Schedule) weekday() (time.Weekday, bool) {
	if s.Kind != ScheduleCron {
		return s.Weekday, true
	}
	fields := strings.Fields(s.Spec)
	if len(fields) != 5 {
		return 0, false
	}
	if fields[2] != "*" || fields[4] == "*" || !isNumeric(fields[4]) {
		return 0, false
	}
	n := int(fields[4][0] - '0')
	if len(fields[4]) != 1 || n > 6 {
		return 0, false
	}
	return time.Weekday(n), true
}

// ProposeDelete returns the reminders whose message contains the substring,
// case-insensitively, without mutating anything. The caller drives
// disambiguation and confirms with DeleteByID within its own time window.
func (g *Registry) ProposeDelete(substring string) []Reminder {
	needle := strings.ToLower(strings.TrimSpace(substring))
	if needle == "" {
		return nil
	}
	var matches []Reminder
	for _, r := range g.List() {
		if strings.Contains(strings.ToLower(r.Message), needle) {
			matches = append(matches, r)
		}
	}
	return matches
}

// DeleteOutcome is the result of a fuzzy delete: either exactly one
// reminder was deleted, or multiple candidates need caller disambiguation.
type DeleteOutcome struct {
	Deleted    *Reminder
	Candidates []Reminder
}

// DeleteByFuzzy deletes the single reminder matching the substring. Zero
// matches return ErrNotFound; multiple matches return the candidate set and
// mutate nothing.
func (g *Registry) DeleteByFuzzy(ctx context.Context, substring string) (DeleteOutcome, error) {
	matches := g.ProposeDelete(substring)
	switch len(matches) {
	case 0:
		return DeleteOutcome{}, ErrNotFound
	case 1:
		deleted, err := g.DeleteByID(ctx, matches[0].ID)
		if err != nil {
			return DeleteOutcome{}, err
		}
		return DeleteOutcome{Deleted: &deleted}, nil
	default:
		return DeleteOutcome{Candidates: matches}, nil
	}
}

// DeleteByID removes the reminder from the store and disarms its timer,
// atomically from the caller's perspective.
func (g *Registry) DeleteByID(ctx context.Context, id int64) (Reminder, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := -1
	for i, r := range g.reminders {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Reminder{}, ErrNotFound
	}

	if err := g.store.RemoveByID(id); err != nil {
		return Reminder{}, fmt.Errorf("unpersist reminder: %w", err)
	}
	deleted := g.reminders[idx]
	g.reminders = append(g.reminders[:idx], g.reminders[idx+1:]...)
	g.engine.Cancel(id)

	g.log.Info("reminder deleted", logx.Int64("id", id))
	if g.bus != nil {
		g.bus.Publish(eventbus.Event{Type: eventbus.EventReminderDeleted, Data: deleted})
	}
	return deleted, nil
}

// TriggerNow delegates to the engine.
func (g *Registry) TriggerNow(ctx context.Context, id int64) error {
	return g.engine.TriggerNow(ctx, id)
}

// IsAuthorized gates destructive operations through the configured
// authorizer. With no authorizer installed, everything destructive is
// denied.
func (g *Registry) IsAuthorized(callerID int64, op string) bool {
	if g.auth == nil {
		return false
	}
	return g.auth.IsAuthorized(callerID, op)
}
