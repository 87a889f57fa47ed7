package chore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chorebot/internal/eventbus"
	logx "chorebot/pkg/logx"
)

// Engine owns one active cron entry per registered reminder and fires the
// notifier at the right wall-clock moments. The entry table is explicit
// (id -> cron.EntryID), so cancellation and restart re-registration never
// depend on captured closures.
//
// Each cron entry runs on its own goroutine and the notifier is an async
// queue, so a slow delivery never blocks evaluation of other due entries.
type Engine struct {
	mu sync.Mutex

	log      logx.Logger
	bus      eventbus.Bus
	notifier Notifier
	loc      *time.Location
	parser   cron.Parser

	c       *cron.Cron
	runCtx  context.Context
	now     func() time.Time
	entries map[int64]cron.EntryID
	byID    map[int64]Reminder
}

func NewEngine(timezone string, notifier Notifier, bus eventbus.Bus, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		log:      log,
		bus:      bus,
		notifier: notifier,
		loc:      loadLocation(timezone, log),
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:      time.Now,
		entries:  map[int64]cron.EntryID{},
		byID:     map[int64]Reminder{},
	}
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c != nil {
		return
	}
	e.runCtx = ctx
	e.c = cron.New(cron.WithParser(e.parser), cron.WithLocation(e.loc))
	e.c.Start()
	e.log.Info("recurrence engine started", logx.String("tz", e.loc.String()))
}

func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	c := e.c
	e.c = nil
	e.entries = map[int64]cron.EntryID{}
	e.byID = map[int64]Reminder{}
	e.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	e.log.Info("recurrence engine stopped")
}

// Register arms a timer for the reminder. Registering an id again replaces
// its previous entry.
func (e *Engine) Register(r Reminder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c == nil {
		return errors.New("engine not started")
	}

	spec := r.Schedule.CronSpec()
	if _, err := e.parser.Parse(spec); err != nil {
		return invalidf("schedule", "unschedulable spec %q: %v", spec, err)
	}

	if old, ok := e.entries[r.ID]; ok {
		e.c.Remove(old)
	}

	id := r.ID
	entryID, err := e.c.AddFunc(spec, func() { e.evaluate(id) })
	if err != nil {
		return fmt.Errorf("arm reminder %d: %w", r.ID, err)
	}
	e.entries[r.ID] = entryID
	e.byID[r.ID] = r
	e.log.Debug("reminder armed",
		logx.Int64("id", r.ID),
		logx.String("spec", spec),
		logx.String("schedule", FormatSchedule(r.Schedule)))
	return nil
}

// Cancel stops and discards the reminder's timer. Cancelling an
// unregistered id is a no-op.
func (e *Engine) Cancel(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entryID, ok := e.entries[id]
	if !ok {
		return
	}
	if e.c != nil {
		e.c.Remove(entryID)
	}
	delete(e.entries, id)
	delete(e.byID, id)
}

// Len reports the number of armed reminders.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// AddJob registers a system cron job (board posts, polls) on the engine's
// clock. The spec accepts 5-field cron and @every descriptors.
func (e *Engine) AddJob(name, spec string, job func(ctx context.Context)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c == nil {
		return errors.New("engine not started")
	}
	_, err := e.c.AddFunc(spec, func() {
		e.mu.Lock()
		ctx := e.runCtx
		e.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}
	e.log.Debug("system job armed", logx.String("job", name), logx.String("spec", spec))
	return nil
}

// evaluate runs on every cron match of the reminder's armed spec and
// applies the date gate for the bi-weekly and monthly kinds.
func (e *Engine) evaluate(id int64) {
	e.mu.Lock()
	r, ok := e.byID[id]
	ctx := e.runCtx
	now := e.now().In(e.loc)
	e.mu.Unlock()
	if !ok || ctx == nil {
		return
	}

	switch r.Schedule.Kind {
	case ScheduleBiWeekly:
		if !biWeeklyDue(now) {
			return
		}
	case ScheduleMonthlyFirstWeek:
		if !monthlyFirstWeekDue(now) {
			return
		}
	}
	e.fire(ctx, r)
}

// biWeeklyDue gates bi-weekly reminders to even weeks of the month. The
// cadence this produces is approximate, not an exact 14-day period.
func biWeeklyDue(t time.Time) bool {
	return (t.Day()/7)%2 == 0
}

// monthlyFirstWeekDue gates monthly reminders to the first occurrence of
// the armed weekday, approximated as "within the first 7 days".
func monthlyFirstWeekDue(t time.Time) bool {
	return t.Day() <= 7
}

func (e *Engine) fire(ctx context.Context, r Reminder) {
	if r.User == 0 {
		// Unassigned reminders only appear on the board.
		e.log.Debug("reminder due but unassigned", logx.Int64("id", r.ID))
		return
	}
	err := e.notifier.Notify(ctx, r.User, fireText(r))
	if err != nil {
		// Delivery failures never cancel the timer; the next occurrence
		// proceeds normally.
		e.log.Warn("reminder notification failed",
			logx.Int64("id", r.ID), logx.Int64("user", r.User), logx.Err(err))
		if e.bus != nil {
			e.bus.Publish(eventbus.Event{Type: eventbus.EventNotifyFailed, Data: r.ID})
		}
		return
	}
	e.log.Info("reminder fired", logx.Int64("id", r.ID), logx.Int64("user", r.User))
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: eventbus.EventReminderFired, Data: r.ID})
	}
}

// TriggerNow bypasses timing entirely and notifies immediately.
func (e *Engine) TriggerNow(ctx context.Context, id int64) error {
	e.mu.Lock()
	r, ok := e.byID[id]
	e.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if r.User == 0 {
		return ErrNoRecipient
	}
	if err := e.notifier.Notify(ctx, r.User, manualText(r)); err != nil {
		return fmt.Errorf("trigger reminder %d: %w", id, err)
	}
	e.log.Info("reminder triggered manually", logx.Int64("id", id), logx.Int64("user", r.User))
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: eventbus.EventReminderFired, Data: id})
	}
	return nil
}

func fireText(r Reminder) string {
	return "🔔 Chore reminder!\n\nYou have the following task assigned today:\n" + r.Message
}

func manualText(r Reminder) string {
	return "🔔 Manual chore reminder!\n\nYou have the following task assigned today:\n" + r.Message
}
