package chore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Reminder is the sole persisted entity: a recurring task with an optional
// assignee and a recurrence rule.
//
// ID is derived from the creation timestamp, unique across the active set
// and immutable. User 0 means unassigned: the reminder is stored and shown
// on the board but never produces a direct notification.
type Reminder struct {
	ID        int64
	Message   string
	Schedule  Schedule
	ChannelID int64
	User      int64
}

// reminderRecord is the wire form of a Reminder in the durable snapshot.
// Field names match the historical file format; scheduleDay/scheduleHour
// retain the weekday and hour for the placeholder kinds so they can be
// re-armed after a restart.
type reminderRecord struct {
	ID           int64  `json:"id"`
	Message      string `json:"message"`
	CronSchedule string `json:"cronSchedule"`
	ScheduleDay  *int   `json:"scheduleDay,omitempty"`
	ScheduleHour *int   `json:"scheduleHour,omitempty"`
	ChannelID    int64  `json:"channelId,omitempty"`
	User         int64  `json:"user,omitempty"`
}

func (r Reminder) MarshalJSON() ([]byte, error) {
	rec := reminderRecord{
		ID:           r.ID,
		Message:      r.Message,
		CronSchedule: r.Schedule.String(),
		ChannelID:    r.ChannelID,
		User:         r.User,
	}
	if r.Schedule.Kind != ScheduleCron {
		day := int(r.Schedule.Weekday)
		hour := r.Schedule.Hour
		rec.ScheduleDay = &day
		rec.ScheduleHour = &hour
	}
	return json.Marshal(rec)
}

func (r *Reminder) UnmarshalJSON(data []byte) error {
	var rec reminderRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.ID == 0 {
		return fmt.Errorf("%w: reminder without id", ErrCorruptState)
	}
	if rec.Message == "" {
		return fmt.Errorf("%w: reminder %d without message", ErrCorruptState, rec.ID)
	}
	sched, err := parseScheduleString(rec.CronSchedule, rec.ScheduleDay, rec.ScheduleHour)
	if err != nil {
		return fmt.Errorf("reminder %d: %w", rec.ID, err)
	}
	*r = Reminder{
		ID:        rec.ID,
		Message:   rec.Message,
		Schedule:  sched,
		ChannelID: rec.ChannelID,
		User:      rec.User,
	}
	return nil
}

// Notifier delivers a reminder text to a user. Implementations must be safe
// for concurrent use; delivery failures are the implementation's to report,
// the scheduler never retries or cancels on them.
type Notifier interface {
	Notify(ctx context.Context, user int64, text string) error
}

// Authorizer gates destructive operations such as clearing the chore board.
type Authorizer interface {
	IsAuthorized(callerID int64, op string) bool
}
