package chore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Repeat is the user-facing recurrence frequency.
type Repeat string

const (
	RepeatWeekly   Repeat = "weekly"
	RepeatBiWeekly Repeat = "bi-weekly"
	RepeatMonthly  Repeat = "monthly"
)

// ParseRepeat normalizes a user-supplied frequency token.
func ParseRepeat(s string) (Repeat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return RepeatWeekly, nil
	case "bi-weekly", "biweekly":
		return RepeatBiWeekly, nil
	case "monthly":
		return RepeatMonthly, nil
	}
	return "", invalidf("repeat", "%q is not weekly, bi-weekly or monthly", s)
}

type ScheduleKind int

const (
	// ScheduleCron fires on every wall-clock match of a 5-field cron spec.
	ScheduleCron ScheduleKind = iota
	// ScheduleBiWeekly fires weekly on Weekday at Hour, gated to even weeks
	// of the month (dayOfMonth/7 even). This approximates a bi-weekly
	// cadence; it is not an exact 14-day period.
	ScheduleBiWeekly
	// ScheduleMonthlyFirstWeek fires weekly on Weekday at Hour, gated to
	// dayOfMonth <= 7, i.e. the first occurrence of that weekday in the
	// month.
	ScheduleMonthlyFirstWeek
)

// Historical placeholder tags. Older snapshots stored these opaque strings
// instead of a structured schedule; they render verbatim and are still
// recognized on load.
const (
	TagBiWeekly         = "Custom Bi-Weekly Schedule"
	TagMonthlyFirstWeek = "Custom Monthly Schedule"
)

// Schedule is the canonical recurrence descriptor. Cron schedules carry a
// 5-field spec; the two gated kinds carry the weekday and hour they were
// registered with so they survive restarts.
type Schedule struct {
	Kind    ScheduleKind
	Spec    string // ScheduleCron only
	Weekday time.Weekday
	Hour    int
}

// String returns the persisted form: the cron spec, or the placeholder tag
// for the gated kinds.
func (s Schedule) String() string {
	switch s.Kind {
	case ScheduleBiWeekly:
		return TagBiWeekly
	case ScheduleMonthlyFirstWeek:
		return TagMonthlyFirstWeek
	default:
		return s.Spec
	}
}

// CronSpec returns the 5-field spec the engine arms for this schedule. The
// gated kinds arm a weekly spec and apply their date gate at fire time.
func (s Schedule) CronSpec() string {
	if s.Kind == ScheduleCron {
		return s.Spec
	}
	return fmt.Sprintf("0 %d * * %d", s.Hour, int(s.Weekday))
}

// DefaultFireHour is the local hour reminders fire at when the config does
// not override it.
const DefaultFireHour = 9

var cronFieldRe = regexp.MustCompile(`^(\d+|\*)( (\d+|\*)){4}$`)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps a weekday name (case-insensitive) to its canonical
// index, Sunday=0.
func ParseWeekday(token string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(token))]
	return wd, ok
}

// Translate converts a user-supplied day token plus repeat frequency into a
// canonical schedule, firing at DefaultFireHour.
func Translate(dayToken string, repeat Repeat) (Schedule, error) {
	return TranslateAt(dayToken, repeat, DefaultFireHour)
}

// TranslateAt is Translate with an explicit fire hour.
//
// Accepted day tokens:
//   - a weekday name, for any repeat frequency
//   - a day-of-month number (1-31), for monthly only
//   - a raw 5-field cron expression, taken verbatim
func TranslateAt(dayToken string, repeat Repeat, hour int) (Schedule, error) {
	token := strings.ToLower(strings.TrimSpace(dayToken))
	if token == "" {
		return Schedule{}, invalidf("day", "day token is required")
	}
	if hour < 0 || hour > 23 {
		return Schedule{}, invalidf("hour", "%d is out of range", hour)
	}

	if wd, ok := ParseWeekday(token); ok {
		switch repeat {
		case RepeatWeekly:
			return Schedule{
				Kind: ScheduleCron,
				Spec: fmt.Sprintf("0 %d * * %d", hour, int(wd)),
			}, nil
		case RepeatBiWeekly:
			return Schedule{Kind: ScheduleBiWeekly, Weekday: wd, Hour: hour}, nil
		case RepeatMonthly:
			return Schedule{Kind: ScheduleMonthlyFirstWeek, Weekday: wd, Hour: hour}, nil
		}
		return Schedule{}, invalidf("repeat", "%q is not weekly, bi-weekly or monthly", repeat)
	}

	if dom, err := strconv.Atoi(token); err == nil {
		if repeat != RepeatMonthly {
			return Schedule{}, invalidf("day", "numeric day %d only makes sense with monthly repeat", dom)
		}
		if dom < 1 || dom > 31 {
			return Schedule{}, invalidf("day", "day of month %d is out of range", dom)
		}
		return Schedule{
			Kind: ScheduleCron,
			Spec: fmt.Sprintf("0 %d %d * *", hour, dom),
		}, nil
	}

	// Raw cron expression passthrough.
	if cronFieldRe.MatchString(token) {
		return Schedule{Kind: ScheduleCron, Spec: token}, nil
	}

	return Schedule{}, invalidf("day", "%q is not a weekday name, day of month or cron pattern", dayToken)
}

// parseScheduleString rebuilds a Schedule from its persisted string form.
// dayHint/hourHint carry the retained weekday and hour for placeholder tags;
// a placeholder without a day hint is a legacy entry that cannot be re-armed.
func parseScheduleString(raw string, dayHint, hourHint *int) (Schedule, error) {
	switch raw {
	case TagBiWeekly, TagMonthlyFirstWeek:
		if dayHint == nil {
			return Schedule{}, fmt.Errorf("%w: %q", ErrLegacySchedule, raw)
		}
		if *dayHint < 0 || *dayHint > 6 {
			return Schedule{}, fmt.Errorf("%w: weekday %d out of range", ErrCorruptState, *dayHint)
		}
		hour := DefaultFireHour
		if hourHint != nil {
			hour = *hourHint
		}
		if hour < 0 || hour > 23 {
			return Schedule{}, fmt.Errorf("%w: hour %d out of range", ErrCorruptState, hour)
		}
		kind := ScheduleBiWeekly
		if raw == TagMonthlyFirstWeek {
			kind = ScheduleMonthlyFirstWeek
		}
		return Schedule{Kind: kind, Weekday: time.Weekday(*dayHint), Hour: hour}, nil
	}
	if !cronFieldRe.MatchString(raw) {
		return Schedule{}, fmt.Errorf("%w: malformed schedule %q", ErrCorruptState, raw)
	}
	return Schedule{Kind: ScheduleCron, Spec: raw}, nil
}
