package chore

import (
	"testing"
	"time"
)

func TestFormatSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   Schedule
		want string
	}{
		{"weekly monday", Schedule{Kind: ScheduleCron, Spec: "0 9 * * 1"}, "Every Monday"},
		{"weekly saturday custom hour", Schedule{Kind: ScheduleCron, Spec: "0 18 * * 6"}, "Every Saturday"},
		{"monthly 15th", Schedule{Kind: ScheduleCron, Spec: "0 9 15 * *"}, "Every month on the 15th"},
		{"bi-weekly tag", Schedule{Kind: ScheduleBiWeekly, Weekday: time.Monday, Hour: 9}, TagBiWeekly},
		{"monthly tag", Schedule{Kind: ScheduleMonthlyFirstWeek, Weekday: time.Friday, Hour: 9}, TagMonthlyFirstWeek},
		{"wildcard minute", Schedule{Kind: ScheduleCron, Spec: "* 9 * * 1"}, "Custom Schedule"},
		{"every minute", Schedule{Kind: ScheduleCron, Spec: "* * * * *"}, "Custom Schedule"},
		{"dom and dow", Schedule{Kind: ScheduleCron, Spec: "0 9 15 * 1"}, "Custom Schedule"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSchedule(tt.in); got != tt.want {
				t.Fatalf("FormatSchedule(%+v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Every weekday round-trips through Translate and FormatSchedule.
func TestWeeklyFormatRoundTrip(t *testing.T) {
	t.Parallel()
	for _, day := range []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"} {
		s, err := Translate(day, RepeatWeekly)
		if err != nil {
			t.Fatalf("Translate(%q): %v", day, err)
		}
		if got, want := FormatSchedule(s), "Every "+day; got != want {
			t.Fatalf("FormatSchedule = %q, want %q", got, want)
		}
	}
}
