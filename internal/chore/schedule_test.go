package chore

import (
	"errors"
	"testing"
	"time"
)

func TestTranslateWeekly(t *testing.T) {
	t.Parallel()
	tests := []struct {
		token string
		spec  string
	}{
		{"sunday", "0 9 * * 0"},
		{"Monday", "0 9 * * 1"},
		{"tuesday", "0 9 * * 2"},
		{"WEDNESDAY", "0 9 * * 3"},
		{"thursday", "0 9 * * 4"},
		{"friday", "0 9 * * 5"},
		{"saturday", "0 9 * * 6"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.token, func(t *testing.T) {
			got, err := Translate(tt.token, RepeatWeekly)
			if err != nil {
				t.Fatalf("Translate(%q, weekly) error: %v", tt.token, err)
			}
			if got.Kind != ScheduleCron {
				t.Fatalf("Kind = %v, want ScheduleCron", got.Kind)
			}
			if got.Spec != tt.spec {
				t.Fatalf("Spec = %q, want %q", got.Spec, tt.spec)
			}
		})
	}
}

func TestTranslateGatedKinds(t *testing.T) {
	t.Parallel()

	bw, err := Translate("friday", RepeatBiWeekly)
	if err != nil {
		t.Fatalf("Translate bi-weekly error: %v", err)
	}
	if bw.Kind != ScheduleBiWeekly || bw.Weekday != time.Friday || bw.Hour != DefaultFireHour {
		t.Fatalf("unexpected bi-weekly schedule: %+v", bw)
	}
	if bw.String() != TagBiWeekly {
		t.Fatalf("String() = %q, want placeholder tag", bw.String())
	}
	if bw.CronSpec() != "0 9 * * 5" {
		t.Fatalf("CronSpec() = %q, want weekly-equivalent spec", bw.CronSpec())
	}

	mo, err := Translate("tuesday", RepeatMonthly)
	if err != nil {
		t.Fatalf("Translate monthly error: %v", err)
	}
	if mo.Kind != ScheduleMonthlyFirstWeek || mo.Weekday != time.Tuesday {
		t.Fatalf("unexpected monthly schedule: %+v", mo)
	}
	if mo.String() != TagMonthlyFirstWeek {
		t.Fatalf("String() = %q, want placeholder tag", mo.String())
	}
}

func TestTranslateMonthlyDayOfMonth(t *testing.T) {
	t.Parallel()
	got, err := Translate("15", RepeatMonthly)
	if err != nil {
		t.Fatalf("Translate(15, monthly) error: %v", err)
	}
	if got.Kind != ScheduleCron || got.Spec != "0 9 15 * *" {
		t.Fatalf("unexpected schedule: %+v", got)
	}
}

func TestTranslateRawCronPassthrough(t *testing.T) {
	t.Parallel()
	got, err := Translate("30 18 * * 2", RepeatWeekly)
	if err != nil {
		t.Fatalf("Translate raw cron error: %v", err)
	}
	if got.Spec != "30 18 * * 2" {
		t.Fatalf("Spec = %q, want verbatim passthrough", got.Spec)
	}
}

func TestTranslateRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		token  string
		repeat Repeat
	}{
		{"unknown token", "someday", RepeatWeekly},
		{"numeric weekly", "15", RepeatWeekly},
		{"numeric bi-weekly", "3", RepeatBiWeekly},
		{"day of month out of range", "32", RepeatMonthly},
		{"empty", "", RepeatWeekly},
		{"six field cron", "0 9 * * * *", RepeatWeekly},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.token, tt.repeat)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Translate(%q, %s) = %v, want ValidationError", tt.token, tt.repeat, err)
			}
		})
	}
}

func TestTranslateAtCustomHour(t *testing.T) {
	t.Parallel()
	got, err := TranslateAt("monday", RepeatWeekly, 18)
	if err != nil {
		t.Fatalf("TranslateAt error: %v", err)
	}
	if got.Spec != "0 18 * * 1" {
		t.Fatalf("Spec = %q, want hour 18", got.Spec)
	}
	if _, err := TranslateAt("monday", RepeatWeekly, 24); err == nil {
		t.Fatal("expected error for out-of-range hour")
	}
}

func TestParseRepeat(t *testing.T) {
	t.Parallel()
	if r, err := ParseRepeat("Bi-Weekly"); err != nil || r != RepeatBiWeekly {
		t.Fatalf("ParseRepeat(Bi-Weekly) = %v, %v", r, err)
	}
	if r, err := ParseRepeat("biweekly"); err != nil || r != RepeatBiWeekly {
		t.Fatalf("ParseRepeat(biweekly) = %v, %v", r, err)
	}
	if _, err := ParseRepeat("daily"); err == nil {
		t.Fatal("expected error for unknown repeat")
	}
}

func TestParseScheduleStringLegacyPlaceholder(t *testing.T) {
	t.Parallel()
	_, err := parseScheduleString(TagBiWeekly, nil, nil)
	if !errors.Is(err, ErrLegacySchedule) {
		t.Fatalf("expected ErrLegacySchedule, got %v", err)
	}

	day := 4
	hour := 9
	got, err := parseScheduleString(TagMonthlyFirstWeek, &day, &hour)
	if err != nil {
		t.Fatalf("parseScheduleString error: %v", err)
	}
	if got.Kind != ScheduleMonthlyFirstWeek || got.Weekday != time.Thursday {
		t.Fatalf("unexpected schedule: %+v", got)
	}
}
