package chore

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatSchedule renders a schedule as a human-readable phrase. Pure
// function, no side effects.
//
//   - Placeholder kinds render their tag verbatim.
//   - A weekly cron spec (fixed minute/hour, day-of-week set, the rest
//     wildcarded) renders as "Every <Weekday>".
//   - A monthly cron spec (day-of-month set, the rest wildcarded) renders as
//     "Every month on the <N>th".
//   - Anything else renders as "Custom Schedule".
func FormatSchedule(s Schedule) string {
	switch s.Kind {
	case ScheduleBiWeekly:
		return TagBiWeekly
	case ScheduleMonthlyFirstWeek:
		return TagMonthlyFirstWeek
	}

	fields := strings.Fields(s.Spec)
	if len(fields) != 5 {
		return "Custom Schedule"
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if isNumeric(minute) && isNumeric(hour) && dom == "*" && month == "*" && isNumeric(dow) {
		if n, err := strconv.Atoi(dow); err == nil && n >= 0 && n <= 6 {
			return "Every " + weekdayNames[n]
		}
	}
	if isNumeric(minute) && isNumeric(hour) && isNumeric(dom) && month == "*" && dow == "*" {
		return fmt.Sprintf("Every month on the %sth", dom)
	}
	return "Custom Schedule"
}

var weekdayNames = [...]string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
