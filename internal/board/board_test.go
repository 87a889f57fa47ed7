package board

import (
	"strings"
	"testing"
	"time"
)

func TestRenderEmpty(t *testing.T) {
	t.Parallel()

	out := Render(nil, nil)
	if !strings.Contains(out, "No chores scheduled") {
		t.Fatalf("out = %q", out)
	}
}

func TestRenderGroupsByUserThenDay(t *testing.T) {
	t.Parallel()

	groups := map[int64]map[time.Weekday][]string{
		7: {
			time.Monday: {"Trash", "Dishes"},
			time.Friday: {"Mop"},
		},
		0: {
			time.Sunday: {"Sweep"},
		},
	}
	resolve := func(user int64) string {
		if user == 7 {
			return "Alex"
		}
		return "?"
	}

	out := Render(groups, resolve)
	if !strings.Contains(out, "Alex") {
		t.Fatalf("missing resolved name: %q", out)
	}
	if !strings.Contains(out, "Unassigned") {
		t.Fatalf("missing unassigned section: %q", out)
	}
	if !strings.Contains(out, "Monday: Dishes, Trash") {
		t.Fatalf("missing sorted Monday line: %q", out)
	}
	// Unassigned sorts before real users.
	if strings.Index(out, "Unassigned") > strings.Index(out, "Alex") {
		t.Fatalf("section order wrong: %q", out)
	}
	if strings.Contains(out, "Tuesday") {
		t.Fatalf("empty day rendered: %q", out)
	}
}
