package chore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "chorebot/pkg/logx"
)

func tempStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reminders.json")
	s, err := OpenFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	return s, path
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	s, _ := tempStore(t)
	got, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty set, got %d entries", len(got))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s, path := tempStore(t)

	r1 := Reminder{ID: 100, Message: "Take out trash", Schedule: Schedule{Kind: ScheduleCron, Spec: "0 9 * * 1"}, User: 42, ChannelID: 7}
	r2 := Reminder{ID: 101, Message: "Water plants", Schedule: Schedule{Kind: ScheduleBiWeekly, Weekday: time.Friday, Hour: 9}, User: 43}

	if err := s.Append(r1); err != nil {
		t.Fatalf("Append r1: %v", err)
	}
	if err := s.Append(r2); err != nil {
		t.Fatalf("Append r2: %v", err)
	}

	// A fresh store over the same file sees both, including the retained
	// weekday of the bi-weekly entry.
	fresh, err := OpenFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := fresh.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(got))
	}
	if got[1].Schedule.Kind != ScheduleBiWeekly || got[1].Schedule.Weekday != time.Friday {
		t.Fatalf("bi-weekly weekday not retained: %+v", got[1].Schedule)
	}

	if err := fresh.RemoveByID(100); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	got, err = fresh.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll after remove: %v", err)
	}
	if len(got) != 1 || got[0].ID != 101 {
		t.Fatalf("expected only reminder 101, got %+v", got)
	}
}

func TestFileStoreRemoveUnknownID(t *testing.T) {
	t.Parallel()
	s, _ := tempStore(t)
	if err := s.RemoveByID(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveByID(999) = %v, want ErrNotFound", err)
	}
}

func TestFileStoreDuplicateID(t *testing.T) {
	t.Parallel()
	s, _ := tempStore(t)
	r := Reminder{ID: 5, Message: "x", Schedule: Schedule{Kind: ScheduleCron, Spec: "0 9 * * 1"}}
	if err := s.Append(r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(r); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reminders.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	s, err := OpenFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if _, err := s.LoadAll(); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("LoadAll = %v, want ErrCorruptState", err)
	}
}

func TestFileStoreDropsLegacyPlaceholderEntries(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reminders.json")
	// Old snapshots stored the placeholder tag with no weekday; such an
	// entry cannot be re-armed and is dropped on load.
	blob := `[
		{"id": 1, "message": "Mop floors", "cronSchedule": "Custom Bi-Weekly Schedule"},
		{"id": 2, "message": "Vacuum", "cronSchedule": "0 9 * * 3", "user": 9}
	]`
	if err := os.WriteFile(path, []byte(blob), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	s, err := OpenFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	got, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only the weekly entry to survive, got %+v", got)
	}
}
