package router

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"chorebot/internal/chore"
	"chorebot/internal/eventbus"
	"chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

type sentMsg struct {
	to   transport.ChatTarget
	text string
	opt  *transport.SendOptions
}

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []sentMsg
	edits   []string
	answers []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{to: to, text: text, opt: opt})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeAdapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error { return nil }

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) lastSent(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type denyAll struct{}

func (denyAll) IsAuthorized(callerID int64, op string) bool { return false }

func newTestRouter(t *testing.T, auth chore.Authorizer) (*Router, *fakeAdapter, *chore.Registry) {
	t.Helper()
	log := logx.Nop()

	store, err := chore.OpenFileStore(filepath.Join(t.TempDir(), "reminders.json"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine := chore.NewEngine("UTC", nopNotifier{}, eventbus.New(), log)
	engine.Start(context.Background())
	t.Cleanup(func() { engine.Stop(context.Background()) })

	reg := chore.NewRegistry(store, engine, eventbus.New(), auth, 9, log)
	fa := &fakeAdapter{}
	r := New(Config{}, fa, reg, nil, log)
	return r, fa, reg
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, user int64, text string) error { return nil }

func msg(from int64, text string) *transport.Message {
	return &transport.Message{ChatID: -100, FromID: from, Text: text}
}

func TestAddChoreAndList(t *testing.T) {
	t.Parallel()
	r, fa, _ := newTestRouter(t, denyAll{})
	ctx := context.Background()

	r.handleMessage(ctx, msg(7, "/addchore Monday weekly for=me Take out the trash"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "Added chore") ||
		!strings.Contains(got, "Every Monday") || !strings.Contains(got, "user 7") {
		t.Fatalf("add reply = %q", got)
	}

	r.handleMessage(ctx, msg(7, "/chores"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "Take out the trash") {
		t.Fatalf("list reply = %q", got)
	}
}

func TestAddChoreRejectsBadInput(t *testing.T) {
	t.Parallel()
	r, fa, _ := newTestRouter(t, denyAll{})
	ctx := context.Background()

	r.handleMessage(ctx, msg(7, "/addchore Monday sometimes Trash"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "Unknown repeat") {
		t.Fatalf("reply = %q", got)
	}

	r.handleMessage(ctx, msg(7, "/addchore Funday weekly Trash"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "That didn't work") {
		t.Fatalf("reply = %q", got)
	}
}

func TestDeleteChoreUniqueMatch(t *testing.T) {
	t.Parallel()
	r, fa, reg := newTestRouter(t, denyAll{})
	ctx := context.Background()

	if _, err := reg.Create(ctx, "Water plants", "Tuesday", chore.RepeatWeekly, 0, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r.handleMessage(ctx, msg(7, "/deletechore water"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "Deleted chore") {
		t.Fatalf("reply = %q", got)
	}
	if len(reg.List()) != 0 {
		t.Fatal("chore not deleted")
	}
}

func TestDeleteChoreNoMatch(t *testing.T) {
	t.Parallel()
	r, fa, _ := newTestRouter(t, denyAll{})

	r.handleMessage(context.Background(), msg(7, "/deletechore nothing"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "No chore matches") {
		t.Fatalf("reply = %q", got)
	}
}

func TestDeleteChoreDisambiguation(t *testing.T) {
	t.Parallel()
	r, fa, reg := newTestRouter(t, denyAll{})
	ctx := context.Background()

	a, err := reg.Create(ctx, "Clean kitchen", "Monday", chore.RepeatWeekly, 0, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create(ctx, "Clean bathroom", "Friday", chore.RepeatWeekly, 0, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	r.handleMessage(ctx, msg(7, "/deletechore clean"))
	prompt := fa.lastSent(t)
	if !strings.Contains(prompt.text, "Several chores match") {
		t.Fatalf("prompt = %q", prompt.text)
	}
	if prompt.opt == nil || len(prompt.opt.Buttons) != 3 { // two candidates + cancel
		t.Fatalf("buttons = %+v", prompt.opt)
	}
	if len(reg.List()) != 2 {
		t.Fatal("ambiguous delete must not mutate")
	}

	// A stranger's press does not consume the prompt.
	r.handleCallback(ctx, &transport.Callback{ID: "cb1", FromID: 99, Data: prompt.opt.Buttons[0][0].Data})
	if len(reg.List()) != 2 {
		t.Fatal("stranger press deleted a chore")
	}

	data := "delchore:" + strconv.FormatInt(a.ID, 10)
	r.handleCallback(ctx, &transport.Callback{ID: "cb2", FromID: 7, Data: data})
	left := reg.List()
	if len(left) != 1 || left[0].Message != "Clean bathroom" {
		t.Fatalf("remaining = %+v", left)
	}

	// Window is single-use.
	r.handleCallback(ctx, &transport.Callback{ID: "cb3", FromID: 7, Data: data})
	fa.mu.Lock()
	last := fa.answers[len(fa.answers)-1]
	fa.mu.Unlock()
	if !strings.Contains(last, "expired") {
		t.Fatalf("second press answer = %q", last)
	}
}

func TestTriggerUnknownID(t *testing.T) {
	t.Parallel()
	r, fa, _ := newTestRouter(t, denyAll{})

	r.handleMessage(context.Background(), msg(7, "/trigger 12345"))
	if got := fa.lastSent(t).text; !strings.Contains(got, "No chore with id") {
		t.Fatalf("reply = %q", got)
	}
}

func TestClearBoardRequiresAdmin(t *testing.T) {
	t.Parallel()
	r, fa, _ := newTestRouter(t, denyAll{})

	r.handleMessage(context.Background(), msg(7, "/clearboard"))
	got := fa.lastSent(t).text
	if !strings.Contains(got, "not configured") && !strings.Contains(got, "Only admins") {
		t.Fatalf("reply = %q", got)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		cmd  string
		args int
	}{
		{"/chores", "chores", 0},
		{"/chores@chorebot", "chores", 0},
		{"/addchore Monday weekly Trash", "addchore", 3},
		{"hello", "", 0},
		{"/", "", 0},
	}
	for _, tc := range cases {
		cmd, args := splitCommand(tc.in)
		if cmd != tc.cmd || len(args) != tc.args {
			t.Fatalf("splitCommand(%q) = %q, %d args", tc.in, cmd, len(args))
		}
	}
}
