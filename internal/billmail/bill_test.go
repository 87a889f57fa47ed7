package billmail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"chorebot/internal/eventbus"
	"chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

func TestParseBillJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want Bill
	}{
		{
			name: "plain json",
			in:   `{"biller":"City Power","amount":"$84.20","due_date":"2026-09-15"}`,
			want: Bill{Biller: "City Power", Amount: "$84.20", DueDate: "2026-09-15"},
		},
		{
			name: "fenced json",
			in:   "```json\n{\"biller\":\"Water Co\",\"amount\":\"$12\",\"due_date\":\"soon\"}\n```",
			want: Bill{Biller: "Water Co", Amount: "$12", DueDate: "soon"},
		},
		{
			name: "bare fence",
			in:   "```\n{\"biller\":\"Gas\",\"amount\":\"$9\",\"due_date\":\"Oct 1\"}\n```",
			want: Bill{Biller: "Gas", Amount: "$9", DueDate: "Oct 1"},
		},
		{
			name: "missing fields default",
			in:   `{"biller":"ISP"}`,
			want: Bill{Biller: "ISP", Amount: NotFound, DueDate: NotFound},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBillJSON(tc.in)
			if err != nil {
				t.Fatalf("ParseBillJSON: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseBillJSONRejectsProse(t *testing.T) {
	t.Parallel()

	if _, err := ParseBillJSON("Sorry, I could not find a bill here."); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestBillFormat(t *testing.T) {
	t.Parallel()

	got := Bill{Biller: "City Power", Amount: "$84.20", DueDate: "2026-09-15"}.Format()
	for _, want := range []string{"City Power", "$84.20", "2026-09-15"} {
		if !strings.Contains(got, want) {
			t.Fatalf("format %q missing %q", got, want)
		}
	}
}

type fakeFetcher struct {
	mails []Mail
	err   error
}

func (f *fakeFetcher) FetchUnseen() ([]Mail, error) { return f.mails, f.err }

type fakeAnalyzer struct {
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, subject, body string) (Bill, error) {
	if f.err != nil {
		return Bill{}, f.err
	}
	return Bill{Biller: subject, Amount: "$1", DueDate: "tomorrow", Subject: subject}, nil
}

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }
func (f *fakeAdapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	return nil
}
func (f *fakeAdapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error { return nil }
func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func TestPollPostsAnalyzedBills(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{}
	bus := eventbus.New()
	sub, unsub := bus.Subscribe(4)
	defer unsub()

	p := NewPoller(Config{Chat: transport.ChatTarget{ChatID: -42}},
		&fakeFetcher{mails: []Mail{
			{Subject: "City Power", Body: "your bill"},
			{Subject: "Water Co", Body: "your bill"},
		}},
		&fakeAnalyzer{}, fa, bus, logx.Nop())

	p.Poll(context.Background())

	fa.mu.Lock()
	sent := append([]string(nil), fa.sent...)
	fa.mu.Unlock()
	if len(sent) != 2 {
		t.Fatalf("posted %d bills, want 2: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "City Power") {
		t.Fatalf("first post = %q", sent[0])
	}

	ev := <-sub
	if ev.Type != eventbus.EventBillReceived {
		t.Fatalf("event type = %q", ev.Type)
	}
	if b, ok := ev.Data.(Bill); !ok || b.Biller != "City Power" {
		t.Fatalf("event data = %+v", ev.Data)
	}
}

func TestPollSkipsFailedAnalysis(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{}
	p := NewPoller(Config{Chat: transport.ChatTarget{ChatID: -42}},
		&fakeFetcher{mails: []Mail{{Subject: "Spam"}}},
		&fakeAnalyzer{err: errors.New("no bill")}, fa, nil, logx.Nop())

	p.Poll(context.Background())

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.sent) != 0 {
		t.Fatalf("posted despite analysis failure: %v", fa.sent)
	}
}

func TestPollFetchErrorIsQuiet(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{}
	p := NewPoller(Config{Chat: transport.ChatTarget{ChatID: -42}},
		&fakeFetcher{err: errors.New("dial tcp: refused")},
		&fakeAnalyzer{}, fa, nil, logx.Nop())

	p.Poll(context.Background())

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.sent) != 0 {
		t.Fatalf("posted despite fetch failure: %v", fa.sent)
	}
}
