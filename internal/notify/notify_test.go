package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chorebot/internal/eventbus"
	kit "chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []kit.ChatTarget
	err  error
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }
func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, to)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestNotifyDeliversAsDirectMessage(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{}
	s := New(Config{Workers: 1, RatePerSec: 100}, fa, nil, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	if err := s.Notify(ctx, 42, "do the dishes"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, func() bool { return fa.count() == 1 })

	fa.mu.Lock()
	to := fa.sent[0]
	fa.mu.Unlock()
	if to.ChatID != 42 {
		t.Fatalf("delivered to %d, want 42", to.ChatID)
	}
}

func TestSendWhenStopped(t *testing.T) {
	t.Parallel()

	s := New(Config{}, &fakeAdapter{}, nil, logx.Nop())
	if err := s.Send(kit.ChatTarget{ChatID: 1}, "x", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestDeliveryFailureIsRecordedAndPublished(t *testing.T) {
	t.Parallel()

	fa := &fakeAdapter{err: errors.New("blocked by user")}
	bus := eventbus.New()
	sub, unsub := bus.Subscribe(4)
	defer unsub()

	s := New(Config{Workers: 1, RatePerSec: 100}, fa, bus, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	if err := s.Notify(ctx, 7, "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case ev := <-sub:
		if ev.Type != eventbus.EventNotifyFailed {
			t.Fatalf("event type = %q", ev.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no failure event published")
	}

	waitFor(t, func() bool { return len(s.History()) == 1 })
	if h := s.History()[0]; h.Error == "" || h.ChatID != 7 {
		t.Fatalf("history = %+v", h)
	}
}
