// Package notify implements the outbound delivery pipeline: a bounded
// queue drained by a small worker pool behind a token-bucket rate limit.
// Enqueueing never blocks, so scheduler fires are decoupled from slow or
// failing deliveries.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chorebot/internal/eventbus"
	kit "chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
}

type item struct {
	target kit.ChatTarget
	text   string
	opt    *kit.SendOptions
}

type HistoryItem struct {
	At     time.Time
	ChatID int64
	Error  string
}

type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	queue  chan item
	stopCh chan struct{}
	wg     sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, adapter: adapter, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	s.cfg = cfg
	// Burst = rate per sec so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan item, s.cfg.QueueSize)
	s.stopCh = make(chan struct{})
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}
	s.log.Info("notifier started", logx.Int("workers", workers))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.queue = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("notifier stopped")
}

// Notify sends a direct message to a user. Satisfies chore.Notifier: in
// Telegram terms a DM target is the user's own chat id.
func (s *Service) Notify(ctx context.Context, user int64, text string) error {
	_ = ctx
	return s.Send(kit.ChatTarget{ChatID: user}, text, nil)
}

// Send enqueues a message for delivery. It never blocks: a full queue
// returns ErrQueueFull and the message is dropped.
func (s *Service) Send(target kit.ChatTarget, text string, opt *kit.SendOptions) error {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return ErrStopped
	}
	select {
	case q <- item{target: target, text: text, opt: opt}:
		return nil
	default:
		s.log.Warn("notifier queue full, dropping message", logx.Int64("chat_id", target.ChatID))
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		s.mu.Lock()
		stop := s.stopCh
		q := s.queue
		s.mu.Unlock()
		if stop == nil || q == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case it := <-q:
			s.deliver(ctx, it)
		}
	}
}

func (s *Service) deliver(ctx context.Context, it item) {
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return
	}

	opt := it.opt
	if opt == nil {
		opt = &kit.SendOptions{DisablePreview: true}
	}
	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	_, err := s.adapter.SendText(sctx, it.target, it.text, opt)
	cancel()

	h := HistoryItem{At: time.Now(), ChatID: it.target.ChatID}
	if err != nil {
		h.Error = err.Error()
		s.log.Warn("delivery failed", logx.Int64("chat_id", it.target.ChatID), logx.Err(err))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.EventNotifyFailed, Data: it.target.ChatID})
		}
	} else {
		s.log.Debug("delivered", logx.Int64("chat_id", it.target.ChatID))
	}

	s.hmu.Lock()
	s.history = append(s.history, h)
	if len(s.history) > 300 {
		s.history = s.history[len(s.history)-300:]
	}
	s.hmu.Unlock()
}

// History returns a copy of the recent delivery records, newest last.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}
