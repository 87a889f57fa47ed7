package billmail

import (
	"context"
	"time"

	"chorebot/internal/chore"
	"chorebot/internal/eventbus"
	"chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

type Config struct {
	Interval time.Duration // default 30m
	Chat     transport.ChatTarget
}

// Poller glues the fetcher and the analyzer: every interval it pulls
// unseen mail, analyzes each message and posts the result.
type Poller struct {
	cfg      Config
	log      logx.Logger
	fetcher  Fetcher
	analyzer Analyzer
	adapter  transport.Adapter
	bus      eventbus.Bus
}

func NewPoller(cfg Config, fetcher Fetcher, analyzer Analyzer, adapter transport.Adapter, bus eventbus.Bus, log logx.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{cfg: cfg, log: log, fetcher: fetcher, analyzer: analyzer, adapter: adapter, bus: bus}
}

// Schedule arms the recurring mailbox poll on the engine's clock.
func (p *Poller) Schedule(e *chore.Engine) error {
	return e.AddJob("bill mailbox poll", "@every "+p.cfg.Interval.String(), func(ctx context.Context) {
		p.Poll(ctx)
	})
}

// Poll runs one fetch-analyze-post round. A failure on one message does
// not stop the rest; unparseable mail is logged and skipped.
func (p *Poller) Poll(ctx context.Context) {
	mails, err := p.fetcher.FetchUnseen()
	if err != nil {
		p.log.Warn("mailbox poll failed", logx.Err(err))
		return
	}
	if len(mails) == 0 {
		return
	}
	p.log.Info("unseen mail fetched", logx.Int("count", len(mails)))

	for _, m := range mails {
		if ctx.Err() != nil {
			return
		}
		bill, err := p.analyzer.Analyze(ctx, m.Subject, m.Body)
		if err != nil {
			p.log.Warn("bill analysis failed", logx.String("subject", m.Subject), logx.Err(err))
			continue
		}
		if p.bus != nil {
			p.bus.Publish(eventbus.Event{Type: eventbus.EventBillReceived, Data: bill})
		}
		if p.cfg.Chat.ChatID == 0 {
			continue
		}
		if _, err := p.adapter.SendText(ctx, p.cfg.Chat, bill.Format(), nil); err != nil {
			p.log.Warn("bill post failed", logx.String("subject", m.Subject), logx.Err(err))
		}
	}
}
