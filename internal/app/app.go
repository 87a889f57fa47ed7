// Package app wires the whole bot together: config, logging, transport,
// the reminder registry and its scheduler, and the optional board,
// presence and bill-mail subsystems.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chorebot/internal/billmail"
	"chorebot/internal/board"
	"chorebot/internal/chore"
	"chorebot/internal/config"
	"chorebot/internal/eventbus"
	"chorebot/internal/notify"
	"chorebot/internal/presence"
	"chorebot/internal/router"
	"chorebot/internal/storage"
	"chorebot/internal/transport"
	"chorebot/internal/transport/telegram"
	logx "chorebot/pkg/logx"
)

type App struct {
	log    logx.Logger
	logSvc *logx.Service

	cfgm    *config.Manager
	adapter *telegram.Adapter
	bus     eventbus.Bus

	notifier *notify.Service
	engine   *chore.Engine
	store    *chore.FileStore
	registry *chore.Registry
	auth     *adminAuthorizer

	audit    storage.Store
	router   *router.Router
	board    *board.Poster
	presence *presence.Watcher
	bills    *billmail.Poller

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	cfgCh  chan *config.Config
	busCh  <-chan eventbus.Event
	unsub  func()
}

// New builds the full object graph from the config file. Nothing is
// started yet; Start arms it all.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logConfig(cfg), nil)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, _ := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}
	// The chat log sink delivers through the same bot.
	logSvc.SetSender(adapter)

	bus := eventbus.New()

	notifier := notify.New(notify.Config{
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		RatePerSec: cfg.Notify.RatePerSec,
	}, adapter, bus, log.With(logx.String("comp", "notify")))

	engine := chore.NewEngine(cfg.Timezone, notifier, bus, log.With(logx.String("comp", "engine")))

	store, err := chore.OpenFileStore(cfg.ReminderPath(), log.With(logx.String("comp", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open reminder store: %w", err)
	}

	auth := newAdminAuthorizer(cfg.Admins)
	registry := chore.NewRegistry(store, engine, bus, auth, cfg.FireHour(),
		log.With(logx.String("comp", "registry")))

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	audit, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "audit")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	a := &App{
		log:      log,
		logSvc:   logSvc,
		cfgm:     cfgm,
		adapter:  adapter,
		bus:      bus,
		notifier: notifier,
		engine:   engine,
		store:    store,
		registry: registry,
		auth:     auth,
		audit:    audit,
	}

	if cfg.Board.Enabled {
		a.board = board.NewPoster(board.Config{
			Chat: transport.ChatTarget{ChatID: cfg.Board.ChatID},
			Cron: cfg.BoardCron(),
		}, adapter, registry, nil, log.With(logx.String("comp", "board")))
	}

	a.router = router.New(router.Config{}, adapter, registry, a.board,
		log.With(logx.String("comp", "router")))

	if cfg.Presence.Enabled {
		interval, _ := config.ParseDurationField("presence.interval", cfg.Presence.Interval)
		a.presence = presence.NewWatcher(presence.Config{
			URL:      cfg.Presence.URL,
			Token:    cfg.Presence.Token,
			EntityID: cfg.Presence.EntityID,
			Interval: interval,
			Announce: transport.ChatTarget{ChatID: cfg.Presence.ChatID},
		}, adapter, bus, log.With(logx.String("comp", "presence")))
		a.router.AddStatus(a.presence.Status)
	}

	return a, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			ChatID:     cfg.Logging.Chat.ChatID,
			ThreadID:   cfg.Logging.Chat.ThreadID,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	cfg := a.cfgm.Get()

	a.notifier.Start(runCtx)
	a.engine.Start(runCtx)

	if err := a.registry.Load(runCtx); err != nil {
		cancel()
		a.cancel = nil
		return fmt.Errorf("load reminders: %w", err)
	}

	a.router.Start(runCtx)
	if err := a.adapter.Start(runCtx, a.router.Updates()); err != nil {
		cancel()
		a.cancel = nil
		return fmt.Errorf("start telegram: %w", err)
	}

	if a.board != nil {
		if err := a.board.Schedule(a.engine); err != nil {
			a.log.Warn("board schedule failed", logx.Err(err))
		}
	}
	if a.presence != nil {
		if err := a.presence.Schedule(a.engine); err != nil {
			a.log.Warn("presence schedule failed", logx.Err(err))
		}
		go a.presence.Poll(runCtx)
	}
	if cfg.BillMail.Enabled {
		if err := a.startBillMail(runCtx, cfg); err != nil {
			a.log.Warn("bill mail disabled", logx.Err(err))
		}
	}

	// Best-effort; Telegram remembers the menu across restarts anyway.
	go func() {
		mctx, mcancel := context.WithTimeout(runCtx, 15*time.Second)
		defer mcancel()
		if err := a.adapter.UpdateMenuCommands(mctx, a.router.Commands()); err != nil {
			a.log.Debug("menu update failed", logx.Err(err))
		}
	}()

	a.cfgCh = a.cfgm.Subscribe(2)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	a.wg.Add(1)
	go a.reloadLoop(runCtx)

	if a.audit != nil {
		a.busCh, a.unsub = a.bus.Subscribe(64)
		a.wg.Add(1)
		go a.auditLoop(runCtx)
	}

	a.log.Info("chorebot started",
		logx.Int("reminders", len(a.registry.List())),
		logx.Bool("board", a.board != nil),
		logx.Bool("presence", a.presence != nil),
		logx.Bool("billmail", a.bills != nil))
	return nil
}

func (a *App) startBillMail(ctx context.Context, cfg *config.Config) error {
	blog := a.log.With(logx.String("comp", "billmail"))
	analyzer, err := billmail.NewGeminiAnalyzer(ctx, cfg.BillMail.Gemini.APIKey, cfg.BillMail.Gemini.Model, blog)
	if err != nil {
		return err
	}
	fetcher := billmail.NewIMAPFetcher(cfg.BillMail.Host, cfg.BillMail.Username,
		cfg.BillMail.Password, cfg.BillMail.Mailbox, blog)

	interval, _ := config.ParseDurationField("billmail.interval", cfg.BillMail.Interval)
	a.bills = billmail.NewPoller(billmail.Config{
		Interval: interval,
		Chat:     transport.ChatTarget{ChatID: cfg.BillMail.ChatID},
	}, fetcher, analyzer, a.adapter, a.bus, blog)
	return a.bills.Schedule(a.engine)
}

// reloadLoop applies the hot-reloadable parts of a config change: log
// levels and sinks, notifier sizing, and the admin list. Structural
// changes (token, subsystem toggles) need a restart.
func (a *App) reloadLoop(ctx context.Context) {
	defer a.wg.Done()
	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok || cfg == nil {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			prev = cfg

			a.logSvc.Apply(logConfig(cfg))
			a.notifier.Apply(notify.Config{
				Workers:    cfg.Notify.Workers,
				QueueSize:  cfg.Notify.QueueSize,
				RatePerSec: cfg.Notify.RatePerSec,
			})
			a.auth.set(cfg.Admins)
			a.log.Info("config applied",
				append([]logx.Field{logx.Any("changed", changed)}, attrs...)...)
		}
	}
}

// auditLoop persists bus events as audit rows.
func (a *App) auditLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.busCh:
			if !ok {
				return
			}
			entry := storage.AuditEntry{At: ev.Time, Action: ev.Type}
			switch d := ev.Data.(type) {
			case int64:
				entry.ReminderID = d
			case chore.Reminder:
				entry.ReminderID = d.ID
				entry.Detail = d.Message
			case billmail.Bill:
				entry.Detail = d.Biller + " " + d.Amount
			case presence.Change:
				entry.Detail = d.EntityID + ": " + d.From + " -> " + d.To
			}
			wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
			if err := a.audit.AppendAudit(wctx, entry); err != nil {
				a.log.Warn("audit append failed", logx.String("action", ev.Type), logx.Err(err))
			}
			wcancel()
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	a.router.Stop()
	_ = a.adapter.Stop(ctx)
	a.engine.Stop(ctx)
	a.notifier.Stop(ctx)

	cancel()
	if a.unsub != nil {
		a.unsub()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.audit != nil {
		_ = a.audit.Close()
	}
	_ = a.store.Close()
	a.log.Info("chorebot stopped")
	return a.logSvc.Close()
}

// adminAuthorizer allows destructive commands for the configured admin
// ids. The set is swappable for config hot reload.
type adminAuthorizer struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func newAdminAuthorizer(ids []int64) *adminAuthorizer {
	a := &adminAuthorizer{}
	a.set(ids)
	return a
}

func (a *adminAuthorizer) set(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	a.mu.Lock()
	a.ids = m
	a.mu.Unlock()
}

func (a *adminAuthorizer) IsAuthorized(callerID int64, op string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.ids[callerID]
	return ok
}
