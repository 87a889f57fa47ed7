// Package board renders the weekly chore board and reposts it on a cron
// schedule, keeping one pinned-style board message per chat by clearing
// the previous posts first.
package board

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chorebot/internal/chore"
	"chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

// NameResolver maps a user id to a display name. The zero id (unassigned)
// is handled by the renderer itself.
type NameResolver func(user int64) string

type Config struct {
	Chat transport.ChatTarget
	Cron string
}

// Poster owns the board chat: it renders the grid, posts it, and can
// clear its previously posted messages.
type Poster struct {
	log     logx.Logger
	adapter transport.Adapter
	reg     *chore.Registry
	resolve NameResolver
	cfg     Config

	mu     sync.Mutex
	posted []transport.MessageRef
}

func NewPoster(cfg Config, adapter transport.Adapter, reg *chore.Registry, resolve NameResolver, log logx.Logger) *Poster {
	if resolve == nil {
		resolve = func(user int64) string { return fmt.Sprintf("user %d", user) }
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poster{log: log, adapter: adapter, reg: reg, resolve: resolve, cfg: cfg}
}

// Schedule arms the recurring board post on the engine's clock.
func (p *Poster) Schedule(e *chore.Engine) error {
	return e.AddJob("chore board", p.cfg.Cron, func(ctx context.Context) {
		if err := p.Post(ctx); err != nil {
			p.log.Warn("board post failed", logx.Err(err))
		}
	})
}

// Post renders the current board and sends it to the board chat.
func (p *Poster) Post(ctx context.Context) error {
	text := Render(p.reg.GroupByUserAndDay(), p.resolve)
	ref, err := p.adapter.SendText(ctx, p.cfg.Chat, text, nil)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.posted = append(p.posted, ref)
	if len(p.posted) > 50 {
		p.posted = p.posted[len(p.posted)-50:]
	}
	p.mu.Unlock()
	p.log.Info("board posted", logx.Int64("chat", p.cfg.Chat.ChatID))
	return nil
}

// Clear deletes the board messages this process has posted. Message
// deletion is best-effort; Telegram rejects deletes older than 48h.
func (p *Poster) Clear(ctx context.Context) (int, error) {
	p.mu.Lock()
	refs := p.posted
	p.posted = nil
	p.mu.Unlock()

	deleted := 0
	var firstErr error
	for _, ref := range refs {
		if err := p.adapter.DeleteMessage(ctx, ref); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}

var boardDays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// Render builds the weekly chore grid grouped by assignee then weekday.
func Render(groups map[int64]map[time.Weekday][]string, resolve NameResolver) string {
	var b strings.Builder
	b.WriteString("📋 Weekly chore board\n")

	if len(groups) == 0 {
		b.WriteString("\nNo chores scheduled. Enjoy the quiet.")
		return b.String()
	}

	users := make([]int64, 0, len(groups))
	for u := range groups {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	for _, u := range users {
		name := "Unassigned"
		if u != 0 {
			name = resolve(u)
		}
		fmt.Fprintf(&b, "\n%s\n", name)
		for _, day := range boardDays {
			msgs := groups[u][day]
			if len(msgs) == 0 {
				continue
			}
			sort.Strings(msgs)
			fmt.Fprintf(&b, "  %s: %s\n", day.String(), strings.Join(msgs, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
