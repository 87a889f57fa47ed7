// Package router turns incoming chat updates into chore operations and
// replies. It owns the short-lived delete confirmations: an ambiguous
// /deletechore gets an inline keyboard whose selection window expires
// after a minute.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"chorebot/internal/board"
	"chorebot/internal/chore"
	"chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

const (
	deleteWindow     = 60 * time.Second
	maxDeleteButtons = 10
	callbackPrefix   = "delchore:"
)

type Config struct {
	QueueSize int
}

// StatusFunc contributes extra lines to /status output.
type StatusFunc func() []string

type Router struct {
	log     logx.Logger
	adapter transport.Adapter
	reg     *chore.Registry
	board   *board.Poster // nil when the board is disabled
	status  []StatusFunc

	updates chan transport.Update

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	pendMu  sync.Mutex
	pending map[int64]*pendingDelete // keyed by requester

	now func() time.Time
}

// pendingDelete is an open disambiguation prompt for one requester.
type pendingDelete struct {
	msg        transport.MessageRef
	candidates map[int64]chore.Reminder
	timer      *time.Timer
}

func New(cfg Config, adapter transport.Adapter, reg *chore.Registry, boardPoster *board.Poster, log logx.Logger) *Router {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:     log,
		adapter: adapter,
		reg:     reg,
		board:   boardPoster,
		updates: make(chan transport.Update, cfg.QueueSize),
		pending: map[int64]*pendingDelete{},
		now:     time.Now,
	}
}

// AddStatus registers an extra /status section. Not safe after Start.
func (r *Router) AddStatus(fn StatusFunc) {
	if fn != nil {
		r.status = append(r.status, fn)
	}
}

// Updates returns the channel the adapter should feed.
func (r *Router) Updates() chan<- transport.Update { return r.updates }

func (r *Router) Start(ctx context.Context) {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(runCtx)
}

func (r *Router) Stop() {
	r.runMu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	r.pendMu.Lock()
	for id, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, id)
	}
	r.pendMu.Unlock()
}

func (r *Router) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-r.updates:
			switch up.Kind {
			case transport.UpdateMessage:
				if up.Message != nil {
					r.handleMessage(ctx, up.Message)
				}
			case transport.UpdateCallback:
				if up.Callback != nil {
					r.handleCallback(ctx, up.Callback)
				}
			}
		}
	}
}

// Commands lists the menu entries for the platform command menu.
func (r *Router) Commands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "addchore", Description: "Add a recurring chore"},
		{Command: "chores", Description: "List all chores"},
		{Command: "deletechore", Description: "Delete a chore by name"},
		{Command: "trigger", Description: "Fire a chore reminder now"},
		{Command: "board", Description: "Post the weekly chore board"},
		{Command: "clearboard", Description: "Clear posted board messages"},
		{Command: "status", Description: "Show bot status"},
		{Command: "help", Description: "Show usage"},
	}
}

func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	cmd, args := splitCommand(m.Text)
	if cmd == "" {
		return
	}

	var reply string
	switch cmd {
	case "addchore":
		reply = r.cmdAddChore(ctx, m, args)
	case "chores":
		reply = r.cmdChores()
	case "deletechore":
		r.cmdDeleteChore(ctx, m, strings.Join(args, " "))
		return
	case "trigger":
		reply = r.cmdTrigger(ctx, args)
	case "board":
		reply = r.cmdBoard(ctx)
	case "clearboard":
		reply = r.cmdClearBoard(ctx, m.FromID)
	case "status":
		reply = r.cmdStatus()
	case "help", "start":
		reply = helpText
	default:
		return
	}

	r.reply(ctx, m, reply)
}

func (r *Router) reply(ctx context.Context, m *transport.Message, text string) {
	if text == "" {
		return
	}
	to := transport.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
	if _, err := r.adapter.SendText(ctx, to, text, nil); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat", m.ChatID), logx.Err(err))
	}
}

// splitCommand extracts a command name and its arguments from message
// text, tolerating the @botname suffix used in groups.
func splitCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name, fields[1:]
}

const helpText = `Chore bot commands:
/addchore <day> <weekly|bi-weekly|monthly> [for=<user id>|for=me] <message>
  day is a weekday name, or a day of month (1-31) for monthly chores.
/chores — list every chore with its schedule
/deletechore <name> — delete by (partial) name; ambiguous matches get buttons
/trigger <id> — send a chore reminder immediately
/board — post the weekly chore board
/clearboard — delete previously posted boards (admins)
/status — scheduler and presence status`

func (r *Router) cmdAddChore(ctx context.Context, m *transport.Message, args []string) string {
	if len(args) < 3 {
		return "Usage: /addchore <day> <weekly|bi-weekly|monthly> [for=<user id>] <message>"
	}

	day := args[0]
	repeat, err := chore.ParseRepeat(args[1])
	if err != nil {
		return "Unknown repeat " + strconv.Quote(args[1]) + "; use weekly, bi-weekly or monthly."
	}

	rest := args[2:]
	var user int64
	if v, ok := strings.CutPrefix(rest[0], "for="); ok {
		if v == "me" {
			user = m.FromID
		} else {
			user, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return "Bad assignee " + strconv.Quote(v) + "; use for=me or for=<user id>."
			}
		}
		rest = rest[1:]
	}
	message := strings.TrimSpace(strings.Join(rest, " "))

	rem, err := r.reg.Create(ctx, message, day, repeat, user, m.ChatID)
	if err != nil {
		var verr *chore.ValidationError
		if errors.As(err, &verr) {
			return "That didn't work: " + verr.Error()
		}
		r.log.Error("create failed", logx.Err(err))
		return "Could not save the chore, try again."
	}

	who := "nobody in particular"
	if rem.User != 0 {
		who = fmt.Sprintf("user %d", rem.User)
	}
	return fmt.Sprintf("Added chore %d: %q, %s, for %s.",
		rem.ID, rem.Message, chore.FormatSchedule(rem.Schedule), who)
}

func (r *Router) cmdChores() string {
	list := r.reg.List()
	if len(list) == 0 {
		return "No chores scheduled."
	}
	var b strings.Builder
	b.WriteString("Scheduled chores:\n")
	for _, rem := range list {
		fmt.Fprintf(&b, "• %d — %s (%s)", rem.ID, rem.Message, chore.FormatSchedule(rem.Schedule))
		if rem.User != 0 {
			fmt.Fprintf(&b, " → user %d", rem.User)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) cmdDeleteChore(ctx context.Context, m *transport.Message, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		r.reply(ctx, m, "Usage: /deletechore <part of the chore name>")
		return
	}

	out, err := r.reg.DeleteByFuzzy(ctx, query)
	if errors.Is(err, chore.ErrNotFound) {
		r.reply(ctx, m, "No chore matches "+strconv.Quote(query)+".")
		return
	}
	if err != nil {
		r.log.Error("delete failed", logx.String("query", query), logx.Err(err))
		r.reply(ctx, m, "Could not delete the chore, try again.")
		return
	}
	if out.Deleted != nil {
		r.reply(ctx, m, fmt.Sprintf("Deleted chore %d: %q.", out.Deleted.ID, out.Deleted.Message))
		return
	}

	r.promptDisambiguation(ctx, m, out.Candidates)
}

func (r *Router) promptDisambiguation(ctx context.Context, m *transport.Message, candidates []chore.Reminder) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) > maxDeleteButtons {
		candidates = candidates[:maxDeleteButtons]
	}

	rows := make([][]transport.Button, 0, len(candidates)+1)
	byID := make(map[int64]chore.Reminder, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
		rows = append(rows, []transport.Button{{
			Text: fmt.Sprintf("%s (%s)", c.Message, chore.FormatSchedule(c.Schedule)),
			Data: callbackPrefix + strconv.FormatInt(c.ID, 10),
		}})
	}
	rows = append(rows, []transport.Button{{Text: "Cancel", Data: callbackPrefix + "cancel"}})

	to := transport.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
	ref, err := r.adapter.SendText(ctx, to,
		"Several chores match. Which one should go?",
		&transport.SendOptions{Buttons: rows})
	if err != nil {
		r.log.Warn("disambiguation prompt failed", logx.Err(err))
		return
	}

	requester := m.FromID
	p := &pendingDelete{msg: ref, candidates: byID}
	p.timer = time.AfterFunc(deleteWindow, func() { r.expirePending(requester) })

	r.pendMu.Lock()
	if old := r.pending[requester]; old != nil {
		old.timer.Stop()
	}
	r.pending[requester] = p
	r.pendMu.Unlock()
}

func (r *Router) expirePending(requester int64) {
	r.pendMu.Lock()
	p := r.pending[requester]
	delete(r.pending, requester)
	r.pendMu.Unlock()
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.adapter.EditText(ctx, p.msg, "No selection made; nothing deleted.", nil); err != nil {
		r.log.Debug("expiry edit failed", logx.Err(err))
	}
}

func (r *Router) takePending(requester int64) *pendingDelete {
	r.pendMu.Lock()
	defer r.pendMu.Unlock()
	p := r.pending[requester]
	if p != nil {
		p.timer.Stop()
		delete(r.pending, requester)
	}
	return p
}

func (r *Router) handleCallback(ctx context.Context, cb *transport.Callback) {
	payload, ok := strings.CutPrefix(cb.Data, callbackPrefix)
	if !ok {
		return
	}

	p := r.takePending(cb.FromID)
	if p == nil {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "This prompt is not yours or has expired.")
		return
	}

	if payload == "cancel" {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Cancelled.")
		_ = r.adapter.EditText(ctx, p.msg, "Delete cancelled.", nil)
		return
	}

	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Bad selection.")
		return
	}
	if _, ok := p.candidates[id]; !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "That option is not on this prompt.")
		return
	}

	deleted, err := r.reg.DeleteByID(ctx, id)
	if err != nil {
		r.log.Error("confirmed delete failed", logx.Int64("id", id), logx.Err(err))
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Delete failed.")
		return
	}
	_ = r.adapter.AnswerCallback(ctx, cb.ID, "Deleted.")
	_ = r.adapter.EditText(ctx, p.msg,
		fmt.Sprintf("Deleted chore %d: %q.", deleted.ID, deleted.Message), nil)
}

func (r *Router) cmdTrigger(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /trigger <chore id>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Chore ids are numbers; see /chores."
	}
	switch err := r.reg.TriggerNow(ctx, id); {
	case err == nil:
		return fmt.Sprintf("Reminder %d sent.", id)
	case errors.Is(err, chore.ErrNotFound):
		return fmt.Sprintf("No chore with id %d.", id)
	case errors.Is(err, chore.ErrNoRecipient):
		return fmt.Sprintf("Chore %d has no assignee to remind.", id)
	default:
		r.log.Error("trigger failed", logx.Int64("id", id), logx.Err(err))
		return "Could not send the reminder."
	}
}

func (r *Router) cmdBoard(ctx context.Context) string {
	if r.board == nil {
		return "The chore board is not configured."
	}
	if err := r.board.Post(ctx); err != nil {
		r.log.Warn("manual board post failed", logx.Err(err))
		return "Could not post the board."
	}
	return ""
}

func (r *Router) cmdClearBoard(ctx context.Context, caller int64) string {
	if r.board == nil {
		return "The chore board is not configured."
	}
	if !r.reg.IsAuthorized(caller, "clearboard") {
		return "Only admins can clear the board."
	}
	n, err := r.board.Clear(ctx)
	if err != nil {
		r.log.Warn("board clear incomplete", logx.Int("deleted", n), logx.Err(err))
		return fmt.Sprintf("Cleared %d board message(s); some could not be deleted.", n)
	}
	return fmt.Sprintf("Cleared %d board message(s).", n)
}

func (r *Router) cmdStatus() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chores scheduled: %d\n", len(r.reg.List()))
	for _, fn := range r.status {
		for _, line := range fn() {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
