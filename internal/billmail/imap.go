package billmail

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	logx "chorebot/pkg/logx"
)

// Mail is one unseen message pulled from the mailbox.
type Mail struct {
	Subject string
	From    string
	Body    string
}

// Fetcher pulls unseen mail and marks it seen. One implementation speaks
// IMAP; tests substitute their own.
type Fetcher interface {
	FetchUnseen() ([]Mail, error)
}

type imapFetcher struct {
	host     string // host:port
	username string
	password string
	mailbox  string
	log      logx.Logger
}

func NewIMAPFetcher(host, username, password, mailbox string, log logx.Logger) Fetcher {
	if strings.TrimSpace(mailbox) == "" {
		mailbox = "INBOX"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &imapFetcher{host: host, username: username, password: password, mailbox: mailbox, log: log}
}

// FetchUnseen dials a fresh TLS session per poll: billing mail arrives a
// few times a month, a held-open IMAP connection buys nothing.
func (f *imapFetcher) FetchUnseen() ([]Mail, error) {
	c, err := imapclient.DialTLS(f.host, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", f.host, err)
	}
	defer func() { _ = c.Logout() }()

	if err := c.Login(f.username, f.password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(f.mailbox, false); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", f.mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier}}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() { done <- c.Fetch(seqset, items, messages) }()

	var out []Mail
	for msg := range messages {
		m := Mail{}
		if msg.Envelope != nil {
			m.Subject = msg.Envelope.Subject
			if len(msg.Envelope.From) > 0 {
				m.From = msg.Envelope.From[0].Address()
			}
		}
		if r := msg.GetBody(section); r != nil {
			b, err := io.ReadAll(r)
			if err != nil {
				f.log.Warn("imap body read failed", logx.String("subject", m.Subject), logx.Err(err))
			} else {
				m.Body = string(b)
			}
		}
		out = append(out, m)
	}
	if err := <-done; err != nil {
		return out, fmt.Errorf("imap fetch: %w", err)
	}

	// Mark everything we pulled as seen so the next poll starts clean.
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, op, []interface{}{imap.SeenFlag}, nil); err != nil {
		f.log.Warn("imap mark seen failed", logx.Err(err))
	}
	return out, nil
}
