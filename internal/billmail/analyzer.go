package billmail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	logx "chorebot/pkg/logx"
)

const (
	defaultModel = "gemini-2.0-flash"
	maxBodyRunes = 8000
)

// Analyzer extracts bill details from an email.
type Analyzer interface {
	Analyze(ctx context.Context, subject, body string) (Bill, error)
}

type geminiAnalyzer struct {
	client *genai.Client
	model  string
	log    logx.Logger
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, log logx.Logger) (Analyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiAnalyzer{client: client, model: model, log: log}, nil
}

const promptTemplate = `You are reading a billing email. Extract the biller name, the amount due and the due date.
Reply with ONLY a JSON object of this exact shape, no prose:
{"biller": "...", "amount": "...", "due_date": "..."}
Use the literal string "Not Found" for anything the email does not state.

Subject: %s

Body:
%s`

func (g *geminiAnalyzer) Analyze(ctx context.Context, subject, body string) (Bill, error) {
	body = clampRunes(body, maxBodyRunes)
	prompt := fmt.Sprintf(promptTemplate, subject, body)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return Bill{}, fmt.Errorf("gemini call: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Bill{}, errors.New("gemini returned no text")
	}

	bill, err := ParseBillJSON(text)
	if err != nil {
		g.log.Warn("unparseable bill reply", logx.String("subject", subject), logx.Err(err))
		return Bill{}, err
	}
	bill.Subject = subject
	return bill, nil
}

func clampRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
