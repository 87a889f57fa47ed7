// Package billmail watches a mailbox for utility bills, extracts the
// amount and due date with Gemini, and posts a summary to a chat.
package billmail

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NotFound is the sentinel the analyzer uses for fields it could not
// extract from the email.
const NotFound = "Not Found"

// Bill is the structured result of analyzing one billing email.
type Bill struct {
	Biller  string `json:"biller"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date"`
	Subject string `json:"-"`
}

// ParseBillJSON decodes the model's JSON reply. Models often wrap JSON in
// markdown code fences; those are stripped first. Missing fields default
// to NotFound rather than failing.
func ParseBillJSON(raw string) (Bill, error) {
	s := strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	s = strings.TrimSpace(s)

	var b Bill
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return Bill{}, fmt.Errorf("bill reply is not JSON: %w", err)
	}
	if strings.TrimSpace(b.Biller) == "" {
		b.Biller = NotFound
	}
	if strings.TrimSpace(b.Amount) == "" {
		b.Amount = NotFound
	}
	if strings.TrimSpace(b.DueDate) == "" {
		b.DueDate = NotFound
	}
	return b, nil
}

// Format renders the chat line for an analyzed bill.
func (b Bill) Format() string {
	return fmt.Sprintf("💸 New bill from %s\nAmount: %s\nDue: %s", b.Biller, b.Amount, b.DueDate)
}
