package telegram

import (
	"strings"
	"testing"

	"chorebot/internal/transport"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()

	got := splitText("hello", 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("aaaa aaaa\n", 20)
	chunks := splitText(in, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d has dangling newline: %q", i, c)
		}
	}
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "aaaa aaaa") {
		t.Fatal("content lost during split")
	}
}

func TestMarkupFromButtons(t *testing.T) {
	t.Parallel()

	if markupFromButtons(nil) != nil {
		t.Fatal("nil rows should yield nil markup")
	}
	rm := markupFromButtons([][]transport.Button{
		{{Text: "Dishes", Data: "delchore:1"}, {Text: "Trash", Data: "delchore:2"}},
		{{Text: "Cancel", Data: "delchore:cancel"}},
	})
	if rm == nil || len(rm.InlineKeyboard) != 2 {
		t.Fatalf("markup = %+v", rm)
	}
	if rm.InlineKeyboard[0][1].Data != "delchore:2" {
		t.Fatalf("button data = %q", rm.InlineKeyboard[0][1].Data)
	}
}
