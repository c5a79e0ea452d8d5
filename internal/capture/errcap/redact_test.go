// internal/capture/errcap/redact_test.go
package errcap

import (
	"strings"
	"testing"
)

func TestScrubReplacesPII(t *testing.T) {
	in := "card 4111 1111 1111 1111 owner bob@example.com phone +1 212 555 0199"
	out := scrub(in)

	if strings.Contains(out, "4111") {
		t.Fatalf("card digits survived: %q", out)
	}
	if strings.Contains(out, "bob@example.com") {
		t.Fatalf("email survived: %q", out)
	}
	if strings.Contains(out, "555 0199") {
		t.Fatalf("phone survived: %q", out)
	}
	for _, token := range []string{tokenCard, tokenEmail, tokenPhone} {
		if !strings.Contains(out, token) {
			t.Fatalf("missing token %s in %q", token, out)
		}
	}
}

func TestScrubLeavesNonLuhnDigits(t *testing.T) {
	// 16 digits that fail Luhn: an order number, not a card.
	out := scrub("order 1234 5678 9012 3456 confirmed")
	if strings.Contains(out, tokenCard) {
		t.Fatalf("non-card digits redacted: %q", out)
	}
}

func TestScrubMessageTruncates(t *testing.T) {
	out := scrubMessage(strings.Repeat("x", 5000))
	if len(out) != maxMessageLen {
		t.Fatalf("message length %d, want %d", len(out), maxMessageLen)
	}
}

func TestScrubStackLimitsFramesAndStripsOrigins(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, "  at fn (https://cdn.example.com/bundle/app.js:10:5)")
	}
	out := scrubStack(strings.Join(lines, "\n"))

	if n := strings.Count(out, "\n") + 1; n > maxStackFrames {
		t.Fatalf("kept %d frames, want <= %d", n, maxStackFrames)
	}
	if strings.Contains(out, "https://") || strings.Contains(out, "cdn.example.com") {
		t.Fatalf("origin survived: %q", out)
	}
	if !strings.Contains(out, "/bundle/app.js:10:5") {
		t.Fatalf("path stripped too far: %q", out)
	}
	if len(out) > maxStackLen {
		t.Fatalf("stack length %d exceeds %d", len(out), maxStackLen)
	}
}

func TestScrubContextRoundTripsAndScrubsLeaves(t *testing.T) {
	ctx := map[string]any{
		"email": "alice@example.com",
		"nested": map[string]any{
			"note": "call +1 212 555 0199",
		},
		"tags": []any{"ok", "mail bob@example.com"},
		"n":    3,
		"bad":  func() {}, // unserializable: whole context must not survive as-is
	}

	// Unserializable value drops the context entirely.
	if out := scrubContext(ctx); out != nil {
		t.Fatalf("context with func survived: %+v", out)
	}

	delete(ctx, "bad")
	out := scrubContext(ctx)
	if out == nil {
		t.Fatal("clean context dropped")
	}
	if out["email"] != tokenEmail {
		t.Fatalf("email leaf = %v", out["email"])
	}
	nested := out["nested"].(map[string]any)
	if strings.Contains(nested["note"].(string), "555") {
		t.Fatalf("nested phone survived: %v", nested["note"])
	}
	tags := out["tags"].([]any)
	if strings.Contains(tags[1].(string), "bob@") {
		t.Fatalf("array email survived: %v", tags[1])
	}
}

func TestLuhn(t *testing.T) {
	if !luhnValid("4111 1111 1111 1111") {
		t.Fatal("valid card rejected")
	}
	if luhnValid("1234 5678 9012 3456") {
		t.Fatal("invalid card accepted")
	}
	if luhnValid("411") {
		t.Fatal("short number accepted")
	}
}
