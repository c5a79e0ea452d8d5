// internal/capture/errcap/redact.go
package errcap

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// Redaction bounds.
const (
	maxMessageLen  = 1000
	maxStackLen    = 2000
	maxStackFrames = 10
)

// Replacement tokens. Constant on purpose: the collector can count them
// without ever seeing the original value.
const (
	tokenCard  = "[REDACTED:credit-card]"
	tokenEmail = "[REDACTED:email]"
	tokenPhone = "[REDACTED:phone]"
)

// RE2 patterns, linear-time by construction. The card pattern is
// validated with Luhn so order numbers and timestamps survive.
var (
	reCard  = regexp.MustCompile(`\b[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}\b`)
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	rePhone = regexp.MustCompile(`\+?[0-9]{1,3}[- .]?\(?[0-9]{2,3}\)?[- .]?[0-9]{3,4}[- .]?[0-9]{4}\b`)

	reOrigin = regexp.MustCompile(`https?://[^/\s)]+`)
)

// scrub replaces PII-like substrings with the constant tokens.
func scrub(s string) string {
	if s == "" {
		return ""
	}
	s = reCard.ReplaceAllStringFunc(s, func(m string) string {
		if luhnValid(m) {
			return tokenCard
		}
		return m
	})
	s = reEmail.ReplaceAllString(s, tokenEmail)
	s = rePhone.ReplaceAllString(s, tokenPhone)
	return s
}

// scrubMessage scrubs then truncates to the message bound.
func scrubMessage(s string) string {
	s = scrub(s)
	if len(s) > maxMessageLen {
		s = s[:maxMessageLen]
	}
	return s
}

// scrubStack keeps the first frames, strips absolute origins down to
// path-relative references, scrubs, and truncates.
func scrubStack(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxStackFrames {
		lines = lines[:maxStackFrames]
	}
	s = reOrigin.ReplaceAllString(strings.Join(lines, "\n"), "")
	s = scrub(s)
	if len(s) > maxStackLen {
		s = s[:maxStackLen]
	}
	return s
}

// scrubContext JSON-round-trips ctx to shed cycles and unserializable
// values, then scrubs every string leaf. A context that cannot be
// serialized is dropped entirely.
func scrubContext(ctx map[string]any) map[string]any {
	if len(ctx) == 0 {
		return nil
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil
	}
	var clean map[string]any
	if err := json.Unmarshal(raw, &clean); err != nil {
		return nil
	}
	scrubValue(clean)
	return clean
}

func scrubValue(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok {
				t[k] = scrub(s)
			} else {
				scrubValue(child)
			}
		}
	case []any:
		for i, child := range t {
			if s, ok := child.(string); ok {
				t[i] = scrub(s)
			} else {
				scrubValue(child)
			}
		}
	}
}

// luhnValid reports whether the digits of number pass the Luhn check.
func luhnValid(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}
