// Package moderation filters inbound user messages and outbound model
// replies. Checks are pure predicates over text; blocking is a normal
// branch of the request pipeline, not an error.
package moderation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinMessageLength guards against empty submissions.
	MinMessageLength = 1

	// MaxMessageLength bounds a single message.
	MaxMessageLength = 10000
)

// RefusalMessage replaces a blocked model reply.
const RefusalMessage = "Sorry, I can't help with that request."

// forbiddenPatterns are hard-blocked topics.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)how\s+to\s+\w*\s*hack`),
	regexp.MustCompile(`(?i)how\s+to\s+\w*\s*defraud`),
	regexp.MustCompile(`(?i)how\s+to\s+\w*\s*steal`),
	regexp.MustCompile(`(?i)how\s+to\s+\w*\s*kill`),
	regexp.MustCompile(`(?i)how\s+to\s+\w*\s*(bomb|explode)`),
	regexp.MustCompile(`(?i)\bnarcotics?\b`),
	regexp.MustCompile(`(?i)\bsuicide\b`),
	regexp.MustCompile(`(?i)\bself[- ]harm\b`),
}

// spamRunLength is the shortest run of identical characters flagged as spam.
const spamRunLength = 11

// controlCharRe strips control characters except newline and tab.
var controlCharRe = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")

// Verdict is the outcome of one moderation check.
type Verdict struct {
	Allowed bool
	Reason  string

	// Filtered is the text to use when the check passed, or the masked
	// text when a forbidden word was masked out.
	Filtered string
}

// Moderator applies the word list and pattern checks. ForbiddenWords may be
// extended at construction; the zero list still enforces patterns and spam
// heuristics.
type Moderator struct {
	forbiddenWords []string
	maxLength      int
}

// New creates a Moderator with optional extra forbidden words.
func New(forbiddenWords ...string) *Moderator {
	return &Moderator{forbiddenWords: forbiddenWords, maxLength: MaxMessageLength}
}

// CheckMessage validates an inbound user message.
func (m *Moderator) CheckMessage(message string) Verdict {
	if message == "" {
		return Verdict{Allowed: false, Reason: "empty message"}
	}

	length := utf8.RuneCountInString(message)
	if length < MinMessageLength {
		return Verdict{Allowed: false, Reason: "message too short", Filtered: message}
	}
	if length > m.maxLength {
		return Verdict{
			Allowed:  false,
			Reason:   fmt.Sprintf("message too long (maximum %d characters)", m.maxLength),
			Filtered: truncateRunes(message, m.maxLength),
		}
	}

	lower := strings.ToLower(message)
	for _, word := range m.forbiddenWords {
		if strings.Contains(lower, strings.ToLower(word)) {
			return Verdict{
				Allowed:  false,
				Reason:   "message contains disallowed content",
				Filtered: maskWord(message, word),
			}
		}
	}

	for _, re := range forbiddenPatterns {
		if re.MatchString(message) {
			return Verdict{Allowed: false, Reason: "message contains disallowed content", Filtered: message}
		}
	}

	if isSpam(message) {
		return Verdict{Allowed: false, Reason: "message looks like spam", Filtered: message}
	}

	return Verdict{Allowed: true, Filtered: message}
}

// CheckReply validates an outbound model reply. Empty replies pass.
func (m *Moderator) CheckReply(reply string) Verdict {
	if reply == "" {
		return Verdict{Allowed: true, Filtered: ""}
	}

	lower := strings.ToLower(reply)
	for _, word := range m.forbiddenWords {
		if strings.Contains(lower, strings.ToLower(word)) {
			return Verdict{
				Allowed:  false,
				Reason:   "reply contains disallowed content",
				Filtered: maskWord(reply, word),
			}
		}
	}

	for _, re := range forbiddenPatterns {
		if re.MatchString(reply) {
			return Verdict{Allowed: false, Reason: "reply contains disallowed content", Filtered: RefusalMessage}
		}
	}

	return Verdict{Allowed: true, Filtered: reply}
}

// Sanitize strips control characters and enforces the length cap. It does
// not judge content.
func (m *Moderator) Sanitize(message string) string {
	if message == "" {
		return ""
	}
	message = controlCharRe.ReplaceAllString(message, "")
	message = truncateRunes(message, m.maxLength)
	return strings.TrimSpace(message)
}

// truncateRunes cuts s to at most max characters, never mid-rune.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func maskWord(message, word string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word))
	return re.ReplaceAllString(message, "***")
}

// isSpam flags long identical-character runs and one word dominating more
// than half of a multi-word message.
func isSpam(message string) bool {
	if hasCharRun(message, spamRunLength) {
		return true
	}

	words := strings.Fields(message)
	if len(words) <= 5 {
		return false
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		lw := strings.ToLower(w)
		counts[lw]++
		if float64(counts[lw]) > float64(len(words))*0.5 {
			return true
		}
	}
	return false
}

// hasCharRun reports whether s contains n or more identical consecutive
// characters.
func hasCharRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}
