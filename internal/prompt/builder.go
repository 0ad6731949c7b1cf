// Package prompt assembles the chat-completion messages for one request.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bizchat-ai/bizchat/internal/bizdata"
	"github.com/bizchat-ai/bizchat/internal/fileproc"
	"github.com/bizchat-ai/bizchat/internal/llm"
	"github.com/bizchat-ai/bizchat/internal/store"
)

// Builder assembles prompts under fixed size limits.
type Builder struct {
	// MaxContextChars bounds the business-context block.
	MaxContextChars int

	// MaxMessageChars bounds the current user message.
	MaxMessageChars int

	// MaxHistoryTurns is how many past exchanges are replayed.
	MaxHistoryTurns int

	// MaxHistoryChars bounds each replayed message.
	MaxHistoryChars int

	// MaxFileChars bounds one attached text file; MaxTotalFileChars bounds
	// all of them together.
	MaxFileChars      int
	MaxTotalFileChars int
}

// NewBuilder returns a Builder with the default limits.
func NewBuilder() *Builder {
	return &Builder{
		MaxContextChars:   bizdata.DefaultMaxChars,
		MaxMessageChars:   1000,
		MaxHistoryTurns:   3,
		MaxHistoryChars:   500,
		MaxFileChars:      2000,
		MaxTotalFileChars: 3000,
	}
}

// systemPrompt instructs the model on its role and the action-command
// grammar the extractor recognizes.
const systemPrompt = `You are a business assistant for a small-business owner. Answer in the user's language, concisely and concretely, using the business data below when it is relevant.

When the user asks you to act, answer normally and then append exactly one command on its own line, using one of these forms:

To create a calendar event:
CREATE_EVENT: title|YYYY-MM-DDTHH:MM|description

To change an existing event (a JSON object on one line, include only the fields that change; an empty string clears a field):
{"action": "UPDATE_EVENT", "event": "<id or title>", "title": "...", "date": "YYYY-MM-DDTHH:MM", "description": "..."}

To delete an event:
{"action": "DELETE_EVENT", "event": "<id or title>"}

To delete or rename an uploaded document:
{"action": "DELETE_DOCUMENT", "document": "<id or name>"}
{"action": "RENAME_DOCUMENT", "document": "<id or name>", "new_name": "..."}

To open a support ticket:
{"action": "SEND_SUPPORT_MESSAGE", "subject": "...", "message": "..."}

Emit at most one command per reply and none when the user only asks a question.`

// Build assembles the full message list.
func (b *Builder) Build(
	bc *bizdata.Context,
	history []store.HistoryEntry,
	files []fileproc.Result,
	userMessage string,
) []llm.Message {
	var messages []llm.Message

	system := systemPrompt
	if block := bizdata.Format(bc, b.MaxContextChars); block != "" {
		system += "\n\nBusiness data:\n" + block
	}
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Text: system})

	messages = append(messages, b.historyMessages(history)...)
	messages = append(messages, b.userMessage(files, userMessage))

	return messages
}

// historyMessages replays the most recent exchanges, oldest first.
func (b *Builder) historyMessages(history []store.HistoryEntry) []llm.Message {
	if len(history) > b.MaxHistoryTurns {
		history = history[:b.MaxHistoryTurns]
	}

	// History arrives newest first; the prompt wants chronological order.
	var out []llm.Message
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		out = append(out,
			llm.Message{Role: llm.RoleUser, Text: truncate(e.UserMessage, b.MaxHistoryChars)},
			llm.Message{Role: llm.RoleAssistant, Text: truncate(e.Reply, b.MaxHistoryChars)},
		)
	}
	return out
}

// userMessage builds the current turn with attachments inlined.
func (b *Builder) userMessage(files []fileproc.Result, userMessage string) llm.Message {
	msg := llm.Message{Role: llm.RoleUser, Text: truncate(userMessage, b.MaxMessageChars)}

	var parts []string
	total := 0
	for _, f := range files {
		if f.IsImage() {
			msg.Images = append(msg.Images, llm.ImagePart{MIME: f.MIME, Base64: f.ImageBase64})
			continue
		}
		if f.Text == "" || total >= b.MaxTotalFileChars {
			continue
		}
		text := truncate(f.Text, b.MaxFileChars)
		if n := utf8.RuneCountInString(text); total+n > b.MaxTotalFileChars {
			text = truncate(text, b.MaxTotalFileChars-total)
		}
		total += utf8.RuneCountInString(text)
		parts = append(parts, fmt.Sprintf("Attached file %q:\n%s", f.Name, text))
	}

	if len(parts) > 0 {
		msg.Text = msg.Text + "\n\n" + strings.Join(parts, "\n\n")
	}
	return msg
}

// truncate cuts s to at most max characters, never mid-rune.
func truncate(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
