package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizchat-ai/bizchat/internal/bizdata"
	"github.com/bizchat-ai/bizchat/internal/fileproc"
	"github.com/bizchat-ai/bizchat/internal/llm"
	"github.com/bizchat-ai/bizchat/internal/store"
)

func TestBuildSystemMessageCarriesContext(t *testing.T) {
	b := NewBuilder()
	bc := &bizdata.Context{Balances: &bizdata.Balances{Account1: 500}}

	msgs := b.Build(bc, nil, nil, "What is my balance?")
	require.NotEmpty(t, msgs)
	require.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Text, "CREATE_EVENT:")
	assert.Contains(t, msgs[0].Text, `"action": "UPDATE_EVENT"`)
	assert.Contains(t, msgs[0].Text, "Business data:")
	assert.Contains(t, msgs[0].Text, "Account balances")

	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "What is my balance?", last.Text)
}

func TestBuildHistoryChronologicalAndBounded(t *testing.T) {
	b := NewBuilder()

	// Store hands history newest first; the prompt wants oldest first and
	// at most MaxHistoryTurns exchanges.
	history := []store.HistoryEntry{
		{UserMessage: "fourth", Reply: "r4"},
		{UserMessage: "third", Reply: "r3"},
		{UserMessage: "second", Reply: "r2"},
		{UserMessage: "first", Reply: "r1"},
	}

	msgs := b.Build(nil, history, nil, "now")
	// system + 3 replayed exchanges + current turn
	require.Len(t, msgs, 1+2*b.MaxHistoryTurns+1)
	assert.Equal(t, "fourth", msgs[len(msgs)-3].Text)
	assert.Equal(t, "second", msgs[1].Text)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
}

func TestBuildTruncatesLongInputs(t *testing.T) {
	b := NewBuilder()

	long := strings.Repeat("x", 5000)
	history := []store.HistoryEntry{{UserMessage: long, Reply: long}}

	msgs := b.Build(nil, history, nil, long)
	assert.Len(t, msgs[1].Text, b.MaxHistoryChars)
	assert.Len(t, msgs[len(msgs)-1].Text, b.MaxMessageChars)
}

func TestBuildTruncatesOnCharacterBoundaries(t *testing.T) {
	b := NewBuilder()

	long := strings.Repeat("поставка товара ", 400)
	history := []store.HistoryEntry{{UserMessage: long, Reply: long}}

	msgs := b.Build(nil, history, nil, long)
	assert.Equal(t, b.MaxHistoryChars, utf8.RuneCountInString(msgs[1].Text))
	assert.True(t, utf8.ValidString(msgs[1].Text))

	last := msgs[len(msgs)-1].Text
	assert.Equal(t, b.MaxMessageChars, utf8.RuneCountInString(last))
	assert.True(t, utf8.ValidString(last))
}

func TestBuildAttachesFiles(t *testing.T) {
	b := NewBuilder()
	files := []fileproc.Result{
		{Name: "notes.txt", MIME: "text/plain", Text: "march notes"},
		{Name: "receipt.png", MIME: "image/png", ImageBase64: "aGVsbG8="},
	}

	msgs := b.Build(nil, nil, files, "summarize")
	last := msgs[len(msgs)-1]
	assert.Contains(t, last.Text, `Attached file "notes.txt"`)
	assert.Contains(t, last.Text, "march notes")
	require.Len(t, last.Images, 1)
	assert.Equal(t, "image/png", last.Images[0].MIME)
}

func TestBuildFileBudget(t *testing.T) {
	b := NewBuilder()
	files := []fileproc.Result{
		{Name: "a.txt", Text: strings.Repeat("a", 4000)},
		{Name: "b.txt", Text: strings.Repeat("b", 4000)},
		{Name: "c.txt", Text: strings.Repeat("c", 4000)},
	}

	msgs := b.Build(nil, nil, files, "go")
	last := msgs[len(msgs)-1].Text

	// Per-file cap applies first, then the shared budget cuts the rest.
	assert.Contains(t, last, strings.Repeat("a", b.MaxFileChars))
	assert.Contains(t, last, strings.Repeat("b", b.MaxTotalFileChars-b.MaxFileChars))
	assert.NotContains(t, last, strings.Repeat("b", b.MaxFileChars))
	assert.NotContains(t, last, "ccc")
}

func TestBuildFileBudgetCountsCharacters(t *testing.T) {
	b := NewBuilder()
	files := []fileproc.Result{
		{Name: "отчёт.txt", Text: strings.Repeat("ж", 4000)},
		{Name: "план.txt", Text: strings.Repeat("з", 4000)},
	}

	msgs := b.Build(nil, nil, files, "summarize")
	last := msgs[len(msgs)-1].Text

	assert.Contains(t, last, strings.Repeat("ж", b.MaxFileChars))
	assert.Contains(t, last, strings.Repeat("з", b.MaxTotalFileChars-b.MaxFileChars))
	assert.True(t, utf8.ValidString(last))
}

func TestBuildNilContextOmitsDataBlock(t *testing.T) {
	b := NewBuilder()
	msgs := b.Build(nil, nil, nil, "hi")
	assert.Contains(t, msgs[0].Text, "Business data:")
	assert.Contains(t, msgs[0].Text, "No business data available")
}
