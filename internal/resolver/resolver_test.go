package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events() []Target {
	return []Target{
		{ID: "1", Title: "Team standup", Description: "Daily sync with engineering"},
		{ID: "2", Title: "Client meeting", Description: "Quarterly review with Acme"},
		{ID: "3", Title: "Tax deadline", Description: "File the quarterly VAT return"},
	}
}

func TestEventExactID(t *testing.T) {
	id, ok := Event(events(), "2", Options{})
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestEventIDBeatsTitle(t *testing.T) {
	// An event titled "1" must not shadow the event whose id is "1".
	targets := []Target{
		{ID: "7", Title: "1"},
		{ID: "1", Title: "Planning"},
	}
	id, ok := Event(targets, "1", Options{})
	require.True(t, ok)
	assert.Equal(t, "1", id)
}

func TestEventExactTitleCaseInsensitive(t *testing.T) {
	id, ok := Event(events(), "client MEETING", Options{})
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestEventSubstringTitleBothDirections(t *testing.T) {
	// Identifier inside title.
	id, ok := Event(events(), "standup", Options{})
	require.True(t, ok)
	assert.Equal(t, "1", id)

	// Title inside identifier.
	id, ok = Event(events(), "the client meeting from last week", Options{})
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestEventDescriptionSubstring(t *testing.T) {
	id, ok := Event(events(), "acme", Options{})
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestEventKeywordOverlap(t *testing.T) {
	// "important client review": no exact or substring hit, but two of the
	// three significant words land on event 2, clearing ceil(3*0.5) = 2.
	id, ok := Event(events(), "important client review", Options{})
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestEventKeywordBelowThreshold(t *testing.T) {
	_, ok := Event(events(), "completely unrelated gardening festival", Options{})
	assert.False(t, ok)
}

func TestEventKeywordRatioConfigurable(t *testing.T) {
	// With a 1.0 ratio every significant word must land.
	_, ok := Event(events(), "important client review", Options{KeywordRatio: 1.0})
	assert.False(t, ok)

	id, ok := Event(events(), "quarterly client review", Options{KeywordRatio: 1.0})
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestEventKeywordTieKeepsFirst(t *testing.T) {
	targets := []Target{
		{ID: "a", Title: "budget planning session"},
		{ID: "b", Title: "budget planning workshop"},
	}
	// Word order flipped so no substring tier can fire first.
	id, ok := Event(targets, "planning budget", Options{})
	require.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestEventEmptyInputs(t *testing.T) {
	_, ok := Event(nil, "anything", Options{})
	assert.False(t, ok)

	_, ok = Event(events(), "", Options{})
	assert.False(t, ok)

	_, ok = Event(events(), "   ", Options{})
	assert.False(t, ok)
}

func TestDocumentResolution(t *testing.T) {
	docs := []Target{
		{ID: "d1", Title: "invoice-march.pdf"},
		{ID: "d2", Title: "Contract_Acme.docx"},
	}

	id, ok := Document(docs, "d2")
	require.True(t, ok)
	assert.Equal(t, "d2", id)

	id, ok = Document(docs, "contract_acme.docx")
	require.True(t, ok)
	assert.Equal(t, "d2", id)

	id, ok = Document(docs, "invoice")
	require.True(t, ok)
	assert.Equal(t, "d1", id)
}

func TestDocumentNoHeuristics(t *testing.T) {
	docs := []Target{{ID: "d1", Title: "invoice-march.pdf"}}

	// No keyword tier for documents: a fuzzy identifier is a miss.
	_, ok := Document(docs, "march billing paperwork")
	assert.False(t, ok)

	_, ok = Document(nil, "invoice")
	assert.False(t, ok)
}
