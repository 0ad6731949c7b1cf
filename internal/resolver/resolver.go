// Package resolver matches free-text identifiers produced by the model
// against live calendar events and documents.
//
// Matching runs through ranked tiers and returns on the first hit:
//  1. exact id
//  2. exact title, case-insensitive
//  3. substring title (either direction)
//  4. substring description
//  5. keyword-overlap scoring
//
// An empty identifier or an empty collection is a miss, not an error.
package resolver

import (
	"math"
	"strings"
)

// DefaultKeywordRatio is the fraction of an identifier's significant words
// that must appear in an event for the keyword tier to accept it.
const DefaultKeywordRatio = 0.5

// Options tune the heuristic tiers. Zero value applies defaults.
type Options struct {
	// KeywordRatio is the minimum accepted overlap, score >= ceil(words*ratio).
	KeywordRatio float64
}

func (o Options) ratio() float64 {
	if o.KeywordRatio <= 0 {
		return DefaultKeywordRatio
	}
	return o.KeywordRatio
}

// Target is the minimal view of a resolvable item.
type Target struct {
	ID          string
	Title       string
	Description string
}

// Event resolves identifier against events and returns the matching event id.
// The boolean reports whether any tier matched.
func Event(events []Target, identifier string, opts Options) (string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || len(events) == 0 {
		return "", false
	}

	// Tier 1: exact id.
	for _, e := range events {
		if e.ID == identifier {
			return e.ID, true
		}
	}

	lower := strings.ToLower(identifier)

	// Tier 2: exact title, case-insensitive.
	for _, e := range events {
		if strings.ToLower(strings.TrimSpace(e.Title)) == lower {
			return e.ID, true
		}
	}

	// Tier 3: substring title, either direction. First in list order wins.
	for _, e := range events {
		title := strings.ToLower(strings.TrimSpace(e.Title))
		if title == "" {
			continue
		}
		if strings.Contains(title, lower) || strings.Contains(lower, title) {
			return e.ID, true
		}
	}

	// Tier 4: substring description.
	for _, e := range events {
		desc := strings.ToLower(e.Description)
		if desc == "" {
			continue
		}
		if strings.Contains(desc, lower) {
			return e.ID, true
		}
	}

	// Tier 5: keyword overlap.
	return keywordMatch(events, lower, opts.ratio())
}

// keywordMatch scores each event by counting identifier words (length > 2)
// found in its title+description. The best score wins if it reaches
// ceil(wordCount * ratio); ties keep the first-seen event.
func keywordMatch(events []Target, lowerIdentifier string, ratio float64) (string, bool) {
	words := significantWords(lowerIdentifier)
	if len(words) == 0 {
		return "", false
	}

	threshold := int(math.Ceil(float64(len(words)) * ratio))
	bestID := ""
	bestScore := 0
	for _, e := range events {
		haystack := strings.ToLower(e.Title + " " + e.Description)
		score := 0
		for _, w := range words {
			if strings.Contains(haystack, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestID = e.ID
		}
	}
	if bestScore >= threshold && bestScore > 0 {
		return bestID, true
	}
	return "", false
}

func significantWords(s string) []string {
	fields := strings.Fields(s)
	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			words = append(words, f)
		}
	}
	return words
}

// Document resolves identifier against documents: exact id, then exact
// case-insensitive name, then substring name. No heuristic tiers and no
// fallback; a miss means no action.
func Document(docs []Target, identifier string) (string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || len(docs) == 0 {
		return "", false
	}

	for _, d := range docs {
		if d.ID == identifier {
			return d.ID, true
		}
	}

	lower := strings.ToLower(identifier)
	for _, d := range docs {
		if strings.ToLower(strings.TrimSpace(d.Title)) == lower {
			return d.ID, true
		}
	}

	for _, d := range docs {
		name := strings.ToLower(strings.TrimSpace(d.Title))
		if name == "" {
			continue
		}
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return d.ID, true
		}
	}

	return "", false
}
