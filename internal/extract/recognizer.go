package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// recognizerFunc attempts one grammar against the reply. It returns the
// command, the exact matched span and whether it succeeded. Recognizers are
// total: malformed input is a miss, never an error.
type recognizerFunc func(reply string) (Command, string, bool)

type recognizer struct {
	name string
	fn   recognizerFunc
}

// recognizerOrder is the command priority for one reply. The first
// recognizer that succeeds wins and the rest are never consulted, so the
// order here is behavior, not layout. UPDATE_EVENT keeps its legacy pipe
// form ahead of its JSON form to match the shipped behavior; flagged for
// product review rather than reordered.
var recognizerOrder = []recognizer{
	{"legacy/CREATE_EVENT", legacyCreateEvent},
	{"legacy/UPDATE_EVENT", legacyUpdateEvent},
	{"legacy/DELETE_EVENT", legacyDeleteEvent},
	{"legacy/DELETE_DOCUMENT", legacyDeleteDocument},
	{"legacy/RENAME_DOCUMENT", legacyRenameDocument},
	{"legacy/SEND_SUPPORT_MESSAGE", legacySendSupportMessage},
	{"json/UPDATE_EVENT", jsonRecognizer(KindUpdateEvent)},
	{"json/DELETE_EVENT", jsonRecognizer(KindDeleteEvent)},
	{"json/DELETE_DOCUMENT", jsonRecognizer(KindDeleteDocument)},
	{"json/RENAME_DOCUMENT", jsonRecognizer(KindRenameDocument)},
	{"json/SEND_SUPPORT_MESSAGE", jsonRecognizer(KindSendSupportMessage)},
	{"flex/CREATE_EVENT", flexCreateEvent},
	{"flex/DELETE_EVENT", flexDeleteEvent},
}

// Order returns the recognizer names in priority order.
func Order() []string {
	names := make([]string, len(recognizerOrder))
	for i, r := range recognizerOrder {
		names[i] = r.name
	}
	return names
}

// ============================================================
// Legacy pipe syntax
// ============================================================

// Legacy commands are an uppercase marker at the start of a line followed
// by pipe-delimited positional fields running to the end of that line.
var legacyRes = map[Kind]*regexp.Regexp{
	KindCreateEvent:        regexp.MustCompile(`(?m)^[ \t]*(CREATE_EVENT:[ \t]*[^\n]*)`),
	KindUpdateEvent:        regexp.MustCompile(`(?m)^[ \t]*(UPDATE_EVENT:[ \t]*[^\n]*)`),
	KindDeleteEvent:        regexp.MustCompile(`(?m)^[ \t]*(DELETE_EVENT:[ \t]*[^\n]*)`),
	KindDeleteDocument:     regexp.MustCompile(`(?m)^[ \t]*(DELETE_DOCUMENT:[ \t]*[^\n]*)`),
	KindRenameDocument:     regexp.MustCompile(`(?m)^[ \t]*(RENAME_DOCUMENT:[ \t]*[^\n]*)`),
	KindSendSupportMessage: regexp.MustCompile(`(?m)^[ \t]*(SEND_SUPPORT_MESSAGE:[ \t]*[^\n]*)`),
}

// legacyPayload finds the first legacy marker for kind and returns the
// matched span plus the parsed pipe fields.
func legacyPayload(reply string, kind Kind) (span string, fields []string, ok bool) {
	m := legacyRes[kind].FindStringSubmatch(reply)
	if m == nil {
		return "", nil, false
	}
	span = m[1]
	payload := strings.TrimSpace(strings.TrimPrefix(span, kind.String()+":"))
	return span, splitPipeFields(payload), true
}

func splitPipeFields(payload string) []string {
	if payload == "" {
		return nil
	}
	parts := strings.Split(payload, "|")
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = stripQuotes(strings.TrimSpace(p))
	}
	return fields
}

func stripQuotes(s string) string {
	s = strings.Trim(s, `"`)
	return strings.Trim(s, `'`)
}

func legacyCreateEvent(reply string) (Command, string, bool) {
	span, fields, ok := legacyPayload(reply, KindCreateEvent)
	if !ok || len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return None, "", false
	}
	cmd := Command{
		Kind:  KindCreateEvent,
		Title: Set(fields[0]),
		Date:  Set(normalizeEventDate(fields[1])),
	}
	if len(fields) > 2 {
		cmd.Description = Set(fields[2])
	}
	return cmd, span, true
}

func legacyUpdateEvent(reply string) (Command, string, bool) {
	span, fields, ok := legacyPayload(reply, KindUpdateEvent)
	if !ok || len(fields) < 1 {
		return None, "", false
	}
	// Positional fields: identifier|title|date|description. An empty
	// positional slot means "leave as is", not "clear" - only the JSON
	// form can express an explicit clear.
	cmd := Command{Kind: KindUpdateEvent, Target: fields[0]}
	if len(fields) > 1 && fields[1] != "" {
		cmd.Title = Set(fields[1])
	}
	if len(fields) > 2 && fields[2] != "" {
		cmd.Date = Set(normalizeEventDate(fields[2]))
	}
	if len(fields) > 3 && fields[3] != "" {
		cmd.Description = Set(fields[3])
	}
	return cmd, span, true
}

func legacyDeleteEvent(reply string) (Command, string, bool) {
	span, fields, ok := legacyPayload(reply, KindDeleteEvent)
	if !ok || len(fields) < 1 || fields[0] == "" {
		return None, "", false
	}
	return Command{Kind: KindDeleteEvent, Target: fields[0]}, span, true
}

func legacyDeleteDocument(reply string) (Command, string, bool) {
	span, fields, ok := legacyPayload(reply, KindDeleteDocument)
	if !ok || len(fields) < 1 || fields[0] == "" {
		return None, "", false
	}
	return Command{Kind: KindDeleteDocument, Target: fields[0]}, span, true
}

func legacyRenameDocument(reply string) (Command, string, bool) {
	span, fields, ok := legacyPayload(reply, KindRenameDocument)
	if !ok || len(fields) < 2 || fields[0] == "" {
		return None, "", false
	}
	return Command{
		Kind:    KindRenameDocument,
		Target:  fields[0],
		NewName: Set(fields[1]),
	}, span, true
}

func legacySendSupportMessage(reply string) (Command, string, bool) {
	span, fields, ok := legacyPayload(reply, KindSendSupportMessage)
	if !ok || len(fields) < 2 {
		return None, "", false
	}
	return Command{
		Kind:    KindSendSupportMessage,
		Subject: Set(fields[0]),
		Message: Set(fields[1]),
	}, span, true
}

// ============================================================
// Inline JSON syntax
// ============================================================

// jsonObjectRe matches brace spans with no nested braces. Deeply nested
// objects are not guaranteed to parse; that limitation is inherited from
// the wire format and kept on purpose.
var jsonObjectRe = regexp.MustCompile(`\{[^{}]*\}`)

// jsonRecognizer builds a recognizer for one JSON action type. Every
// candidate span is tried in order; malformed JSON or a foreign action
// type skips to the next candidate.
func jsonRecognizer(kind Kind) recognizerFunc {
	return func(reply string) (Command, string, bool) {
		for _, span := range jsonObjectRe.FindAllString(reply, -1) {
			var obj map[string]any
			if err := json.Unmarshal([]byte(span), &obj); err != nil {
				continue
			}
			action, _ := obj["action"].(string)
			if action != kind.String() {
				continue
			}
			if cmd, ok := commandFromJSON(kind, obj); ok {
				return cmd, span, true
			}
		}
		return None, "", false
	}
}

func commandFromJSON(kind Kind, obj map[string]any) (Command, bool) {
	switch kind {
	case KindUpdateEvent:
		return Command{
			Kind:        KindUpdateEvent,
			Target:      jsonString(obj, "event"),
			Title:       jsonField(obj, "title"),
			Date:        normalizeDateField(jsonField(obj, "date")),
			Description: jsonField(obj, "description"),
		}, true
	case KindDeleteEvent:
		return Command{Kind: KindDeleteEvent, Target: jsonString(obj, "event")}, true
	case KindDeleteDocument:
		return Command{Kind: KindDeleteDocument, Target: jsonString(obj, "document")}, true
	case KindRenameDocument:
		return Command{
			Kind:    KindRenameDocument,
			Target:  jsonString(obj, "document"),
			NewName: jsonField(obj, "new_name"),
		}, true
	case KindSendSupportMessage:
		return Command{
			Kind:    KindSendSupportMessage,
			Subject: jsonField(obj, "subject"),
			Message: jsonField(obj, "message"),
		}, true
	default:
		return None, false
	}
}

// jsonField maps a JSON key to a tri-state field: absent key stays Unset,
// a null or empty value is an explicit clear, anything else is Set.
func jsonField(obj map[string]any, key string) Field {
	v, present := obj[key]
	if !present {
		return Unset()
	}
	s, _ := v.(string)
	return Set(strings.TrimSpace(s))
}

func jsonString(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func normalizeDateField(f Field) Field {
	if v, ok := f.Get(); ok && v != "" {
		return Set(normalizeEventDate(v))
	}
	return f
}

// ============================================================
// Flexible fallback syntax
// ============================================================

// Loose fallbacks for the two commands older model builds emit mid-sentence:
// a case-insensitive marker anywhere in the text, not only at line start.
var (
	flexCreateRe = regexp.MustCompile(`(?i)CREATE_EVENT\s*:\s*([^\n]+)`)
	flexDeleteRe = regexp.MustCompile(`(?i)DELETE_EVENT\s*:\s*([^\n]+)`)
)

func flexCreateEvent(reply string) (Command, string, bool) {
	m := flexCreateRe.FindStringSubmatch(reply)
	if m == nil {
		return None, "", false
	}
	fields := splitPipeFields(strings.TrimSpace(m[1]))
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return None, "", false
	}
	cmd := Command{
		Kind:  KindCreateEvent,
		Title: Set(fields[0]),
		Date:  Set(normalizeEventDate(fields[1])),
	}
	if len(fields) > 2 {
		cmd.Description = Set(fields[2])
	}
	return cmd, m[0], true
}

func flexDeleteEvent(reply string) (Command, string, bool) {
	m := flexDeleteRe.FindStringSubmatch(reply)
	if m == nil {
		return None, "", false
	}
	fields := splitPipeFields(strings.TrimSpace(m[1]))
	if len(fields) < 1 || fields[0] == "" {
		return None, "", false
	}
	return Command{Kind: KindDeleteEvent, Target: fields[0]}, m[0], true
}

// ============================================================
// Date normalization
// ============================================================

// normalizeEventDate coerces a date into YYYY-MM-DDTHH:mm shape: a space
// separator becomes T, a bare date gets a midday time appended.
func normalizeEventDate(d string) string {
	d = strings.TrimSpace(d)
	if d == "" || strings.Contains(d, "T") {
		return d
	}
	if i := strings.Index(d, " "); i >= 0 {
		return d[:i] + "T" + strings.TrimSpace(d[i+1:])
	}
	return d + "T12:00"
}
