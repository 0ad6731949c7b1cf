// Package extract scans raw model replies for embedded action commands.
//
// The model is offered three competing syntaxes and may emit any of them,
// well-formed or not: the legacy pipe format ("CREATE_EVENT: title|date|desc"),
// inline JSON objects ({"action":"UPDATE_EVENT",...}), and free-floating
// markers the loose fallback patterns pick up. Recognizers run in a fixed
// priority order; the first success wins for the whole reply and all other
// command fragments in the text are ignored.
package extract

// Kind identifies the action a command requests.
type Kind int

const (
	// KindNone means no command was recognized.
	KindNone Kind = iota

	// KindCreateEvent creates a calendar event.
	KindCreateEvent

	// KindUpdateEvent updates fields of an existing calendar event.
	KindUpdateEvent

	// KindDeleteEvent deletes a calendar event.
	KindDeleteEvent

	// KindDeleteDocument deletes an uploaded document.
	KindDeleteDocument

	// KindRenameDocument renames an uploaded document.
	KindRenameDocument

	// KindSendSupportMessage opens a support ticket.
	KindSendSupportMessage
)

// String returns the wire name of the command kind.
func (k Kind) String() string {
	switch k {
	case KindCreateEvent:
		return "CREATE_EVENT"
	case KindUpdateEvent:
		return "UPDATE_EVENT"
	case KindDeleteEvent:
		return "DELETE_EVENT"
	case KindDeleteDocument:
		return "DELETE_DOCUMENT"
	case KindRenameDocument:
		return "RENAME_DOCUMENT"
	case KindSendSupportMessage:
		return "SEND_SUPPORT_MESSAGE"
	default:
		return "NONE"
	}
}

// Command is one extracted action command. Only the fields the source
// syntax supplied are populated; everything else stays Unset.
type Command struct {
	Kind Kind

	// Target is the free-text event or document identifier for update,
	// delete and rename commands. It is not resolved here.
	Target string

	// Calendar event fields. CREATE_EVENT always sets Title and Date
	// (dates already normalized); UPDATE_EVENT keeps the tri-state.
	Title       Field
	Date        Field
	Description Field

	// NewName is the requested document name for RENAME_DOCUMENT.
	NewName Field

	// Support ticket fields for SEND_SUPPORT_MESSAGE.
	Subject Field
	Message Field
}

// None is the zero command: nothing recognized.
var None = Command{Kind: KindNone}

// Result is the outcome of scanning one reply.
type Result struct {
	Command Command

	// Span is the exact substring the winning recognizer consumed,
	// empty when no command was found. Callers remove it from the
	// user-visible reply.
	Span string
}
