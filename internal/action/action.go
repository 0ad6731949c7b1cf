// Package action turns extracted commands into resolved, side-effect-free
// action descriptors ready for persistence and dispatch.
package action

import (
	"encoding/json"

	"github.com/bizchat-ai/bizchat/internal/bizdata"
	"github.com/bizchat-ai/bizchat/internal/extract"
	"github.com/bizchat-ai/bizchat/internal/resolver"
)

// Type names the normalized action, as persisted and sent to the front-end.
type Type string

const (
	TypeCreateEvent        Type = "create_event"
	TypeUpdateEvent        Type = "update_event"
	TypeDeleteEvent        Type = "delete_event"
	TypeDeleteDocument     Type = "delete_document"
	TypeRenameDocument     Type = "rename_document"
	TypeSendSupportMessage Type = "send_support_message"
)

// Options are the reconciliation policy knobs.
type Options struct {
	// Resolver tunes the fuzzy-matching tiers.
	Resolver resolver.Options

	// LastEventFallback substitutes the most recently added event when a
	// free-text identifier resolves to nothing. Heuristic policy carried
	// over from the shipped behavior, kept configurable.
	LastEventFallback bool
}

// DefaultOptions returns the shipped policy defaults.
func DefaultOptions() Options {
	return Options{LastEventFallback: true}
}

// Action is one normalized, identifier-bound action descriptor.
type Action struct {
	Type Type

	// EventID / DocumentID hold the resolved stable identifier.
	EventID    string
	DocumentID string

	// Event fields keep the tri-state so an apply can distinguish
	// "don't touch" from "clear".
	Title       extract.Field
	Date        extract.Field
	Description extract.Field

	NewName string

	Subject string
	Message string
}

// Payload renders the action as a JSON-safe map. Unset fields are omitted
// entirely; clear requests serialize as empty strings.
func (a *Action) Payload() map[string]any {
	p := map[string]any{"action": string(a.Type)}
	switch a.Type {
	case TypeCreateEvent:
		p["title"] = a.Title.Value()
		p["date"] = a.Date.Value()
		p["description"] = a.Description.Value()
	case TypeUpdateEvent:
		p["id"] = a.EventID
		putField(p, "title", a.Title)
		putField(p, "date", a.Date)
		putField(p, "description", a.Description)
	case TypeDeleteEvent:
		p["id"] = a.EventID
	case TypeDeleteDocument:
		p["id"] = a.DocumentID
	case TypeRenameDocument:
		p["id"] = a.DocumentID
		p["new_name"] = a.NewName
	case TypeSendSupportMessage:
		p["subject"] = a.Subject
		p["message"] = a.Message
	}
	return p
}

// MarshalJSON serializes the payload form.
func (a *Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Payload())
}

func putField(p map[string]any, key string, f extract.Field) {
	if v, ok := f.Get(); ok {
		p[key] = v
	}
}

// Reconcile binds cmd to the business context and returns the resulting
// action, or nil when no action can be produced. Absence of an action is a
// normal outcome, never an error: malformed or unresolvable commands are
// silently dropped.
func Reconcile(cmd extract.Command, bc *bizdata.Context, opts Options) *Action {
	if bc == nil {
		bc = &bizdata.Context{}
	}

	switch cmd.Kind {
	case extract.KindCreateEvent:
		return reconcileCreate(cmd)
	case extract.KindUpdateEvent:
		return reconcileEventCommand(cmd, TypeUpdateEvent, bc.CalendarEvents, opts)
	case extract.KindDeleteEvent:
		return reconcileEventCommand(cmd, TypeDeleteEvent, bc.CalendarEvents, opts)
	case extract.KindDeleteDocument:
		return reconcileDocumentCommand(cmd, TypeDeleteDocument, bc.Documents)
	case extract.KindRenameDocument:
		return reconcileDocumentCommand(cmd, TypeRenameDocument, bc.Documents)
	case extract.KindSendSupportMessage:
		return reconcileSupport(cmd)
	default:
		return nil
	}
}

func reconcileCreate(cmd extract.Command) *Action {
	if cmd.Title.Value() == "" || cmd.Date.Value() == "" {
		return nil
	}
	return &Action{
		Type:        TypeCreateEvent,
		Title:       cmd.Title,
		Date:        cmd.Date,
		Description: cmd.Description,
	}
}

func reconcileEventCommand(cmd extract.Command, t Type, events []bizdata.CalendarEvent, opts Options) *Action {
	id, ok := resolver.Event(eventTargets(events), cmd.Target, opts.Resolver)
	if !ok {
		if !opts.LastEventFallback || len(events) == 0 {
			return nil
		}
		id = events[len(events)-1].ID
	}
	a := &Action{Type: t, EventID: id}
	if t == TypeUpdateEvent {
		a.Title = cmd.Title
		a.Date = cmd.Date
		a.Description = cmd.Description
	}
	return a
}

func reconcileDocumentCommand(cmd extract.Command, t Type, docs []bizdata.Document) *Action {
	// Documents get no "last item" fallback: an unresolved name is a drop.
	id, ok := resolver.Document(documentTargets(docs), cmd.Target)
	if !ok {
		return nil
	}
	a := &Action{Type: t, DocumentID: id}
	if t == TypeRenameDocument {
		newName := cmd.NewName.Value()
		if newName == "" {
			return nil
		}
		a.NewName = newName
	}
	return a
}

func reconcileSupport(cmd extract.Command) *Action {
	subject := cmd.Subject.Value()
	message := cmd.Message.Value()
	if subject == "" || message == "" {
		return nil
	}
	return &Action{Type: TypeSendSupportMessage, Subject: subject, Message: message}
}

func eventTargets(events []bizdata.CalendarEvent) []resolver.Target {
	targets := make([]resolver.Target, len(events))
	for i, e := range events {
		targets[i] = resolver.Target{ID: e.ID, Title: e.Title, Description: e.Description}
	}
	return targets
}

func documentTargets(docs []bizdata.Document) []resolver.Target {
	targets := make([]resolver.Target, len(docs))
	for i, d := range docs {
		targets[i] = resolver.Target{ID: d.ID, Title: d.Name}
	}
	return targets
}
