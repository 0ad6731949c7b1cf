package extract

// FieldState distinguishes a field the model never mentioned from one it
// explicitly asked to clear. "Absent" and "empty" carry different meaning
// when an update is applied, so the two must never collapse into each other.
type FieldState int

const (
	// StateUnset means the source command did not mention the field at all.
	StateUnset FieldState = iota

	// StateClear means the field was present with an empty value: clear it.
	StateClear

	// StateSet means the field carries a new value.
	StateSet
)

// Field is a tri-state string field of an extracted command.
type Field struct {
	state FieldState
	value string
}

// Unset returns a field the command never mentioned.
func Unset() Field {
	return Field{state: StateUnset}
}

// Clear returns an explicit clear request.
func Clear() Field {
	return Field{state: StateClear}
}

// Set returns a field carrying value. An empty value degrades to Clear so
// that Set("") and Clear are indistinguishable downstream.
func Set(value string) Field {
	if value == "" {
		return Clear()
	}
	return Field{state: StateSet, value: value}
}

// State reports the field state.
func (f Field) State() FieldState {
	return f.state
}

// IsUnset reports whether the field was absent from the source command.
func (f Field) IsUnset() bool {
	return f.state == StateUnset
}

// Get returns the field value and whether the field was present at all.
// A clear request yields ("", true).
func (f Field) Get() (string, bool) {
	if f.state == StateUnset {
		return "", false
	}
	return f.value, true
}

// Value returns the carried value, empty for unset and clear fields.
func (f Field) Value() string {
	return f.value
}

// String renders the field for logs and test failure output.
func (f Field) String() string {
	switch f.state {
	case StateUnset:
		return "<unset>"
	case StateClear:
		return "<clear>"
	default:
		return f.value
	}
}
