package extract

import "strings"

// Extract scans a raw model reply for a single action command.
//
// Recognizers run in recognizerOrder; the first success short-circuits, so
// at most one command is ever produced per reply no matter how many command
// fragments the text contains. Extract is pure: calling it twice on the
// same reply yields identical results.
func Extract(reply string) Result {
	if reply == "" {
		return Result{Command: None}
	}
	for _, r := range recognizerOrder {
		if cmd, span, ok := r.fn(reply); ok {
			return Result{Command: cmd, Span: span}
		}
	}
	return Result{Command: None}
}

// CleanReply removes the matched command span from the reply. Text outside
// the span is preserved verbatim; only the outer edges are trimmed.
func CleanReply(reply, span string) string {
	if span != "" {
		reply = strings.Replace(reply, span, "", 1)
	}
	return strings.TrimSpace(reply)
}
