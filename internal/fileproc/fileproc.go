// Package fileproc prepares user-attached files for the prompt. Text files
// are decoded and inlined, images are passed through base64 for the vision
// model, office formats get a bracketed notice instead of a decode attempt.
package fileproc

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	apperr "github.com/bizchat-ai/bizchat/internal/errors"
)

// MaxFileSize bounds a single decoded attachment.
const MaxFileSize = 10 << 20 // 10 MiB

// Result is a processed attachment ready for prompt assembly. Exactly one
// of Text or ImageBase64 is set for supported content.
type Result struct {
	Name        string
	MIME        string
	Text        string
	ImageBase64 string
}

// IsImage reports whether the attachment should become an image part.
func (r Result) IsImage() bool { return r.ImageBase64 != "" }

var textMIMEs = map[string]bool{
	"text/plain":       true,
	"text/csv":         true,
	"text/markdown":    true,
	"text/html":        true,
	"application/json": true,
	"application/xml":  true,
	"text/xml":         true,
}

var imageMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
}

// unsupportedNotices maps office formats to a reader-visible placeholder.
var unsupportedNotices = map[string]string{
	"application/pdf": "PDF",
	"application/msword":            "DOC",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "DOCX",
	"application/vnd.ms-excel": "XLS",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "XLSX",
}

// Process decodes one attachment. Content arrives base64-encoded, with an
// optional data-URI prefix. Unknown MIME types are sniffed as text when the
// payload decodes to valid UTF-8.
func Process(name, mime, content string) (Result, error) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	payload := stripDataURI(content)

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Result{}, apperr.User(apperr.CodeFileDecode,
			fmt.Sprintf("file %q is not valid base64", name)).WithInner(err)
	}
	if len(raw) > MaxFileSize {
		return Result{}, apperr.User(apperr.CodeRequestTooLarge,
			fmt.Sprintf("file %q exceeds the %d byte limit", name, MaxFileSize))
	}

	switch {
	case imageMIMEs[mime]:
		return Result{Name: name, MIME: mime, ImageBase64: payload}, nil

	case textMIMEs[mime] || strings.HasPrefix(mime, "text/"):
		text, ok := decodeText(raw)
		if !ok {
			return Result{}, apperr.User(apperr.CodeFileDecode,
				fmt.Sprintf("file %q is not readable text", name))
		}
		return Result{Name: name, MIME: mime, Text: text}, nil

	default:
		if label, ok := unsupportedNotices[mime]; ok {
			return Result{
				Name: name,
				MIME: mime,
				Text: fmt.Sprintf("[%s file %q attached; its contents could not be read]", label, name),
			}, nil
		}
		// Unknown type: accept it as text if it plausibly is text.
		if text, ok := decodeText(raw); ok {
			return Result{Name: name, MIME: mime, Text: text}, nil
		}
		return Result{}, apperr.User(apperr.CodeFileUnsupported,
			fmt.Sprintf("file %q has unsupported type %q", name, mime))
	}
}

// stripDataURI removes a "data:<mime>;base64," prefix when present.
func stripDataURI(content string) string {
	if !strings.HasPrefix(content, "data:") {
		return strings.TrimSpace(content)
	}
	if i := strings.Index(content, ","); i >= 0 {
		return strings.TrimSpace(content[i+1:])
	}
	return strings.TrimSpace(content)
}

func decodeText(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	text := strings.ToValidUTF8(string(raw), "")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text), true
}
