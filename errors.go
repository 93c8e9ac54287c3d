package litua

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a diagnostic. The kind decides which part of the
// toolchain produced the error, not how it is rendered.
type ErrorKind string

const (
	KindLexError           ErrorKind = "LexError"
	KindParseError         ErrorKind = "ParseError"
	KindUnknownPhase       ErrorKind = "UnknownPhase"
	KindInvalidFilter      ErrorKind = "InvalidFilter"
	KindInvalidHook        ErrorKind = "InvalidHook"
	KindDuplicateConverter ErrorKind = "DuplicateConverter"
	KindHookReturnShape    ErrorKind = "HookReturnShape"
	KindNodeAccess         ErrorKind = "NodeAccess"
	KindFormatOverflow     ErrorKind = "FormatOverflow"
	KindUserError          ErrorKind = "UserError"
)

// Error is a structured diagnostic. Message is always set, the remaining
// fields are optional and only rendered when non-empty.
type Error struct {
	Kind     ErrorKind
	Message  string
	Context  string
	Expected string
	Actual   string
	Fix      string
	Source   string

	// Offset is the byte position in the source document for lex and
	// parse errors; Positioned reports whether it is meaningful.
	Offset     int
	Positioned bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("ERROR: ")
	b.WriteString(e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  context:  %s", e.Context)
	}
	if e.Expected != "" {
		fmt.Fprintf(&b, "\n  expected: %s", e.Expected)
	}
	if e.Actual != "" {
		fmt.Fprintf(&b, "\n  actual:   %s", e.Actual)
	}
	if e.Fix != "" {
		fmt.Fprintf(&b, "\n  fix:      %s", e.Fix)
	}
	if e.Source != "" {
		fmt.Fprintf(&b, "\n  source:   %s", e.Source)
	}
	return b.String()
}

// NewError builds a diagnostic with just a kind and a message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// lexErrorAt builds a LexError positioned at a byte offset of the source.
func lexErrorAt(offset int, format string, args ...any) *Error {
	return &Error{
		Kind:       KindLexError,
		Message:    fmt.Sprintf(format, args...),
		Context:    fmt.Sprintf("byte offset %d", offset),
		Offset:     offset,
		Positioned: true,
	}
}

// FormatLog renders a user log line the way the extension layer prints it.
func FormatLog(component, message string) string {
	return fmt.Sprintf("LOG[%s]: %s", component, message)
}
