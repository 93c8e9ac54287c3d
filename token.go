package litua

import "fmt"

// TokenKind enumerates the token variants emitted by the lexer.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenCallOpen
	TokenCallName
	TokenArgOpen
	TokenArgKey
	TokenArgEq
	TokenArgClose
	TokenCallClose
	TokenWhitespace
	TokenRawString
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "Text"
	case TokenCallOpen:
		return "CallOpen"
	case TokenCallName:
		return "CallName"
	case TokenArgOpen:
		return "ArgOpen"
	case TokenArgKey:
		return "ArgKey"
	case TokenArgEq:
		return "ArgEq"
	case TokenArgClose:
		return "ArgClose"
	case TokenCallClose:
		return "CallClose"
	case TokenWhitespace:
		return "Whitespace"
	case TokenRawString:
		return "RawString"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is one lexeme of a litua document. Offset is the UTF-8 byte offset
// where the token starts. Value carries the payload for Text, CallName,
// ArgKey, Whitespace and RawString tokens and is empty otherwise.
//
// RawString tokens additionally carry Depth (the number of '<' delimiter
// characters, 1..126) and the whitespace code points that delimit the
// verbatim body on each side.
type Token struct {
	Kind    TokenKind
	Value   string
	Offset  int
	Depth   int
	WS      string
	WSAfter string
}

func (t Token) String() string {
	switch t.Kind {
	case TokenText, TokenCallName, TokenArgKey, TokenWhitespace:
		return fmt.Sprintf("%s(%q) at %d", t.Kind, t.Value, t.Offset)
	case TokenRawString:
		return fmt.Sprintf("RawString(%q, depth=%d) at %d", t.Value, t.Depth, t.Offset)
	default:
		return fmt.Sprintf("%s at %d", t.Kind, t.Offset)
	}
}
