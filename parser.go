package litua

import (
	"strings"
)

// Parser consumes a lexed token stream and produces the document tree.
//
// The admissible token sequences are an implicit contract with the lexer;
// a violation surfaces as a ParseError rather than a panic.
type Parser struct {
	tokens []Token
	pos    int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseDocument parses the whole token stream and returns the synthetic
// root node with call name "document" and empty args.
func (p *Parser) ParseDocument() (*Node, error) {
	root := NewNode(DocumentCall)

	for p.pos < len(p.tokens) {
		el, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		root.Content = append(root.Content, el)
	}

	return root, nil
}

// Parse lexes and parses a source document in one step.
func Parse(source string) (*Node, error) {
	tokens, err := NewLexer(source).Lex()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseDocument()
}

func (p *Parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *Parser) next() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	tok, ok := p.next()
	if !ok {
		return Token{}, p.unexpectedEOF(kind.String())
	}
	if tok.Kind != kind {
		return Token{}, p.unexpectedToken(tok, kind.String())
	}
	return tok, nil
}

func (p *Parser) unexpectedToken(tok Token, want string) *Error {
	return &Error{
		Kind:       KindParseError,
		Message:    "unexpected token in the lexer token stream",
		Context:    tok.String(),
		Expected:   want,
		Actual:     tok.Kind.String(),
		Offset:     tok.Offset,
		Positioned: true,
	}
}

func (p *Parser) unexpectedEOF(want string) *Error {
	return &Error{
		Kind:     KindParseError,
		Message:  "unexpected end of the lexer token stream",
		Expected: want,
	}
}

// parseElement parses one Text, RawString or function call construct.
func (p *Parser) parseElement() (Element, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.unexpectedEOF("Text, RawString or CallOpen")
	}

	switch tok.Kind {
	case TokenText:
		return Text(tok.Value), nil
	case TokenRawString:
		return rawNode(tok), nil
	case TokenCallOpen:
		return p.parseCall()
	default:
		return nil, p.unexpectedToken(tok, "Text, RawString or CallOpen")
	}
}

// rawNode synthesizes the internal raw-string node form: the call name is
// the run of '<' delimiter characters and the verbatim body is the single
// content element. The delimiting whitespace survives in the meta-keys.
func rawNode(tok Token) *Node {
	node := NewNode(strings.Repeat(string(openRaw), tok.Depth))
	node.Args[MetaWhitespace] = []Element{Text(tok.WS)}
	node.Args[MetaWhitespaceAfter] = []Element{Text(tok.WSAfter)}
	node.Content = []Element{Text(tok.Value)}
	return node
}

// parseCall parses a function call. The CallOpen token is already consumed.
func (p *Parser) parseCall() (*Node, error) {
	name, err := p.expect(TokenCallName)
	if err != nil {
		return nil, err
	}
	node := NewNode(name.Value)

	for {
		tok, ok := p.peek()
		if !ok {
			return nil, p.unexpectedEOF(TokenCallClose.String())
		}
		if tok.Kind != TokenArgOpen {
			break
		}
		if err := p.parseArg(node); err != nil {
			return nil, err
		}
	}

	if tok, ok := p.peek(); ok && tok.Kind == TokenWhitespace {
		p.pos++
		node.Args[MetaWhitespace] = []Element{Text(tok.Value)}

		for {
			tok, ok := p.peek()
			if !ok {
				return nil, p.unexpectedEOF(TokenCallClose.String())
			}
			if tok.Kind == TokenCallClose {
				break
			}
			el, err := p.parseElement()
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, el)
		}
	}

	if _, err := p.expect(TokenCallClose); err != nil {
		return nil, err
	}
	return node, nil
}

// parseArg parses one [key=value] group. Keys may repeat across groups;
// later groups append to the same key's value sequence.
func (p *Parser) parseArg(node *Node) error {
	if _, err := p.expect(TokenArgOpen); err != nil {
		return err
	}
	key, err := p.expect(TokenArgKey)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenArgEq); err != nil {
		return err
	}

	for {
		tok, ok := p.peek()
		if !ok {
			return p.unexpectedEOF(TokenArgClose.String())
		}
		if tok.Kind == TokenArgClose {
			break
		}
		el, err := p.parseElement()
		if err != nil {
			return err
		}
		node.Args[key.Value] = append(node.Args[key.Value], el)
	}

	_, err = p.expect(TokenArgClose)
	return err
}
