package litua

import (
	"sort"
	"strings"
)

// Meta-keys carry lexer-level whitespace that must survive into the tree so
// that identity serialization can round-trip the source. All meta-keys start
// with '=' which is unreachable for user-written argument keys.
const (
	MetaWhitespace      = "=whitespace"
	MetaWhitespaceAfter = "=whitespace-after"
)

// Reserved call names that always reduce to literal braces during string
// conversion, before any user hook is consulted.
const (
	CallLeftCurlyBrace  = "left-curly-brace"
	CallRightCurlyBrace = "right-curly-brace"
)

// DocumentCall is the call name of the synthetic root node.
const DocumentCall = "document"

// Element is one child slot of a node: either literal text or a nested call.
type Element interface {
	isElement()
}

// Text is a literal text element.
type Text string

func (Text) isElement() {}

// Node is a parsed call: a name, keyword arguments and nested content.
//
// A raw string is modeled as a node whose Call is a run of 1..126 '<'
// characters and whose Content holds the single verbatim text between the
// delimiters.
type Node struct {
	Call    string
	Args    map[string][]Element
	Content []Element

	// tostring, when set, replaces identity serialization for this one
	// instance. The pipeline uses it to give the document root a
	// concatenation-of-children serialization.
	tostring func(*Node) string
}

func (*Node) isElement() {}

// NewNode returns an empty node with the given call name.
func NewNode(call string) *Node {
	return &Node{Call: call, Args: make(map[string][]Element)}
}

// SetToString installs an instance-level serialization override.
func (n *Node) SetToString(f func(*Node) string) { n.tostring = f }

// IsRaw reports whether the node is the internal raw-string form.
func (n *Node) IsRaw() bool {
	if n.Call == "" {
		return false
	}
	for _, r := range n.Call {
		if r != openRaw {
			return false
		}
	}
	return true
}

// Copy returns a deep, independent duplicate of the node.
func (n *Node) Copy() *Node {
	dup := &Node{
		Call:     n.Call,
		Args:     make(map[string][]Element, len(n.Args)),
		Content:  copyElements(n.Content),
		tostring: n.tostring,
	}
	for key, values := range n.Args {
		dup.Args[key] = copyElements(values)
	}
	return dup
}

// CopyElement deep-copies a child slot.
func CopyElement(el Element) Element {
	switch v := el.(type) {
	case Text:
		return v
	case *Node:
		return v.Copy()
	default:
		return el
	}
}

func copyElements(els []Element) []Element {
	if els == nil {
		return nil
	}
	dup := make([]Element, len(els))
	for i, el := range els {
		dup[i] = CopyElement(el)
	}
	return dup
}

// ArgKeys returns the argument keys in lexicographic order. Meta-keys are
// excluded unless includeMeta is set.
func (n *Node) ArgKeys(includeMeta bool) []string {
	keys := make([]string, 0, len(n.Args))
	for key := range n.Args {
		if !includeMeta && strings.HasPrefix(key, "=") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// metaString concatenates the text elements stored under a meta-key.
func (n *Node) metaString(key string) string {
	var b strings.Builder
	for _, el := range n.Args[key] {
		if text, ok := el.(Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// TextOnly projects the node onto its literal text: the concatenation of all
// text in Content, recursing into child nodes, discarding call names and
// arguments. For a raw-string node the delimiting whitespace belongs to the
// verbatim region and is included.
func (n *Node) TextOnly() string {
	var b strings.Builder
	if n.IsRaw() {
		b.WriteString(n.metaString(MetaWhitespace))
	}
	for _, el := range n.Content {
		switch v := el.(type) {
		case Text:
			b.WriteString(string(v))
		case *Node:
			b.WriteString(v.TextOnly())
		}
	}
	if n.IsRaw() {
		b.WriteString(n.metaString(MetaWhitespaceAfter))
	}
	return b.String()
}

// IdentityString reserializes the node to a form that lexes back to an
// equivalent tree. Argument keys are iterated in lexicographic order;
// repeated source groups for one key collapse into a single group holding
// the key's whole value sequence.
func (n *Node) IdentityString() string {
	var b strings.Builder
	n.writeIdentity(&b)
	return b.String()
}

func (n *Node) writeIdentity(b *strings.Builder) {
	if n.IsRaw() {
		ws := n.metaString(MetaWhitespace)
		if ws == "" {
			ws = " "
		}
		wsAfter := n.metaString(MetaWhitespaceAfter)
		if wsAfter == "" {
			wsAfter = " "
		}
		b.WriteByte(openCall)
		b.WriteString(n.Call)
		b.WriteString(ws)
		writeElements(b, n.Content)
		b.WriteString(wsAfter)
		b.WriteString(strings.Repeat(string(closeRaw), len(n.Call)))
		b.WriteByte(closeCall)
		return
	}

	b.WriteByte(openCall)
	b.WriteString(n.Call)
	for _, key := range n.ArgKeys(false) {
		b.WriteByte(openArg)
		b.WriteString(key)
		b.WriteByte(assign)
		writeElements(b, n.Args[key])
		b.WriteByte(closeArg)
	}

	ws := n.metaString(MetaWhitespace)
	if ws == "" && len(n.Content) > 0 {
		ws = " "
	}
	b.WriteString(ws)
	writeElements(b, n.Content)
	b.WriteString(n.metaString(MetaWhitespaceAfter))
	b.WriteByte(closeCall)
}

func writeElements(b *strings.Builder, els []Element) {
	for _, el := range els {
		switch v := el.(type) {
		case Text:
			b.WriteString(string(v))
		case *Node:
			v.writeIdentity(b)
		}
	}
}

// ToString dispatches to identity serialization unless the node carries an
// instance-level override.
func (n *Node) ToString() string {
	if n.tostring != nil {
		return n.tostring(n)
	}
	return n.IdentityString()
}
