package litua

import (
	"fmt"
	"io"
	"strings"
)

// DumpTokens writes the token stream one token per line. This is the
// --dump-lexed output used to debug documents and to pin the lexer in
// golden tests.
func DumpTokens(w io.Writer, tokens []Token) error {
	for _, tok := range tokens {
		if _, err := fmt.Fprintf(w, "Token= %s\n", tok); err != nil {
			return fmt.Errorf("writing token dump: %w", err)
		}
	}
	return nil
}

// DumpTree writes an indented rendition of the parsed tree. This is the
// --dump-parsed output.
func DumpTree(w io.Writer, node *Node) error {
	return dumpNode(w, node, 0)
}

func dumpNode(w io.Writer, node *Node, indent int) error {
	pad := strings.Repeat("  ", indent)
	if _, err := fmt.Fprintf(w, "%scall %q\n", pad, node.Call); err != nil {
		return fmt.Errorf("writing tree dump: %w", err)
	}
	for _, key := range node.ArgKeys(true) {
		if _, err := fmt.Fprintf(w, "%s  arg %q\n", pad, key); err != nil {
			return fmt.Errorf("writing tree dump: %w", err)
		}
		if err := dumpElements(w, node.Args[key], indent+2); err != nil {
			return err
		}
	}
	return dumpElements(w, node.Content, indent+1)
}

func dumpElements(w io.Writer, els []Element, indent int) error {
	pad := strings.Repeat("  ", indent)
	for _, el := range els {
		switch v := el.(type) {
		case Text:
			if _, err := fmt.Fprintf(w, "%stext %q\n", pad, string(v)); err != nil {
				return fmt.Errorf("writing tree dump: %w", err)
			}
		case *Node:
			if err := dumpNode(w, v, indent); err != nil {
				return err
			}
		}
	}
	return nil
}
