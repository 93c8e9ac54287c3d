package lsp

import (
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/sourcegraph/go-lsp"

	"github.com/tajpulo/litua"
)

// DocumentService tracks the open litua documents of one editing session
// and computes their diagnostics.
type DocumentService struct {
	mu        sync.Mutex
	documents map[lsp.DocumentURI]string
}

func NewDocumentService() *DocumentService {
	return &DocumentService{
		documents: make(map[lsp.DocumentURI]string),
	}
}

// Update stores the latest full text of a document and returns its
// diagnostics.
func (s *DocumentService) Update(uri lsp.DocumentURI, text string) []lsp.Diagnostic {
	s.mu.Lock()
	s.documents[uri] = text
	s.mu.Unlock()

	return Diagnose(text)
}

// Close forgets a document.
func (s *DocumentService) Close(uri lsp.DocumentURI) {
	s.mu.Lock()
	delete(s.documents, uri)
	s.mu.Unlock()
}

// URIToPath converts an LSP URI to a filesystem path
func (s *DocumentService) URIToPath(uri lsp.DocumentURI) (string, error) {
	u, err := url.Parse(string(uri))
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

// Diagnose lexes and parses a document and maps any failure onto an LSP
// diagnostic. A clean document yields an empty (non-nil) slice so that the
// client clears stale squiggles.
func Diagnose(text string) []lsp.Diagnostic {
	diagnostics := []lsp.Diagnostic{}

	tokens, err := litua.NewLexer(text).Lex()
	if err == nil {
		_, err = litua.NewParser(tokens).ParseDocument()
	}
	if err == nil {
		return diagnostics
	}

	var diag *litua.Error
	if !errors.As(err, &diag) {
		slog.Warn("non-diagnostic error while checking document", "error", err)
		return diagnostics
	}

	start := lsp.Position{}
	if diag.Positioned {
		line, col := lineCol(text, diag.Offset)
		start = lsp.Position{Line: line, Character: col}
	}
	end := lsp.Position{Line: start.Line, Character: start.Character + 1}

	message := diag.Message
	if diag.Expected != "" {
		message += " (expected " + diag.Expected + ")"
	}

	diagnostics = append(diagnostics, lsp.Diagnostic{
		Range:    lsp.Range{Start: start, End: end},
		Severity: lsp.Error,
		Source:   "litua",
		Message:  message,
	})
	return diagnostics
}
