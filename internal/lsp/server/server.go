package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	iLsp "github.com/tajpulo/litua/internal/lsp"
)

// Server is the litua-ls request handler: a small language server that
// lexes and parses litua documents as they change and publishes positioned
// diagnostics. There is no downstream language server to proxy to; the
// litua grammar is checked in-process.
type Server struct {
	conn *jsonrpc2.Conn

	// tracking for method request counts
	trackRequestCount sync.Map

	docService *iLsp.DocumentService
}

func NewServer() *Server {
	return &Server{
		docService: iLsp.NewDocumentService(),
	}
}

func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	if s.conn == nil {
		s.conn = conn
	}
	slog.Info("received request", "method", req.Method, "id", req.ID)
	reqCount, _ := s.trackRequestCount.LoadOrStore(req.Method, 0)
	if count, ok := reqCount.(int); ok {
		s.trackRequestCount.Store(req.Method, count+1)
	}

	switch req.Method {
	case "initialize":
		slog.Info("initializing lsp server")

		var initParams lsp.InitializeParams
		if err := json.Unmarshal(*req.Params, &initParams); err != nil {
			return nil, err
		}

		syncKind := lsp.TDSKFull
		return lsp.InitializeResult{
			Capabilities: lsp.ServerCapabilities{
				TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
					Kind: &syncKind,
				},
			},
		}, nil

	case "initialized":
		slog.Info("server initialized")
		return nil, nil

	case "shutdown":
		slog.Info("shutting down")
		s.printDebugStats()
		return nil, nil

	case "exit":
		slog.Info("exiting")
		os.Exit(0)
		return nil, nil

	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}

		diagnostics := s.docService.Update(params.TextDocument.URI, params.TextDocument.Text)
		return nil, s.publishDiagnostics(ctx, params.TextDocument.URI, diagnostics)

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}

		if len(params.ContentChanges) == 0 {
			return nil, nil
		}

		// full sync: the last change carries the whole document
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		diagnostics := s.docService.Update(params.TextDocument.URI, text)
		return nil, s.publishDiagnostics(ctx, params.TextDocument.URI, diagnostics)

	case "textDocument/didSave":
		return nil, nil

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		s.docService.Close(params.TextDocument.URI)
		return nil, s.publishDiagnostics(ctx, params.TextDocument.URI, []lsp.Diagnostic{})

	default:
		// every other capability is unsupported; answer null so clients
		// keep the session alive
		slog.Debug("unsupported method", "method", req.Method)
		return nil, nil
	}
}

func (s *Server) publishDiagnostics(ctx context.Context, uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Notify(ctx, "textDocument/publishDiagnostics", lsp.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func (s *Server) printDebugStats() {
	s.trackRequestCount.Range(func(key, value interface{}) bool {
		msg := fmt.Sprintf("Method: %-30s Count: %d", key.(string), value.(int))
		slog.Debug(msg)
		return true
	})
}
