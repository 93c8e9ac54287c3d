package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/tajpulo/litua/internal/lsp/server"
)

// stdRWC adapts the process stdio to the jsonrpc2 stream interface.
// Closing is a no-op; the client owns the process lifetime.
type stdRWC struct{}

func (stdRWC) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdRWC) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdRWC) Close() error                { return nil }

func main() {
	var debug bool
	var logPath string
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&logPath, "log", "", "Log file path (defaults to a temporary file)")
	flag.Parse()

	// stdout carries the protocol, so logs go to a file
	logFile, err := openLogFile(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: level,
	})))

	slog.Info("starting litua-ls", "logfile", logFile.Name())

	s := server.NewServer()

	conn := jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(stdRWC{}, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.Handle),
	)
	<-conn.DisconnectNotify()

	slog.Info("client disconnected")
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return os.CreateTemp("", "litua-ls-*.log")
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
