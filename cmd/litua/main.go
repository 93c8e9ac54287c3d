package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tajpulo/litua"
	"github.com/tajpulo/litua/internal/cli"
)

func main() {
	var destination string
	var debug, noBackup, dumpLexed, dumpParsed bool
	flag.StringVar(&destination, "o", "", "Output path (defaults to the input with a .out extension)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&noBackup, "no-backup", false, "Do not back up an existing output file")
	flag.BoolVar(&dumpLexed, "dump-lexed", false, "Print the token stream and exit")
	flag.BoolVar(&dumpParsed, "dump-parsed", false, "Print the parsed tree and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: litua [flags] <input>\n\nRead a document as a tree and apply Lua hook functions to its nodes.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	processor := cli.NewProcessor(cli.Options{
		Destination: destination,
		NoBackup:    noBackup,
		DumpLexed:   dumpLexed,
		DumpParsed:  dumpParsed,
	})

	results, err := processor.ProcessPath(flag.Arg(0))
	if err != nil {
		var diag *litua.Error
		if errors.As(err, &diag) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}

	for _, result := range results {
		if result.OutPath != "" {
			fmt.Printf("File '%s' read.\nFile '%s' written.\n", result.Path, result.OutPath)
		}
	}
}
