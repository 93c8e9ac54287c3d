package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/tajpulo/litua"
	"github.com/tajpulo/litua/internal/luahooks"
)

const (
	maxFiles      = 100
	fileExtension = ".lit"
)

type Options struct {
	// Explicit output path (-o); only valid for single-file processing
	Destination string
	// If true, no backup of an existing output file is created
	NoBackup bool
	// Print the token stream instead of processing
	DumpLexed bool
	// Print the parsed tree instead of processing
	DumpParsed bool
}

type Result struct {
	Path     string
	OutPath  string
	Duration time.Duration
}

// Processor runs whole documents through hook discovery, the transform
// pipeline and the output sink.
type Processor struct {
	opts Options
}

func NewProcessor(opts Options) *Processor {
	return &Processor{opts: opts}
}

// ProcessPath processes a single document, or every document beneath a
// directory. Directory documents are processed strictly sequentially; the
// pipeline owns one document at a time.
func (p *Processor) ProcessPath(path string) ([]Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path: %w", err)
	}

	if info.IsDir() {
		if p.opts.Destination != "" {
			return nil, fmt.Errorf("-o cannot be combined with a directory argument")
		}
		return p.processDirectory(path)
	}

	result, err := p.processFile(path, p.opts.Destination)
	if err != nil {
		return nil, err
	}
	return []Result{result}, nil
}

// findFiles walks the directory tree starting at root and returns a list of
// processable documents.
//
// If a .git directory is found, it will be used to load .gitignore patterns.
func (p *Processor) findFiles(root string) ([]string, error) {
	var files []string
	var patterns []gitignore.Pattern

	// If .git exists, set up gitignore patterns
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		// Add .git directory pattern
		patterns = append(patterns, gitignore.ParsePattern(".git/", nil))

		// Load .gitignore if it exists
		if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
			for _, p := range strings.Split(string(data), "\n") {
				if p = strings.TrimSpace(p); p != "" && !strings.HasPrefix(p, "#") {
					patterns = append(patterns, gitignore.ParsePattern(p, nil))
				}
			}
		}
	}

	matcher := gitignore.NewMatcher(patterns)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		pathComponents := strings.Split(relPath, string(os.PathSeparator))

		if len(patterns) > 0 {
			if matcher.Match(pathComponents, info.IsDir()) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if !info.IsDir() && strings.HasSuffix(path, fileExtension) {
			if len(files) >= maxFiles {
				return fmt.Errorf("max files limit reached (%d)", maxFiles)
			}
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found", fileExtension)
	}

	return files, nil
}

func (p *Processor) processDirectory(root string) ([]Result, error) {
	startTime := time.Now()
	slog.Debug("starting directory processing", "path", root)
	files, err := p.findFiles(root)
	if err != nil {
		return nil, err
	}

	slog.Debug("found files to process", "count", len(files), "duration", time.Since(startTime))

	var results []Result
	for _, file := range files {
		result, err := p.processFile(file, "")
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", file, err)
		}
		results = append(results, result)
	}

	slog.Debug("directory processing completed", "duration", time.Since(startTime), "processed", len(results))
	return results, nil
}

func (p *Processor) processFile(path, destination string) (Result, error) {
	startTime := time.Now()
	var result Result

	absPath, err := filepath.Abs(path)
	if err != nil {
		return result, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	result.Path = absPath

	slog.Debug("processing file", "path", absPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		return result, fmt.Errorf("error reading file: %w", err)
	}

	if p.opts.DumpLexed || p.opts.DumpParsed {
		return result, p.dump(string(content))
	}

	outPath := litua.ResolveOutputPath(absPath, destination)

	registry := litua.NewRegistry()
	bridge := luahooks.New(registry, luahooks.Config{
		Source:      absPath,
		Destination: outPath,
		Version:     litua.Version,
	})
	defer bridge.Close()

	hookFiles, err := bridge.LoadHookFiles(filepath.Dir(absPath))
	if err != nil {
		return result, err
	}
	slog.Debug("hook files loaded", "count", len(hookFiles))

	out, err := litua.NewPipeline(registry).Transform(string(content))
	if err != nil {
		return result, err
	}

	if !p.opts.NoBackup {
		if _, err := litua.NewBackupManager(outPath).CreateBackup(); err != nil {
			return result, fmt.Errorf("backup error: %w", err)
		}
	}

	if err := os.WriteFile(outPath, []byte(out), 0644); err != nil {
		return result, fmt.Errorf("failed to write output file: %w", err)
	}

	result.OutPath = outPath
	result.Duration = time.Since(startTime)
	slog.Debug("file processed", "path", absPath, "duration", result.Duration)

	return result, nil
}

// dump prints the token stream or tree of a document to standard output.
func (p *Processor) dump(source string) error {
	tokens, err := litua.NewLexer(source).Lex()
	if err != nil {
		return err
	}
	if p.opts.DumpLexed {
		return litua.DumpTokens(os.Stdout, tokens)
	}

	root, err := litua.NewParser(tokens).ParseDocument()
	if err != nil {
		return err
	}
	return litua.DumpTree(os.Stdout, root)
}
