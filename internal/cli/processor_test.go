package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestProcessFileWithoutHooks(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.lit")
	writeFile(t, input, "a{left-curly-brace}b{right-curly-brace}c")

	p := NewProcessor(Options{NoBackup: true})
	results, err := p.ProcessPath(input)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, filepath.Join(dir, "doc.out"), results[0].OutPath)

	out, err := os.ReadFile(results[0].OutPath)
	require.NoError(t, err)
	require.Equal(t, "a{b}c", string(out))
}

func TestProcessFileLoadsHookScripts(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.lit")
	writeFile(t, input, "{item}a{item}b")
	writeFile(t, filepath.Join(dir, "hooks.lua"), `
		Litua.on_setup(function()
			Litua.global.n = 0
		end)
		Litua.convert_node_to_string("item", function(node, depth)
			Litua.global.n = Litua.global.n + 1
			return "(" .. Litua.global.n .. ") "
		end)
	`)

	p := NewProcessor(Options{NoBackup: true})
	results, err := p.ProcessPath(input)
	require.NoError(t, err)

	out, err := os.ReadFile(results[0].OutPath)
	require.NoError(t, err)
	require.Equal(t, "(1) a(2) b", string(out))
}

func TestProcessFileHonoursDestination(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.lit")
	writeFile(t, input, "hello")

	dest := filepath.Join(dir, "custom.txt")
	p := NewProcessor(Options{Destination: dest, NoBackup: true})
	results, err := p.ProcessPath(input)
	require.NoError(t, err)
	require.Equal(t, dest, results[0].OutPath)

	out, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))
}

func TestProcessFileCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.lit")
	writeFile(t, input, "fresh")
	writeFile(t, filepath.Join(dir, "doc.out"), "stale")

	p := NewProcessor(Options{})
	_, err := p.ProcessPath(input)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "doc.out.*.bak.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	out, err := os.ReadFile(filepath.Join(dir, "doc.out"))
	require.NoError(t, err)
	require.Equal(t, "fresh", string(out))
}

func TestProcessFileSurfacesLexErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.lit")
	writeFile(t, input, "{unclosed")

	p := NewProcessor(Options{NoBackup: true})
	_, err := p.ProcessPath(input)
	require.Error(t, err)
	require.Contains(t, err.Error(), "document ends")
}

func TestProcessDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))

	writeFile(t, filepath.Join(dir, "one.lit"), "first")
	writeFile(t, filepath.Join(dir, "sub", "two.lit"), "second")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	p := NewProcessor(Options{NoBackup: true})
	results, err := p.ProcessPath(dir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	out, err := os.ReadFile(filepath.Join(dir, "one.out"))
	require.NoError(t, err)
	require.Equal(t, "first", string(out))

	out, err = os.ReadFile(filepath.Join(dir, "sub", "two.out"))
	require.NoError(t, err)
	require.Equal(t, "second", string(out))
}

func TestProcessDirectoryHonoursGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0755))

	writeFile(t, filepath.Join(dir, ".gitignore"), "drafts/\n")
	writeFile(t, filepath.Join(dir, "keep.lit"), "kept")
	writeFile(t, filepath.Join(dir, "drafts", "skip.lit"), "skipped")

	p := NewProcessor(Options{NoBackup: true})
	results, err := p.ProcessPath(dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, filepath.Join(dir, "keep.lit"), results[0].Path)
}

func TestProcessDirectoryRejectsDestination(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc.lit"), "x")

	p := NewProcessor(Options{Destination: "out.txt"})
	_, err := p.ProcessPath(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "directory")
}
