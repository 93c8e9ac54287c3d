package litua

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestDumpTokensGolden(t *testing.T) {
	source, err := os.ReadFile("testdata/dump/basic.lit")
	require.NoError(t, err)

	tokens, err := NewLexer(string(source)).Lex()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DumpTokens(&buf, tokens))

	golden.Assert(t, buf.String(), "dump/basic.tokens.golden")
}

func TestDumpTreeGolden(t *testing.T) {
	source, err := os.ReadFile("testdata/dump/basic.lit")
	require.NoError(t, err)

	root, err := Parse(string(source))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DumpTree(&buf, root))

	golden.Assert(t, buf.String(), "dump/basic.tree.golden")
}
