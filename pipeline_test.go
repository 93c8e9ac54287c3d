package litua

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransformWithoutHooksRoundTrips(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "plain text",
			source: "hello world",
			want:   "hello world",
		},
		{
			name:   "calls reserialize identically",
			source: "a{p[k=v] hi}b",
			want:   "a{p[k=v] hi}b",
		},
		{
			name:   "curly brace escapes reduce to literals",
			source: "a{left-curly-brace}b{right-curly-brace}c",
			want:   "a{b}c",
		},
		{
			name:   "raw strings reduce to their verbatim text",
			source: "a{< {p} >}b",
			want:   "a {p} b",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := NewPipeline(NewRegistry()).Transform(tc.source)
			require.NoError(t, err)
			require.Equal(t, tc.want, out)
		})
	}
}

// Scenario: enumerate items through state shared between setup and a
// converter.
func TestTransformEnumeration(t *testing.T) {
	reg := NewRegistry()

	n := -1
	require.NoError(t, reg.Register(PhaseOnSetup, "", func() error {
		n = 0
		return nil
	}))
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "item", func(node *Node, depth int) (string, error) {
		n++
		return fmt.Sprintf("(%d) ", n), nil
	}))

	out, err := NewPipeline(reg).Transform("{item}a{item}b{item}c")
	require.NoError(t, err)
	require.Equal(t, "(1) a(2) b(3) c", out)
}

// Scenario: a let call registers one converter per argument; later
// occurrences of the argument name expand to its value.
func TestTransformArgumentReplacement(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(PhaseConvertNodeToString, "let", func(node *Node, depth int) (string, error) {
		for _, key := range node.ArgKeys(false) {
			var value strings.Builder
			for _, el := range node.Args[key] {
				if text, ok := el.(Text); ok {
					value.WriteString(string(text))
				}
			}
			replacement := value.String()
			if err := reg.Register(PhaseConvertNodeToString, key, func(node *Node, depth int) (string, error) {
				return replacement, nil
			}); err != nil {
				return "", err
			}
		}
		return "", nil
	}))

	out, err := NewPipeline(reg).Transform("{let[who=tajpulo]}Hello {who}")
	require.NoError(t, err)
	require.Equal(t, "Hello tajpulo", out)
}

// Scenario: a code call projects its raw-string content onto verbatim text.
func TestTransformRawStringProjection(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "code", func(node *Node, depth int) (string, error) {
		return node.TextOnly(), nil
	}))

	out, err := NewPipeline(reg).Transform(`{code {< println!("{x}"); >}}`)
	require.NoError(t, err)
	require.Equal(t, ` println!("{x}"); `, out)
}

// Scenario: build XML through substitution bytes restored by a document
// converter.
func TestTransformNestedXMLBuild(t *testing.T) {
	const subLT, subGT = "\x01", "\x02"

	reg := NewRegistry()
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "", func(node *Node, depth int) (string, error) {
		var inner strings.Builder
		for _, el := range node.Content {
			if text, ok := el.(Text); ok {
				inner.WriteString(string(text))
			}
		}
		body := strings.TrimSpace(inner.String())
		return subLT + node.Call + subGT + body + subLT + "/" + node.Call + subGT, nil
	}))
	require.NoError(t, reg.Register(PhaseConvertNodeToString, DocumentCall, func(node *Node, depth int) (string, error) {
		var out strings.Builder
		for _, el := range node.Content {
			if text, ok := el.(Text); ok {
				out.WriteString(string(text))
			}
		}
		escaped := strings.ReplaceAll(out.String(), "&", "&amp;")
		escaped = strings.ReplaceAll(escaped, subLT, "<")
		escaped = strings.ReplaceAll(escaped, subGT, ">")
		return escaped, nil
	}))

	out, err := NewPipeline(reg).Transform("{main {p Hello & World}}")
	require.NoError(t, err)
	require.Equal(t, "<main><p>Hello &amp; World</p></main>", out)
}

func TestTransformStringPhasesChainInOrder(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(PhaseModifyInitialString, "", func(text string) (string, error) {
		return strings.ReplaceAll(text, "@@", "{item}"), nil
	}))
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "item", func(node *Node, depth int) (string, error) {
		return "X", nil
	}))
	require.NoError(t, reg.Register(PhaseModifyFinalString, "", func(text string) (string, error) {
		return text + "!", nil
	}))
	require.NoError(t, reg.Register(PhaseModifyFinalString, "", func(text string) (string, error) {
		return "[" + text + "]", nil
	}))

	out, err := NewPipeline(reg).Transform("a@@b")
	require.NoError(t, err)
	require.Equal(t, "[aXb!]", out)
}

func TestTransformModifyNodeReplacements(t *testing.T) {
	t.Run("replace with text", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(PhaseModifyNode, "secret", func(node *Node, depth int, filter string) (Element, error) {
			return Text("[redacted]"), nil
		}))

		out, err := NewPipeline(reg).Transform("a{secret hidden}b")
		require.NoError(t, err)
		require.Equal(t, "a[redacted]b", out)
	})

	t.Run("replace with another node", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(PhaseModifyNode, "old", func(node *Node, depth int, filter string) (Element, error) {
			replacement := NewNode("new")
			replacement.Args[MetaWhitespace] = []Element{Text(" ")}
			replacement.Content = node.Content
			return replacement, nil
		}))

		out, err := NewPipeline(reg).Transform("{old x}")
		require.NoError(t, err)
		require.Equal(t, "{new x}", out)
	})

	t.Run("nil replacement is fatal", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(PhaseModifyNode, "p", func(node *Node, depth int, filter string) (Element, error) {
			return nil, nil
		}))

		_, err := NewPipeline(reg).Transform("{p x}")
		require.Error(t, err)

		var diag *Error
		require.ErrorAs(t, err, &diag)
		require.Equal(t, KindHookReturnShape, diag.Kind)
		require.NotEmpty(t, diag.Source)
	})

	t.Run("hook receives the matching filter", func(t *testing.T) {
		reg := NewRegistry()
		var filters []string
		hook := func(node *Node, depth int, filter string) (Element, error) {
			if node.Call == "p" || filter == "" && node.Call != DocumentCall {
				filters = append(filters, filter)
			}
			return node, nil
		}
		require.NoError(t, reg.Register(PhaseModifyNode, "p", hook))
		require.NoError(t, reg.Register(PhaseModifyNode, "", hook))

		_, err := NewPipeline(reg).Transform("{p x}")
		require.NoError(t, err)
		require.Equal(t, []string{"p", ""}, filters)
	})
}

// Reader hooks receive copies; mutating them must not affect the canonical
// tree.
func TestReaderPhasesAreIsolated(t *testing.T) {
	reg := NewRegistry()

	visits := 0
	reader := func(node *Node, depth int) error {
		visits++
		node.Call = "vandalized"
		node.Content = append(node.Content, Text("vandalism"))
		return nil
	}
	require.NoError(t, reg.Register(PhaseReadNewNode, "", ReaderHook(reader)))
	require.NoError(t, reg.Register(PhaseReadModifiedNode, "", ReaderHook(reader)))

	out, err := NewPipeline(reg).Transform("a{p x}b")
	require.NoError(t, err)
	require.Equal(t, "a{p x}b", out)
	// document and p, visited by both reader phases
	require.Equal(t, 4, visits)
}

func TestReaderDepthIsZeroBasedFromRoot(t *testing.T) {
	reg := NewRegistry()

	depths := map[string]int{}
	require.NoError(t, reg.Register(PhaseReadNewNode, "", func(node *Node, depth int) error {
		depths[node.Call] = depth
		return nil
	}))

	_, err := NewPipeline(reg).Transform("{a {b {c x}}}{d[k={e}]}")
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		DocumentCall: 0,
		"a":          1,
		"b":          2,
		"c":          3,
		"d":          1,
		"e":          2,
	}, depths)
}

func TestTeardownRunsExactlyOnceOnFailure(t *testing.T) {
	reg := NewRegistry()

	teardowns := 0
	require.NoError(t, reg.Register(PhaseOnTeardown, "", func() error {
		teardowns++
		return nil
	}))
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "boom", func(node *Node, depth int) (string, error) {
		return "", fmt.Errorf("converter exploded")
	}))

	_, err := NewPipeline(reg).Transform("{boom}")
	require.Error(t, err)
	require.Contains(t, err.Error(), "converter exploded")
	require.Equal(t, 1, teardowns)
}

func TestTeardownFailureIsReportedAfterPrimary(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(PhaseOnTeardown, "", func() error {
		return fmt.Errorf("teardown exploded")
	}))
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "boom", func(node *Node, depth int) (string, error) {
		return "", fmt.Errorf("converter exploded")
	}))

	_, err := NewPipeline(reg).Transform("{boom}")
	require.Error(t, err)
	require.Contains(t, err.Error(), "converter exploded")
	require.Contains(t, err.Error(), "teardown exploded")
}

func TestTeardownRunsOnSuccess(t *testing.T) {
	reg := NewRegistry()

	teardowns := 0
	require.NoError(t, reg.Register(PhaseOnTeardown, "", func() error {
		teardowns++
		return nil
	}))

	_, err := NewPipeline(reg).Transform("hello")
	require.NoError(t, err)
	require.Equal(t, 1, teardowns)
}

// The reserved brace escapes ignore user converters on the empty filter.
func TestCurlyEscapesIgnoreEmptyFilterConverter(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "", func(node *Node, depth int) (string, error) {
		if node.Call == DocumentCall {
			return node.ToString(), nil
		}
		return "<<never>>", nil
	}))

	out, err := NewPipeline(reg).Transform("a{left-curly-brace}b{right-curly-brace}c")
	require.NoError(t, err)
	require.Equal(t, "a{b}c", out)
}

// A converter receives the node with args and content already reduced to
// strings.
func TestConverterSeesReducedChildren(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(PhaseConvertNodeToString, "inner", func(node *Node, depth int) (string, error) {
		return "INNER", nil
	}))
	require.NoError(t, reg.Register(PhaseConvertNodeToString, "outer", func(node *Node, depth int) (string, error) {
		require.Equal(t, []Element{Text("INNER")}, node.Args["k"])
		for _, el := range node.Content {
			_, isNode := el.(*Node)
			require.False(t, isNode)
		}
		return node.TextOnly(), nil
	}))

	out, err := NewPipeline(reg).Transform("{outer[k={inner}] a{inner}b}")
	require.NoError(t, err)
	require.Equal(t, "aINNERb", out)
}
