package luahooks

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/tajpulo/litua"
)

// maxFormatArgs bounds the positional substitutions %1..%9 of Litua.format.
const maxFormatArgs = 9

// Format substitutes %1..%9 in template with the stringified arguments.
// Passing more than nine positional values is a FormatOverflow diagnostic.
func Format(template string, args []lua.LValue) (string, error) {
	if len(args) > maxFormatArgs {
		return "", &litua.Error{
			Kind:     litua.KindFormatOverflow,
			Message:  "Litua.format supports at most 9 positional substitutions",
			Expected: fmt.Sprintf("at most %d values", maxFormatArgs),
			Actual:   fmt.Sprintf("%d values", len(args)),
			Fix:      "split the message into several format calls",
		}
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '%' && i+1 < len(template) {
			next := template[i+1]
			if next >= '1' && next <= '9' {
				pos := int(next - '1')
				if pos < len(args) {
					b.WriteString(formatValue(args[pos]))
				} else {
					b.WriteString("nil")
				}
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// formatValue renders a Lua value for interpolation: text is single-quoted
// with backslash-escaped quotes, mappings render as { [k] = v, ... }.
func formatValue(value lua.LValue) string {
	switch v := value.(type) {
	case lua.LString:
		return "'" + strings.ReplaceAll(string(v), "'", `\'`) + "'"
	case *lua.LTable:
		return formatTable(v)
	case *lua.LNilType:
		return "nil"
	default:
		return v.String()
	}
}

func formatTable(tbl *lua.LTable) string {
	type entry struct{ key, value string }
	var entries []entry
	tbl.ForEach(func(k, v lua.LValue) {
		entries = append(entries, entry{formatValue(k), formatValue(v)})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	if len(entries) == 0 {
		return "{ }"
	}

	var b strings.Builder
	b.WriteString("{ ")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%s] = %s", e.key, e.value)
	}
	b.WriteString(" }")
	return b.String()
}
