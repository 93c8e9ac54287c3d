package luahooks

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/tajpulo/litua"
)

// publishedAttributes is the only attribute set a script may touch on a
// node. Anything else raises a NodeAccess diagnostic.
var publishedAttributes = "call, args, content, copy, is_node, tostring, totext"

// marshalElement converts a tree element into its Lua representation:
// text becomes a string, a node becomes a restricted proxy table.
func marshalElement(L *lua.LState, el litua.Element) lua.LValue {
	switch v := el.(type) {
	case litua.Text:
		return lua.LString(v)
	case *litua.Node:
		return marshalNode(L, v)
	default:
		return lua.LNil
	}
}

// marshalNode builds the proxy table for a node. The proxy keeps the actual
// data in a hidden backing table; its metatable restricts reads and writes
// to the published attribute set and provides the copy/tostring/totext
// methods.
func marshalNode(L *lua.LState, node *litua.Node) *lua.LTable {
	backing := L.NewTable()
	backing.RawSetString("call", lua.LString(node.Call))

	args := L.NewTable()
	for _, key := range node.ArgKeys(true) {
		values := L.NewTable()
		for _, el := range node.Args[key] {
			values.Append(marshalElement(L, el))
		}
		args.RawSetString(key, values)
	}
	backing.RawSetString("args", args)

	content := L.NewTable()
	for _, el := range node.Content {
		content.Append(marshalElement(L, el))
	}
	backing.RawSetString("content", content)

	proxy := L.NewTable()
	mt := L.NewTable()

	mt.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		switch key {
		case "call", "args", "content":
			L.Push(backing.RawGetString(key))
		case "is_node":
			L.Push(lua.LTrue)
		case "copy":
			L.Push(L.NewFunction(func(L *lua.LState) int {
				dup, err := nodeFromBacking(L, backing)
				if err != nil {
					L.RaiseError("%s", err.Error())
					return 0
				}
				L.Push(marshalNode(L, dup.Copy()))
				return 1
			}))
		case "tostring":
			L.Push(L.NewFunction(func(L *lua.LState) int {
				current, err := nodeFromBacking(L, backing)
				if err != nil {
					L.RaiseError("%s", err.Error())
					return 0
				}
				L.Push(lua.LString(current.ToString()))
				return 1
			}))
		case "totext":
			L.Push(L.NewFunction(func(L *lua.LState) int {
				current, err := nodeFromBacking(L, backing)
				if err != nil {
					L.RaiseError("%s", err.Error())
					return 0
				}
				L.Push(lua.LString(current.TextOnly()))
				return 1
			}))
		default:
			L.RaiseError("%s", nodeAccessError("read", key).Error())
			return 0
		}
		return 1
	}))

	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		value := L.Get(3)
		switch key {
		case "call":
			if value.Type() != lua.LTString {
				L.RaiseError("%s", shapeError("a node's call attribute must be a string, not %s", value.Type()).Error())
				return 0
			}
			backing.RawSetString("call", value)
		case "args", "content":
			if value.Type() != lua.LTTable {
				L.RaiseError("%s", shapeError("a node's %s attribute must be a table, not %s", key, value.Type()).Error())
				return 0
			}
			backing.RawSetString(key, value)
		default:
			L.RaiseError("%s", nodeAccessError("write", key).Error())
			return 0
		}
		return 0
	}))

	L.SetMetatable(proxy, mt)
	return proxy
}

func nodeAccessError(op, attribute string) *litua.Error {
	return &litua.Error{
		Kind:     litua.KindNodeAccess,
		Message:  fmt.Sprintf("cannot %s attribute %q of a node", op, attribute),
		Expected: "one of " + publishedAttributes,
		Actual:   attribute,
	}
}

func shapeError(format string, args ...any) *litua.Error {
	return litua.NewError(litua.KindHookReturnShape, format, args...)
}

// nodeFromBacking rebuilds a Go node from the current state of a proxy's
// backing table.
func nodeFromBacking(L *lua.LState, backing *lua.LTable) (*litua.Node, error) {
	return unmarshalNodeFields(
		L,
		backing.RawGetString("call"),
		backing.RawGetString("args"),
		backing.RawGetString("content"),
	)
}

// unmarshalNode converts a Lua value back into a tree node. Both proxy
// tables and plain {call=..., args=..., content=...} tables are accepted,
// so a hook may build a replacement node from scratch.
func unmarshalNode(L *lua.LState, value lua.LValue) (*litua.Node, error) {
	tbl, ok := value.(*lua.LTable)
	if !ok {
		return nil, shapeError("expected a node table, got %s", value.Type())
	}
	return unmarshalNodeFields(
		L,
		L.GetField(tbl, "call"),
		L.GetField(tbl, "args"),
		L.GetField(tbl, "content"),
	)
}

func unmarshalNodeFields(L *lua.LState, call, args, content lua.LValue) (*litua.Node, error) {
	callStr, ok := call.(lua.LString)
	if !ok {
		return nil, shapeError("a node requires a string call attribute, got %s", call.Type())
	}
	node := litua.NewNode(string(callStr))

	if args != lua.LNil {
		argsTbl, ok := args.(*lua.LTable)
		if !ok {
			return nil, shapeError("a node's args attribute must be a table, got %s", args.Type())
		}
		var convErr error
		argsTbl.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			keyStr, ok := k.(lua.LString)
			if !ok {
				convErr = shapeError("argument keys must be strings, got %s", k.Type())
				return
			}
			values, err := unmarshalElements(L, v)
			if err != nil {
				convErr = err
				return
			}
			node.Args[string(keyStr)] = values
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	if content != lua.LNil {
		els, err := unmarshalElements(L, content)
		if err != nil {
			return nil, err
		}
		node.Content = els
	}

	return node, nil
}

// unmarshalElements converts an argument value or content sequence. A bare
// string is accepted as a one-element sequence.
func unmarshalElements(L *lua.LState, value lua.LValue) ([]litua.Element, error) {
	switch v := value.(type) {
	case lua.LString:
		return []litua.Element{litua.Text(v)}, nil
	case *lua.LTable:
		n := v.Len()
		els := make([]litua.Element, 0, n)
		for i := 1; i <= n; i++ {
			el, err := unmarshalElement(L, v.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			els = append(els, el)
		}
		return els, nil
	default:
		return nil, shapeError("expected a sequence of nodes and strings, got %s", value.Type())
	}
}

func unmarshalElement(L *lua.LState, value lua.LValue) (litua.Element, error) {
	switch v := value.(type) {
	case lua.LString:
		return litua.Text(v), nil
	case lua.LNumber:
		return litua.Text(v.String()), nil
	case *lua.LTable:
		return unmarshalNode(L, v)
	default:
		return nil, shapeError("expected a node or a string, got %s", value.Type())
	}
}
