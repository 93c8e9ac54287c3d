package luahooks

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/tajpulo/litua"
)

// Config is the read-only snapshot exposed to scripts as Litua.config.
type Config struct {
	// The source document path
	Source string
	// The resolved output path
	Destination string
	// The litua version string
	Version string
}

// Bridge owns the Lua state of one invocation and connects user scripts to
// the hook registry. Scripts see a global Litua table with one registration
// function per pipeline phase, the free Litua.global table, the read-only
// Litua.config snapshot and the error/log/format helpers.
type Bridge struct {
	state    *lua.LState
	registry *litua.Registry
	logSink  *os.File
}

// New creates a fresh Lua state wired to the given registry.
func New(registry *litua.Registry, cfg Config) *Bridge {
	b := &Bridge{
		state:    lua.NewState(),
		registry: registry,
		logSink:  os.Stderr,
	}
	b.install(cfg)
	return b
}

// Close releases the Lua state.
func (b *Bridge) Close() {
	b.state.Close()
}

// Registry returns the registry the bridge registers hooks into.
func (b *Bridge) Registry() *litua.Registry {
	return b.registry
}

// LoadHookFiles discovers and executes hook scripts: every file in dir
// whose base name starts with "hooks" and ends with ".lua", in the
// directory's sorted order. It returns the loaded paths.
func (b *Bridge) LoadHookFiles(dir string) ([]string, error) {
	files, err := FindHookFiles(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		slog.Debug("loading hook file", "path", file)
		if err := b.state.DoFile(file); err != nil {
			return nil, fmt.Errorf("executing hook file %s: %w", file, err)
		}
	}
	return files, nil
}

// LoadScript executes an in-memory hook script under the given chunk name.
func (b *Bridge) LoadScript(name, source string) error {
	fn, err := b.state.Load(strings.NewReader(source), name)
	if err != nil {
		return fmt.Errorf("loading hook script %s: %w", name, err)
	}
	b.state.Push(fn)
	if err := b.state.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("executing hook script %s: %w", name, err)
	}
	return nil
}

// install populates the global Litua table.
func (b *Bridge) install(cfg Config) {
	L := b.state

	litTbl := L.NewTable()
	L.SetGlobal("Litua", litTbl)

	litTbl.RawSetString("global", L.NewTable())
	litTbl.RawSetString("config", b.configTable(cfg))

	// one registration function per phase
	litTbl.RawSetString("on_setup", b.registerFn(litua.PhaseOnSetup, false))
	litTbl.RawSetString("modify_initial_string", b.registerFn(litua.PhaseModifyInitialString, false))
	litTbl.RawSetString("read_new_node", b.registerFn(litua.PhaseReadNewNode, true))
	litTbl.RawSetString("modify_node", b.registerFn(litua.PhaseModifyNode, true))
	litTbl.RawSetString("read_modified_node", b.registerFn(litua.PhaseReadModifiedNode, true))
	litTbl.RawSetString("convert_node_to_string", b.registerFn(litua.PhaseConvertNodeToString, true))
	litTbl.RawSetString("modify_final_string", b.registerFn(litua.PhaseModifyFinalString, false))
	litTbl.RawSetString("on_teardown", b.registerFn(litua.PhaseOnTeardown, false))

	litTbl.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		component := L.CheckString(1)
		message := L.CheckString(2)
		fmt.Fprintln(b.logSink, litua.FormatLog(component, message))
		return 0
	}))

	litTbl.RawSetString("error", L.NewFunction(func(L *lua.LState) int {
		diag := &litua.Error{
			Kind:    litua.KindUserError,
			Message: L.CheckString(1),
			Source:  b.scriptSource(),
		}
		if details, ok := L.Get(2).(*lua.LTable); ok {
			diag.Context = lua.LVAsString(details.RawGetString("context"))
			diag.Expected = lua.LVAsString(details.RawGetString("expected"))
			diag.Actual = lua.LVAsString(details.RawGetString("actual"))
			diag.Fix = lua.LVAsString(details.RawGetString("fix"))
		}
		L.RaiseError("%s", diag.Error())
		return 0
	}))

	litTbl.RawSetString("format", L.NewFunction(func(L *lua.LState) int {
		template := L.CheckString(1)
		args := make([]lua.LValue, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			args = append(args, L.Get(i))
		}
		result, err := Format(template, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LString(result))
		return 1
	}))
}

// configTable builds the read-only Litua.config proxy.
func (b *Bridge) configTable(cfg Config) *lua.LTable {
	L := b.state
	backing := L.NewTable()
	backing.RawSetString("source", lua.LString(cfg.Source))
	backing.RawSetString("destination", lua.LString(cfg.Destination))
	backing.RawSetString("version", lua.LString(cfg.Version))

	proxy := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", backing)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("Litua.config is a read-only snapshot")
		return 0
	}))
	L.SetMetatable(proxy, mt)
	return proxy
}

// registerFn builds the Lua-visible registration function for one phase.
// Filtered phases take (filter, hook), the string and setup phases take
// just (hook).
func (b *Bridge) registerFn(phase litua.Phase, filtered bool) *lua.LFunction {
	return b.state.NewFunction(func(L *lua.LState) int {
		filter := ""
		hookIndex := 1
		if filtered {
			filter = L.CheckString(1)
			hookIndex = 2
		}
		fn, ok := L.Get(hookIndex).(*lua.LFunction)
		source := b.scriptSource()
		if !ok {
			diag := &litua.Error{
				Kind:    litua.KindInvalidHook,
				Message: fmt.Sprintf("the hook registered for phase %q is not callable", phase),
				Actual:  L.Get(hookIndex).Type().String(),
				Source:  source,
			}
			L.RaiseError("%s", diag.Error())
			return 0
		}

		var impl any
		switch phase {
		case litua.PhaseOnSetup, litua.PhaseOnTeardown:
			impl = b.wrapSetup(fn, source, phase)
		case litua.PhaseModifyInitialString, litua.PhaseModifyFinalString:
			impl = b.wrapString(fn, source, phase)
		case litua.PhaseReadNewNode, litua.PhaseReadModifiedNode:
			impl = b.wrapReader(fn, source, phase)
		case litua.PhaseModifyNode:
			impl = b.wrapModifier(fn, source)
		case litua.PhaseConvertNodeToString:
			impl = b.wrapConverter(fn, source)
		}

		if err := b.registry.RegisterFrom(source, phase, filter, impl); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	})
}

// scriptSource names the registering script line, e.g. "hooks.lua:12".
func (b *Bridge) scriptSource() string {
	where := strings.TrimSpace(b.state.Where(1))
	return strings.TrimSuffix(where, ":")
}

// call invokes a Lua hook and returns its results.
func (b *Bridge) call(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	L := b.state
	top := L.GetTop()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, args...); err != nil {
		return nil, err
	}
	nret := L.GetTop() - top
	rets := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		rets[i] = L.Get(top + 1 + i)
	}
	L.SetTop(top)
	return rets, nil
}

// hookFailure converts a Lua runtime error into a diagnostic attributed to
// the hook's registration site.
func hookFailure(err error, source string) error {
	msg := err.Error()
	if apiErr, ok := err.(*lua.ApiError); ok {
		msg = apiErr.Object.String()
	}
	// a structured diagnostic raised via Litua.error travels through the
	// Lua error channel as its rendered form, prefixed by the raise site
	if idx := strings.Index(msg, "ERROR: "); idx >= 0 {
		msg = msg[idx+len("ERROR: "):]
	}
	return &litua.Error{Kind: litua.KindUserError, Message: msg, Source: source}
}

func returnShapeError(phase litua.Phase, expected, actual, source string) *litua.Error {
	return &litua.Error{
		Kind:     litua.KindHookReturnShape,
		Message:  fmt.Sprintf("a %s hook returned a value that does not match the phase contract", phase),
		Expected: expected,
		Actual:   actual,
		Source:   source,
	}
}

// allNil reports whether every returned value is nil, i.e. the hook
// effectively returned nothing.
func allNil(rets []lua.LValue) bool {
	for _, v := range rets {
		if v != lua.LNil {
			return false
		}
	}
	return true
}

func (b *Bridge) wrapSetup(fn *lua.LFunction, source string, phase litua.Phase) litua.SetupHook {
	return func() error {
		rets, err := b.call(fn)
		if err != nil {
			return hookFailure(err, source)
		}
		if !allNil(rets) {
			return returnShapeError(phase, "no value", rets[0].Type().String(), source)
		}
		return nil
	}
}

func (b *Bridge) wrapString(fn *lua.LFunction, source string, phase litua.Phase) litua.StringHook {
	return func(text string) (string, error) {
		rets, err := b.call(fn, lua.LString(text))
		if err != nil {
			return "", hookFailure(err, source)
		}
		if len(rets) == 0 || rets[0].Type() != lua.LTString {
			actual := "no value"
			if len(rets) > 0 {
				actual = rets[0].Type().String()
			}
			return "", returnShapeError(phase, "a string", actual, source)
		}
		return lua.LVAsString(rets[0]), nil
	}
}

func (b *Bridge) wrapReader(fn *lua.LFunction, source string, phase litua.Phase) litua.ReaderHook {
	return func(node *litua.Node, depth int) error {
		rets, err := b.call(fn, marshalNode(b.state, node), lua.LNumber(depth))
		if err != nil {
			return hookFailure(err, source)
		}
		if !allNil(rets) {
			return returnShapeError(phase, "no value", rets[0].Type().String(), source)
		}
		return nil
	}
}

func (b *Bridge) wrapModifier(fn *lua.LFunction, source string) litua.ModifierHook {
	return func(node *litua.Node, depth int, filter string) (litua.Element, error) {
		rets, err := b.call(fn, marshalNode(b.state, node), lua.LNumber(depth), lua.LString(filter))
		if err != nil {
			return nil, hookFailure(err, source)
		}
		if len(rets) > 1 && rets[1] != lua.LNil {
			return nil, &litua.Error{Kind: litua.KindUserError, Message: lua.LVAsString(rets[1]), Source: source}
		}
		if len(rets) == 0 || rets[0] == lua.LNil {
			// the pipeline reports the missing replacement
			return nil, nil
		}
		switch ret := rets[0].(type) {
		case lua.LString:
			return litua.Text(ret), nil
		case *lua.LTable:
			replacement, err := unmarshalNode(b.state, ret)
			if err != nil {
				if diag, ok := err.(*litua.Error); ok && diag.Source == "" {
					diag.Source = source
				}
				return nil, err
			}
			return replacement, nil
		default:
			return nil, returnShapeError(litua.PhaseModifyNode, "a node or a string", ret.Type().String(), source)
		}
	}
}

func (b *Bridge) wrapConverter(fn *lua.LFunction, source string) litua.ConverterHook {
	return func(node *litua.Node, depth int) (string, error) {
		rets, err := b.call(fn, marshalNode(b.state, node), lua.LNumber(depth))
		if err != nil {
			return "", hookFailure(err, source)
		}
		if len(rets) > 1 && rets[1] != lua.LNil {
			return "", &litua.Error{Kind: litua.KindUserError, Message: lua.LVAsString(rets[1]), Source: source}
		}
		if len(rets) == 0 {
			return "", returnShapeError(litua.PhaseConvertNodeToString, "a string", "no value", source)
		}
		if t := rets[0].Type(); t != lua.LTString && t != lua.LTNumber {
			return "", returnShapeError(litua.PhaseConvertNodeToString, "a string", t.String(), source)
		}
		return lua.LVAsString(rets[0]), nil
	}
}
