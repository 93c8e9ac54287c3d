package litua

import (
	"fmt"
	"path/filepath"
	"runtime"
	"unicode"
)

// Phase names the eight steps of the transformation pipeline.
type Phase string

const (
	PhaseOnSetup             Phase = "on_setup"
	PhaseModifyInitialString Phase = "modify_initial_string"
	PhaseReadNewNode         Phase = "read_new_node"
	PhaseModifyNode          Phase = "modify_node"
	PhaseReadModifiedNode    Phase = "read_modified_node"
	PhaseConvertNodeToString Phase = "convert_node_to_string"
	PhaseModifyFinalString   Phase = "modify_final_string"
	PhaseOnTeardown          Phase = "on_teardown"
)

// Phases lists the known phases in pipeline order.
var Phases = []Phase{
	PhaseOnSetup,
	PhaseModifyInitialString,
	PhaseReadNewNode,
	PhaseModifyNode,
	PhaseReadModifiedNode,
	PhaseConvertNodeToString,
	PhaseModifyFinalString,
	PhaseOnTeardown,
}

// Hook signatures, one per phase contract.
type (
	// SetupHook runs during on_setup and on_teardown. It must not yield a
	// value; a returned error is a fatal diagnostic.
	SetupHook func() error

	// StringHook maps the document text during modify_initial_string and
	// modify_final_string.
	StringHook func(text string) (string, error)

	// ReaderHook observes a node copy during read_new_node and
	// read_modified_node. Depth is 0-based from the document root.
	ReaderHook func(node *Node, depth int) error

	// ModifierHook rewrites a live node during modify_node. The returned
	// element (a *Node or a Text) replaces the node in its parent slot;
	// a nil element with a nil error is a fatal diagnostic.
	ModifierHook func(node *Node, depth int, filter string) (Element, error)

	// ConverterHook reduces a node whose args and content are already
	// reduced to strings during convert_node_to_string.
	ConverterHook func(node *Node, depth int) (string, error)
)

// hookRecord pairs a hook with the source site that registered it, for
// attribution in later diagnostics.
type hookRecord[T any] struct {
	source string
	impl   T
}

// Registry is the per-invocation store of registered hooks.
type Registry struct {
	setup    []hookRecord[SetupHook]
	teardown []hookRecord[SetupHook]

	initialString []hookRecord[StringHook]
	finalString   []hookRecord[StringHook]

	readNew      map[string][]hookRecord[ReaderHook]
	modify       map[string][]hookRecord[ModifierHook]
	readModified map[string][]hookRecord[ReaderHook]

	// at most one converter per filter
	convert map[string]hookRecord[ConverterHook]
}

func NewRegistry() *Registry {
	return &Registry{
		readNew:      make(map[string][]hookRecord[ReaderHook]),
		modify:       make(map[string][]hookRecord[ModifierHook]),
		readModified: make(map[string][]hookRecord[ReaderHook]),
		convert:      make(map[string]hookRecord[ConverterHook]),
	}
}

// ValidFilter reports whether filter may select hooks: the empty string
// (matches every call) or a string obeying the call-name grammar.
func ValidFilter(filter string) bool {
	for _, r := range filter {
		switch {
		case r == openCall || r == closeCall || r == openArg || r == closeArg:
			return false
		case r == openRaw || r == assign:
			return false
		case unicode.IsSpace(r):
			return false
		}
	}
	return true
}

// Register files impl under the given phase and filter. The source site of
// the caller is captured for later diagnostics.
//
// impl must have the hook signature of the phase; anything else fails with
// an InvalidHook diagnostic. For convert_node_to_string at most one hook may
// be registered per filter.
func (r *Registry) Register(phase Phase, filter string, impl any) error {
	return r.RegisterFrom(callerSource(2), phase, filter, impl)
}

// RegisterFrom is Register with an explicit source attribution. The
// extension bridge uses it to name the registering script line instead of
// the bridge internals.
func (r *Registry) RegisterFrom(source string, phase Phase, filter string, impl any) error {
	if !knownPhase(phase) {
		return &Error{
			Kind:     KindUnknownPhase,
			Message:  fmt.Sprintf("cannot register a hook for unknown phase %q", phase),
			Expected: fmt.Sprintf("one of %v", Phases),
			Actual:   string(phase),
			Source:   source,
		}
	}
	if !ValidFilter(filter) {
		return &Error{
			Kind:     KindInvalidFilter,
			Message:  fmt.Sprintf("invalid hook filter %q", filter),
			Expected: "an empty string (matching every call) or a valid call name",
			Actual:   filter,
			Source:   source,
		}
	}
	if impl == nil {
		return r.invalidHook(phase, source, impl)
	}

	switch phase {
	case PhaseOnSetup:
		hook, ok := asSetupHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.setup = append(r.setup, hookRecord[SetupHook]{source, hook})
	case PhaseOnTeardown:
		hook, ok := asSetupHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.teardown = append(r.teardown, hookRecord[SetupHook]{source, hook})
	case PhaseModifyInitialString:
		hook, ok := asStringHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.initialString = append(r.initialString, hookRecord[StringHook]{source, hook})
	case PhaseModifyFinalString:
		hook, ok := asStringHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.finalString = append(r.finalString, hookRecord[StringHook]{source, hook})
	case PhaseReadNewNode:
		hook, ok := asReaderHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.readNew[filter] = append(r.readNew[filter], hookRecord[ReaderHook]{source, hook})
	case PhaseReadModifiedNode:
		hook, ok := asReaderHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.readModified[filter] = append(r.readModified[filter], hookRecord[ReaderHook]{source, hook})
	case PhaseModifyNode:
		hook, ok := asModifierHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		r.modify[filter] = append(r.modify[filter], hookRecord[ModifierHook]{source, hook})
	case PhaseConvertNodeToString:
		hook, ok := asConverterHook(impl)
		if !ok {
			return r.invalidHook(phase, source, impl)
		}
		if previous, exists := r.convert[filter]; exists {
			return &Error{
				Kind:    KindDuplicateConverter,
				Message: fmt.Sprintf("a convert_node_to_string hook for filter %q is already registered", filter),
				Context: fmt.Sprintf("previous registration at %s", previous.source),
				Fix:     "register at most one converter per filter",
				Source:  source,
			}
		}
		r.convert[filter] = hookRecord[ConverterHook]{source, hook}
	}

	return nil
}

func (r *Registry) invalidHook(phase Phase, source string, impl any) *Error {
	return &Error{
		Kind:    KindInvalidHook,
		Message: fmt.Sprintf("the hook registered for phase %q is not callable with the phase's signature", phase),
		Actual:  fmt.Sprintf("%T", impl),
		Source:  source,
	}
}

func asSetupHook(impl any) (SetupHook, bool) {
	switch f := impl.(type) {
	case SetupHook:
		return f, f != nil
	case func() error:
		return f, f != nil
	}
	return nil, false
}

func asStringHook(impl any) (StringHook, bool) {
	switch f := impl.(type) {
	case StringHook:
		return f, f != nil
	case func(string) (string, error):
		return f, f != nil
	}
	return nil, false
}

func asReaderHook(impl any) (ReaderHook, bool) {
	switch f := impl.(type) {
	case ReaderHook:
		return f, f != nil
	case func(*Node, int) error:
		return f, f != nil
	}
	return nil, false
}

func asModifierHook(impl any) (ModifierHook, bool) {
	switch f := impl.(type) {
	case ModifierHook:
		return f, f != nil
	case func(*Node, int, string) (Element, error):
		return f, f != nil
	}
	return nil, false
}

func asConverterHook(impl any) (ConverterHook, bool) {
	switch f := impl.(type) {
	case ConverterHook:
		return f, f != nil
	case func(*Node, int) (string, error):
		return f, f != nil
	}
	return nil, false
}

func knownPhase(phase Phase) bool {
	for _, p := range Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// readersFor returns the reader hooks matching a call name for one of the
// two reader phases: the call's own filter list first, then the empty
// filter list, each in registration order.
func (r *Registry) readersFor(phase Phase, call string) []hookRecord[ReaderHook] {
	table := r.readNew
	if phase == PhaseReadModifiedNode {
		table = r.readModified
	}
	hooks := make([]hookRecord[ReaderHook], 0, len(table[call])+len(table[""]))
	hooks = append(hooks, table[call]...)
	if call != "" {
		hooks = append(hooks, table[""]...)
	}
	return hooks
}

// modifierMatch carries the filter a modifier hook matched under, which the
// hook receives as an argument.
type modifierMatch struct {
	hookRecord[ModifierHook]
	filter string
}

func (r *Registry) modifiersFor(call string) []modifierMatch {
	matches := make([]modifierMatch, 0, len(r.modify[call])+len(r.modify[""]))
	for _, rec := range r.modify[call] {
		matches = append(matches, modifierMatch{rec, call})
	}
	if call != "" {
		for _, rec := range r.modify[""] {
			matches = append(matches, modifierMatch{rec, ""})
		}
	}
	return matches
}

// converterFor returns the single converter for a call name: the call's own
// filter wins over the empty filter.
func (r *Registry) converterFor(call string) (hookRecord[ConverterHook], bool) {
	if rec, ok := r.convert[call]; ok {
		return rec, true
	}
	rec, ok := r.convert[""]
	return rec, ok
}

// callerSource renders a registration site as "file:line (function)".
func callerSource(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s:%d (%s)", filepath.Base(file), line, name)
}
