package litua

import (
	"errors"
	"log/slog"
	"strings"
)

// Pipeline runs the eight-phase reduction of a source document to its
// output string under control of the hooks in a registry.
//
// The tree is exclusively owned by the pipeline. Reader phases hand hooks an
// independent copy per dispatch; the modifier and converter phases hand
// hooks the live node and splice the returned value back into the tree.
type Pipeline struct {
	registry *Registry
}

func NewPipeline(registry *Registry) *Pipeline {
	return &Pipeline{registry: registry}
}

// Transform processes one document. on_teardown runs exactly once whether
// or not any earlier phase failed; a teardown failure is reported in
// addition to the primary failure.
func (p *Pipeline) Transform(source string) (string, error) {
	out, primary := p.run(source)

	if tdErr := p.runTeardown(); tdErr != nil {
		if primary != nil {
			return "", errors.Join(primary, tdErr)
		}
		return "", tdErr
	}
	if primary != nil {
		return "", primary
	}
	return out, nil
}

func (p *Pipeline) run(source string) (string, error) {
	// phase 1: on_setup
	for _, rec := range p.registry.setup {
		if err := rec.impl(); err != nil {
			return "", p.hookError(rec.source, err)
		}
	}

	// phase 2: modify_initial_string
	text := source
	for _, rec := range p.registry.initialString {
		next, err := rec.impl(text)
		if err != nil {
			return "", p.hookError(rec.source, err)
		}
		text = next
	}

	root, err := Parse(text)
	if err != nil {
		return "", err
	}
	slog.Debug("document parsed", "top_level_elements", len(root.Content))

	// phase 3: read_new_node
	if err := p.readPass(PhaseReadNewNode, root, 0); err != nil {
		return "", err
	}

	// phase 4: modify_node
	modified, err := p.modifyElement(root, 0)
	if err != nil {
		return "", err
	}
	if node, ok := modified.(*Node); ok {
		root = node
	} else {
		// the root was replaced by plain text; wrap it so the remaining
		// phases keep operating on a document node
		root = NewNode(DocumentCall)
		root.Content = []Element{modified}
	}

	// phase 5: read_modified_node
	if err := p.readPass(PhaseReadModifiedNode, root, 0); err != nil {
		return "", err
	}

	// phase 6: convert_node_to_string. The synthetic root serializes as the
	// concatenation of its reduced children, never as {document ...}.
	root.SetToString(func(n *Node) string {
		var b strings.Builder
		for _, el := range n.Content {
			if text, ok := el.(Text); ok {
				b.WriteString(string(text))
			}
		}
		return b.String()
	})
	out, err := p.reduce(root, 0)
	if err != nil {
		return "", err
	}

	// phase 7: modify_final_string
	for _, rec := range p.registry.finalString {
		next, err := rec.impl(out)
		if err != nil {
			return "", p.hookError(rec.source, err)
		}
		out = next
	}

	return out, nil
}

// runTeardown fires phase 8 hooks, collecting every failure.
func (p *Pipeline) runTeardown() error {
	var errs []error
	for _, rec := range p.registry.teardown {
		if err := rec.impl(); err != nil {
			errs = append(errs, p.hookError(rec.source, err))
		}
	}
	return errors.Join(errs...)
}

// readPass walks the tree pre-order and dispatches one of the two reader
// phases. Every dispatch receives a fresh copy of the node, so a mutation
// inside a reader hook cannot affect the canonical tree.
func (p *Pipeline) readPass(phase Phase, node *Node, depth int) error {
	for _, rec := range p.registry.readersFor(phase, node.Call) {
		if err := rec.impl(node.Copy(), depth); err != nil {
			return p.hookError(rec.source, err)
		}
	}
	for _, key := range node.ArgKeys(true) {
		for _, el := range node.Args[key] {
			if child, ok := el.(*Node); ok {
				if err := p.readPass(phase, child, depth+1); err != nil {
					return err
				}
			}
		}
	}
	for _, el := range node.Content {
		if child, ok := el.(*Node); ok {
			if err := p.readPass(phase, child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// modifyElement dispatches phase 4 on an element and returns its
// replacement. The dispatch list is computed from the call name the node
// had when visited; once a hook reduces the node to text, the remaining
// hooks are skipped and the text wins.
func (p *Pipeline) modifyElement(el Element, depth int) (Element, error) {
	node, ok := el.(*Node)
	if !ok {
		return el, nil
	}

	current := Element(node)
	for _, match := range p.registry.modifiersFor(node.Call) {
		liveNode, stillNode := current.(*Node)
		if !stillNode {
			break
		}
		replacement, err := match.impl(liveNode, depth, match.filter)
		if err != nil {
			return nil, p.hookError(match.source, err)
		}
		if replacement == nil {
			return nil, &Error{
				Kind:     KindHookReturnShape,
				Message:  "a modify_node hook returned nothing, but a node or a string is required",
				Expected: "a node or a string",
				Actual:   "nil",
				Source:   match.source,
			}
		}
		current = replacement
	}

	result, stillNode := current.(*Node)
	if !stillNode {
		return current, nil
	}

	for _, key := range result.ArgKeys(true) {
		values := result.Args[key]
		for i, child := range values {
			replaced, err := p.modifyElement(child, depth+1)
			if err != nil {
				return nil, err
			}
			values[i] = replaced
		}
	}
	for i, child := range result.Content {
		replaced, err := p.modifyElement(child, depth+1)
		if err != nil {
			return nil, err
		}
		result.Content[i] = replaced
	}
	return result, nil
}

// reduce implements phase 6 for one node: args entries and content children
// are reduced to strings first, then the node itself is reduced through the
// reserved-name short-circuits, its converter hook, or identity
// serialization.
func (p *Pipeline) reduce(node *Node, depth int) (string, error) {
	for _, key := range node.ArgKeys(true) {
		values := node.Args[key]
		for i, el := range values {
			if child, ok := el.(*Node); ok {
				s, err := p.reduce(child, depth+1)
				if err != nil {
					return "", err
				}
				values[i] = Text(s)
			}
		}
	}
	for i, el := range node.Content {
		if child, ok := el.(*Node); ok {
			s, err := p.reduce(child, depth+1)
			if err != nil {
				return "", err
			}
			node.Content[i] = Text(s)
		}
	}

	// reserved escape calls reduce before any hook is consulted
	switch node.Call {
	case CallLeftCurlyBrace:
		return string(openCall), nil
	case CallRightCurlyBrace:
		return string(closeCall), nil
	}

	// a raw string reduces to its verbatim text, delimiting whitespace
	// included; no filter can name the internal '<' call form
	if node.IsRaw() {
		return node.TextOnly(), nil
	}

	if rec, ok := p.registry.converterFor(node.Call); ok {
		s, err := rec.impl(node, depth)
		if err != nil {
			return "", p.hookError(rec.source, err)
		}
		return s, nil
	}

	return node.ToString(), nil
}

// hookError attributes a hook failure to its registration site.
func (p *Pipeline) hookError(source string, err error) error {
	var diag *Error
	if errors.As(err, &diag) {
		if diag.Source == "" {
			diag.Source = source
		}
		return diag
	}
	return &Error{Kind: KindUserError, Message: err.Error(), Source: source}
}
