package schema

import (
	"fmt"

	"github.com/danmuck/imodctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Kind is how a field is rendered.
type Kind uint8

const (
	// Attr is a scalar rendered as name="value" on the node's own tag.
	Attr Kind = iota + 1
	// Text is a scalar rendered as a child element <name>value</name>.
	Text
	// Object is a single nested node.
	Object
	// List is a homogeneous sequence of nodes under a wrapper tag named
	// after the field.
	List
)

func (k Kind) String() string {
	switch k {
	case Attr:
		return "attr"
	case Text:
		return "text"
	case Object:
		return "object"
	case List:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) scalar() bool { return k == Attr || k == Text }

// FieldSpec declares one field of a node type.
type FieldSpec struct {
	Name     string
	Kind     Kind
	Required bool
	// Of is the node type of Object and List fields.
	Of *NodeType
}

// NodeType is the static schema of one node. Fields are rendered in
// declaration order.
type NodeType struct {
	Name   string
	Tag    string
	Fields []FieldSpec
}

// Field returns the spec for name.
func (t *NodeType) Field(name string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Check reports declaration mistakes in t and every type it references.
func (t *NodeType) Check() error {
	return t.check(map[*NodeType]bool{})
}

func (t *NodeType) check(seen map[*NodeType]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	if t.Tag == "" {
		return FieldError{Type: t.Name, Reason: "empty tag", Err: protocol.ErrInvalidArgument}
	}
	names := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return FieldError{Type: t.Name, Reason: "empty field name", Err: protocol.ErrInvalidArgument}
		}
		if _, dup := names[f.Name]; dup {
			return FieldError{Type: t.Name, Field: f.Name, Reason: "duplicate field", Err: protocol.ErrInvalidArgument}
		}
		names[f.Name] = struct{}{}
		switch {
		case f.Kind.scalar() && f.Of != nil:
			return FieldError{Type: t.Name, Field: f.Name, Reason: "scalar field declares a node type", Err: protocol.ErrInvalidArgument}
		case (f.Kind == Object || f.Kind == List) && f.Of == nil:
			return FieldError{Type: t.Name, Field: f.Name, Reason: f.Kind.String() + " field has no node type", Err: protocol.ErrInvalidArgument}
		case !f.Kind.scalar() && f.Kind != Object && f.Kind != List:
			return FieldError{Type: t.Name, Field: f.Name, Reason: "unknown kind " + f.Kind.String(), Err: protocol.ErrInvalidArgument}
		}
		if f.Of != nil {
			if err := f.Of.check(seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// FieldError is a schema violation on one field.
type FieldError struct {
	Type   string
	Field  string
	Reason string
	Err    error
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: type=%s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("schema: type=%s field=%s: %s", e.Type, e.Field, e.Reason)
}

func (e FieldError) Unwrap() error { return e.Err }

// Values holds field values by name for Build. Nil entries count as absent.
type Values map[string]any

// Node is an immutable instance of a NodeType.
type Node struct {
	typ    *NodeType
	values map[string]any
}

// Type returns the node's schema.
func (n *Node) Type() *NodeType { return n.typ }

// Lookup returns the value of a present field. List values are copies.
func (n *Node) Lookup(name string) (any, bool) {
	v, ok := n.values[name]
	if items, isList := v.([]*Node); isList {
		out := make([]*Node, len(items))
		copy(out, items)
		return out, ok
	}
	return v, ok
}

// Build validates v against t and returns the node. Required fields must be
// present; optional fields may be omitted and are then skipped on output.
func Build(t *NodeType, v Values) (*Node, error) {
	n := &Node{typ: t, values: make(map[string]any, len(v))}
	for name, raw := range v {
		spec, ok := t.Field(name)
		if !ok {
			return nil, buildError(t, FieldError{Type: t.Name, Field: name, Reason: "not declared", Err: protocol.ErrUnknownField})
		}
		if absent(raw) {
			continue
		}
		val, err := normalize(t, spec, raw)
		if err != nil {
			return nil, buildError(t, err)
		}
		n.values[name] = val
	}
	for _, spec := range t.Fields {
		if _, ok := n.values[spec.Name]; spec.Required && !ok {
			return nil, buildError(t, FieldError{Type: t.Name, Field: spec.Name, Reason: "missing required field", Err: protocol.ErrMissingField})
		}
	}
	return n, nil
}

func buildError(t *NodeType, err error) error {
	log.Debug().Str("type", t.Name).Err(err).Msg("schema.Build rejected")
	return &protocol.ValueError{Op: "build " + t.Name, Reason: err.Error(), Err: err}
}

func absent(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *Node:
		return x == nil
	case []*Node:
		return x == nil
	}
	return false
}

func normalize(t *NodeType, spec FieldSpec, raw any) (any, error) {
	mismatch := func(want string) error {
		return FieldError{
			Type:   t.Name,
			Field:  spec.Name,
			Reason: fmt.Sprintf("got %T, want %s", raw, want),
			Err:    protocol.ErrFieldTypeMismatch,
		}
	}
	switch spec.Kind {
	case Attr, Text:
		switch raw.(type) {
		case bool, string,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return raw, nil
		}
		return nil, mismatch("scalar")
	case Object:
		child, ok := raw.(*Node)
		if !ok {
			return nil, mismatch("*Node")
		}
		if child.typ != spec.Of {
			return nil, mismatch(spec.Of.Name)
		}
		return child, nil
	case List:
		children, ok := raw.([]*Node)
		if !ok {
			return nil, mismatch("[]*Node")
		}
		out := make([]*Node, len(children))
		for i, child := range children {
			if child == nil || child.typ != spec.Of {
				return nil, FieldError{
					Type:   t.Name,
					Field:  fmt.Sprintf("%s[%d]", spec.Name, i),
					Reason: "list item is not a " + spec.Of.Name,
					Err:    protocol.ErrFieldTypeMismatch,
				}
			}
			out[i] = child
		}
		return out, nil
	}
	return nil, FieldError{Type: t.Name, Field: spec.Name, Reason: "unknown kind " + spec.Kind.String(), Err: protocol.ErrInvalidArgument}
}
