// Package xmlenc renders schema nodes as indented markup.
//
// There is one algorithm for every node type: fields are walked in
// declaration order, absent optional fields are skipped, Attr fields become
// attributes, Text fields become single-line child elements, Object fields
// recurse, and List fields recurse under a wrapper tag named after the field.
package xmlenc

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/imodctl/internal/protocol"
	"github.com/danmuck/imodctl/internal/protocol/schema"
)

// DefaultIndent is the indentation step used by callers without a preference.
const DefaultIndent = "  "

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape replaces the five reserved markup characters.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Marshal renders n with indent applied once per depth.
func Marshal(n *schema.Node, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, n, indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the rendering of n to w.
func Encode(w io.Writer, n *schema.Node, indent string) error {
	if n == nil {
		return &protocol.ValueError{Op: "xmlenc.Encode", Reason: "nil node", Err: protocol.ErrInvalidArgument}
	}
	e := &encoder{indent: indent}
	if err := e.node(n, n.Type().Tag, 0); err != nil {
		return err
	}
	if _, err := w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	return nil
}

type encoder struct {
	buf    bytes.Buffer
	indent string
}

func (e *encoder) pad(depth int) {
	for i := 0; i < depth; i++ {
		e.buf.WriteString(e.indent)
	}
}

func (e *encoder) node(n *schema.Node, tag string, depth int) error {
	t := n.Type()
	e.pad(depth)
	e.buf.WriteByte('<')
	e.buf.WriteString(tag)

	hasChildren := false
	for _, f := range t.Fields {
		v, ok := n.Lookup(f.Name)
		if !ok {
			continue
		}
		if f.Kind != schema.Attr {
			hasChildren = true
			continue
		}
		s, err := formatScalar(v)
		if err != nil {
			return fieldErr(t, f, err)
		}
		e.buf.WriteByte(' ')
		e.buf.WriteString(f.Name)
		e.buf.WriteString(`="`)
		e.buf.WriteString(Escape(s))
		e.buf.WriteByte('"')
	}
	if !hasChildren {
		e.buf.WriteString(" />\n")
		return nil
	}
	e.buf.WriteString(">\n")

	for _, f := range t.Fields {
		v, ok := n.Lookup(f.Name)
		if !ok {
			continue
		}
		switch f.Kind {
		case schema.Attr:
		case schema.Text:
			s, err := formatScalar(v)
			if err != nil {
				return fieldErr(t, f, err)
			}
			e.pad(depth + 1)
			fmt.Fprintf(&e.buf, "<%s>%s</%s>\n", f.Name, Escape(s), f.Name)
		case schema.Object:
			child, _ := v.(*schema.Node)
			if err := e.node(child, child.Type().Tag, depth+1); err != nil {
				return err
			}
		case schema.List:
			children, _ := v.([]*schema.Node)
			e.pad(depth + 1)
			if len(children) == 0 {
				fmt.Fprintf(&e.buf, "<%s />\n", f.Name)
				continue
			}
			fmt.Fprintf(&e.buf, "<%s>\n", f.Name)
			for _, child := range children {
				if err := e.node(child, child.Type().Tag, depth+2); err != nil {
					return err
				}
			}
			e.pad(depth + 1)
			fmt.Fprintf(&e.buf, "</%s>\n", f.Name)
		default:
			return fieldErr(t, f, fmt.Errorf("unknown kind %v", f.Kind))
		}
	}

	e.pad(depth)
	fmt.Fprintf(&e.buf, "</%s>\n", tag)
	return nil
}

func fieldErr(t *schema.NodeType, f schema.FieldSpec, err error) error {
	return &protocol.ValueError{
		Op:     "xmlenc.Encode",
		Reason: fmt.Sprintf("type=%s field=%s: %v", t.Name, f.Name, err),
		Err:    protocol.ErrFieldTypeMismatch,
	}
}

func formatScalar(v any) (string, error) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		return x, nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported scalar %T", v)
	}
}
