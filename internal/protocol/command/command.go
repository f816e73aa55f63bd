// Package command builds viewer command trees.
//
// Commands that address a container and its variables take a guid list
// where guids[0] belongs to the container and guids[i+1] to variables[i].
// The viewer relies on this order to bind data and legends.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/imodctl/internal/protocol"
	"github.com/danmuck/imodctl/internal/protocol/schema"
	"github.com/danmuck/imodctl/internal/protocol/xmlenc"
)

// Command is a built command tree and its type attribute.
type Command struct {
	Type string
	Tree *schema.Node
}

// Marshal renders the command document.
func (c Command) Marshal(indent string) ([]byte, error) {
	return xmlenc.Marshal(c.Tree, indent)
}

// Rectangle is a bounding box given as four numeric strings.
type Rectangle struct {
	XMin string
	YMin string
	XMax string
	YMax string
}

// NewRectangle formats numeric bounds as a Rectangle.
func NewRectangle(xmin, ymin, xmax, ymax float64) Rectangle {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return Rectangle{XMin: f(xmin), YMin: f(ymin), XMax: f(xmax), YMax: f(ymax)}
}

func (r Rectangle) validate(op string) error {
	for _, s := range []string{r.XMin, r.YMin, r.XMax, r.YMax} {
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return invalid(op, fmt.Sprintf("bounding box value %q is not numeric", s))
		}
	}
	return nil
}

// ColorStop is one legend ramp entry.
type ColorStop struct {
	Value float64
	R     uint8
	G     uint8
	B     uint8
	A     uint8
}

// FlattenColorStops renders stops as "value r g b a value r g b a ...".
func FlattenColorStops(stops []ColorStop) string {
	parts := make([]string, 0, len(stops)*5)
	for _, s := range stops {
		parts = append(parts,
			strconv.FormatFloat(s.Value, 'g', -1, 64),
			strconv.Itoa(int(s.R)),
			strconv.Itoa(int(s.G)),
			strconv.Itoa(int(s.B)),
			strconv.Itoa(int(s.A)),
		)
	}
	return strings.Join(parts, " ")
}

// Point3 is a polyline vertex.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// FlattenPolyline renders points as "x y z x y z ...".
func FlattenPolyline(points []Point3) string {
	parts := make([]string, 0, len(points)*3)
	for _, p := range points {
		parts = append(parts,
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
			strconv.FormatFloat(p.Z, 'g', -1, 64),
		)
	}
	return strings.Join(parts, " ")
}

// AddLayeredGridToExplorer opens the layers of filename in the viewer's
// explorer. bbox is optional.
func AddLayeredGridToExplorer(filename string, variables, guids []string, bbox *Rectangle) (Command, error) {
	const op = TypeAddLayeredGridToExplorer
	if strings.TrimSpace(filename) == "" {
		return Command{}, invalid(op, "filename is required")
	}
	vars, err := variableNodes(op, variables, guids)
	if err != nil {
		return Command{}, err
	}
	box, err := boundingBox(op, bbox)
	if err != nil {
		return Command{}, err
	}
	grid, err := schema.Build(LayeredGridType, schema.Values{
		"guid":        guids[0],
		"filename":    filename,
		"Variables":   vars,
		"BoundingBox": box,
	})
	if err != nil {
		return Command{}, err
	}
	return build(AddLayeredGridToExplorerType, op, schema.Values{"LayeredGrid": grid})
}

// LoadExplorerModel loads the models identified by guids.
func LoadExplorerModel(guids []string) (Command, error) {
	return targetModelsCommand(LoadExplorerModelType, TypeLoadExplorerModel, guids)
}

// UnloadModel unloads the models identified by guids.
func UnloadModel(guids []string) (Command, error) {
	return targetModelsCommand(UnloadModelType, TypeUnloadModel, guids)
}

// SetLegend applies a color ramp to the variables of a loaded container.
// label is optional; discrete selects a stepped ramp.
func SetLegend(guids, variables []string, stops []ColorStop, label string, discrete bool) (Command, error) {
	const op = TypeSetLegend
	if len(stops) == 0 {
		return Command{}, invalid(op, "at least one color stop is required")
	}
	vars, err := variableNodes(op, variables, guids)
	if err != nil {
		return Command{}, err
	}
	target, err := schema.Build(LegendTargetType, schema.Values{
		"guid":      guids[0],
		"Variables": vars,
	})
	if err != nil {
		return Command{}, err
	}
	legendValues := schema.Values{"Colors": FlattenColorStops(stops)}
	if discrete {
		legendValues["discrete"] = true
	}
	if label != "" {
		legendValues["Label"] = label
	}
	legend, err := schema.Build(LegendType, legendValues)
	if err != nil {
		return Command{}, err
	}
	return build(SetLegendType, op, schema.Values{"LegendTarget": target, "Legend": legend})
}

// CreateFenceDiagram cuts the model guid along each polyline.
func CreateFenceDiagram(guid string, polylines [][]Point3) (Command, error) {
	const op = TypeCreateFenceDiagram
	if strings.TrimSpace(guid) == "" {
		return Command{}, invalid(op, "guid is required")
	}
	if len(polylines) == 0 {
		return Command{}, invalid(op, "at least one polyline is required")
	}
	target, err := schema.Build(TargetModelType, schema.Values{"guid": guid})
	if err != nil {
		return Command{}, err
	}
	lines := make([]*schema.Node, 0, len(polylines))
	for i, pl := range polylines {
		if len(pl) < 2 {
			return Command{}, invalid(op, fmt.Sprintf("polyline %d needs at least two points", i))
		}
		n, err := schema.Build(PolylineType, schema.Values{"Points": FlattenPolyline(pl)})
		if err != nil {
			return Command{}, err
		}
		lines = append(lines, n)
	}
	return build(CreateFenceDiagramType, op, schema.Values{"TargetModel": target, "Polylines": lines})
}

// AddToExplorer registers a borehole/log table. columns and bbox are optional.
func AddToExplorer(filename, guid string, columns []string, bbox *Rectangle) (Command, error) {
	const op = TypeAddToExplorer
	if strings.TrimSpace(filename) == "" {
		return Command{}, invalid(op, "filename is required")
	}
	if strings.TrimSpace(guid) == "" {
		return Command{}, invalid(op, "guid is required")
	}
	box, err := boundingBox(op, bbox)
	if err != nil {
		return Command{}, err
	}
	values := schema.Values{"guid": guid, "filename": filename, "BoundingBox": box}
	if columns != nil {
		cols := make([]*schema.Node, 0, len(columns))
		for _, c := range columns {
			n, err := schema.Build(ColumnType, schema.Values{"name": c})
			if err != nil {
				return Command{}, err
			}
			cols = append(cols, n)
		}
		values["Columns"] = cols
	}
	table, err := schema.Build(BoreholeTableType, values)
	if err != nil {
		return Command{}, err
	}
	return build(AddToExplorerType, op, schema.Values{"BoreholeTable": table})
}

// GetProcessID asks the viewer to report its process id.
func GetProcessID() Command {
	c, err := build(GetProcessIDType, TypeGetProcessID, nil)
	if err != nil {
		panic(err)
	}
	return c
}

func build(t *schema.NodeType, typ string, body schema.Values) (Command, error) {
	values := schema.Values{"type": typ}
	for k, v := range body {
		values[k] = v
	}
	n, err := schema.Build(t, values)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: typ, Tree: n}, nil
}

func targetModelsCommand(t *schema.NodeType, op string, guids []string) (Command, error) {
	if len(guids) == 0 {
		return Command{}, invalid(op, "at least one guid is required")
	}
	targets := make([]*schema.Node, 0, len(guids))
	for i, g := range guids {
		if strings.TrimSpace(g) == "" {
			return Command{}, invalid(op, fmt.Sprintf("guid %d is empty", i))
		}
		n, err := schema.Build(TargetModelType, schema.Values{"guid": g})
		if err != nil {
			return Command{}, err
		}
		targets = append(targets, n)
	}
	return build(t, op, schema.Values{"TargetModels": targets})
}

// variableNodes pairs variables[i] with guids[i+1].
func variableNodes(op string, variables, guids []string) ([]*schema.Node, error) {
	if len(guids) != len(variables)+1 {
		return nil, invalid(op, fmt.Sprintf("got %d guids for %d variables, want %d", len(guids), len(variables), len(variables)+1))
	}
	for i, g := range guids {
		if strings.TrimSpace(g) == "" {
			return nil, invalid(op, fmt.Sprintf("guid %d is empty", i))
		}
	}
	out := make([]*schema.Node, 0, len(variables))
	for i, name := range variables {
		n, err := schema.Build(VariableType, schema.Values{"guid": guids[i+1], "name": name})
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func boundingBox(op string, r *Rectangle) (*schema.Node, error) {
	if r == nil {
		return nil, nil
	}
	if err := r.validate(op); err != nil {
		return nil, err
	}
	return schema.Build(BoundingBoxType, schema.Values{
		"xmin": r.XMin,
		"ymin": r.YMin,
		"xmax": r.XMax,
		"ymax": r.YMax,
	})
}

func invalid(op, reason string) error {
	return &protocol.ValueError{Op: op, Reason: reason, Err: protocol.ErrInvalidArgument}
}
