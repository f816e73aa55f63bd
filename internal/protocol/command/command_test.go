package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/imodctl/internal/protocol"
	"github.com/danmuck/imodctl/internal/protocol/schema"
	"github.com/danmuck/imodctl/internal/testutil/testlog"
)

func marshal(t *testing.T, c Command) string {
	t.Helper()
	b, err := c.Marshal("  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", c.Type, err)
	}
	return string(b)
}

func TestTypesAreWellDeclared(t *testing.T) {
	testlog.Start(t)
	seen := map[string]bool{}
	for _, nt := range Types {
		if err := nt.Check(); err != nil {
			t.Fatalf("%s: %v", nt.Name, err)
		}
		if nt.Tag != RootTag {
			t.Fatalf("%s: unexpected root tag %q", nt.Name, nt.Tag)
		}
		if seen[nt.Name] {
			t.Fatalf("duplicate command type %s", nt.Name)
		}
		seen[nt.Name] = true
	}
}

func TestUnloadModel(t *testing.T) {
	testlog.Start(t)
	c, err := UnloadModel([]string{"abc-123", "def-456"})
	if err != nil {
		t.Fatalf("unload: %v", err)
	}
	want := strings.Join([]string{
		`<ImodCommand type="UnloadModel">`,
		`  <TargetModels>`,
		`    <TargetModel guid="abc-123" />`,
		`    <TargetModel guid="def-456" />`,
		`  </TargetModels>`,
		`</ImodCommand>`,
		``,
	}, "\n")
	if got := marshal(t, c); got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}
	if c.Type != TypeUnloadModel {
		t.Fatalf("unexpected type %q", c.Type)
	}
}

func TestLoadExplorerModel(t *testing.T) {
	testlog.Start(t)
	c, err := LoadExplorerModel([]string{"m-1"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := marshal(t, c)
	if !strings.HasPrefix(got, `<ImodCommand type="LoadExplorerModel">`) || strings.Count(got, `<TargetModel guid="m-1" />`) != 1 {
		t.Fatalf("unexpected output:\n%s", got)
	}
	if _, err := LoadExplorerModel(nil); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected empty guid rejection, got %v", err)
	}
	if _, err := UnloadModel([]string{"a", " "}); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected blank guid rejection, got %v", err)
	}
}

func TestGuidIndexing(t *testing.T) {
	testlog.Start(t)
	guids := []string{"g0", "g1", "g2"}
	vars := []string{"top", "bottom"}

	c, err := AddLayeredGridToExplorer("model.nc", vars, guids, nil)
	if err != nil {
		t.Fatalf("add layered grid: %v", err)
	}
	want := strings.Join([]string{
		`<ImodCommand type="AddLayeredGridToExplorer">`,
		`  <LayeredGrid guid="g0" filename="model.nc">`,
		`    <Variables>`,
		`      <Variable guid="g1" name="top" />`,
		`      <Variable guid="g2" name="bottom" />`,
		`    </Variables>`,
		`  </LayeredGrid>`,
		`</ImodCommand>`,
		``,
	}, "\n")
	if got := marshal(t, c); got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}

	grid, _ := c.Tree.Lookup("LayeredGrid")
	g := grid.(*schema.Node)
	if id, _ := g.Lookup("guid"); id != "g0" {
		t.Fatalf("container guid=%v", id)
	}
	list, _ := g.Lookup("Variables")
	for i, v := range list.([]*schema.Node) {
		id, _ := v.Lookup("guid")
		name, _ := v.Lookup("name")
		if id != guids[i+1] || name != vars[i] {
			t.Fatalf("variable %d: guid=%v name=%v", i, id, name)
		}
	}

	legend, err := SetLegend(guids, vars, []ColorStop{{Value: 0, R: 255, A: 255}}, "", false)
	if err != nil {
		t.Fatalf("set legend: %v", err)
	}
	out := marshal(t, legend)
	if !strings.Contains(out, `<LegendTarget guid="g0">`) ||
		!strings.Contains(out, `<Variable guid="g1" name="top" />`) ||
		!strings.Contains(out, `<Variable guid="g2" name="bottom" />`) {
		t.Fatalf("unexpected legend output:\n%s", out)
	}

	if _, err := AddLayeredGridToExplorer("model.nc", vars, guids[:2], nil); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected guid count rejection, got %v", err)
	}
	if _, err := SetLegend([]string{"g0", "g1", "g2", "g3"}, vars, []ColorStop{{}}, "", false); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected guid count rejection, got %v", err)
	}
}

func TestAddLayeredGridBoundingBox(t *testing.T) {
	testlog.Start(t)
	box := NewRectangle(0, 10, 100.5, 200)
	c, err := AddLayeredGridToExplorer("m.nc", []string{"head"}, []string{"a", "b"}, &box)
	if err != nil {
		t.Fatalf("add layered grid: %v", err)
	}
	got := marshal(t, c)
	if strings.Count(got, `<BoundingBox xmin="0" ymin="10" xmax="100.5" ymax="200" />`) != 1 {
		t.Fatalf("expected one bounding box:\n%s", got)
	}

	bad := Rectangle{XMin: "0", YMin: "west", XMax: "1", YMax: "1"}
	if _, err := AddLayeredGridToExplorer("m.nc", nil, []string{"a"}, &bad); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected non-numeric rejection, got %v", err)
	}
	if _, err := AddLayeredGridToExplorer(" ", nil, []string{"a"}, nil); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected filename rejection, got %v", err)
	}
}

func TestSetLegend(t *testing.T) {
	testlog.Start(t)
	stops := []ColorStop{
		{Value: -1.5, R: 0, G: 0, B: 255, A: 255},
		{Value: 10, R: 255, G: 0, B: 0, A: 128},
	}
	c, err := SetLegend([]string{"c", "v"}, []string{"head"}, stops, "Head (m)", true)
	if err != nil {
		t.Fatalf("set legend: %v", err)
	}
	want := strings.Join([]string{
		`<ImodCommand type="SetLegendCommand">`,
		`  <LegendTarget guid="c">`,
		`    <Variables>`,
		`      <Variable guid="v" name="head" />`,
		`    </Variables>`,
		`  </LegendTarget>`,
		`  <Legend discrete="true">`,
		`    <Label>Head (m)</Label>`,
		`    <Colors>-1.5 0 0 255 255 10 255 0 0 128</Colors>`,
		`  </Legend>`,
		`</ImodCommand>`,
		``,
	}, "\n")
	if got := marshal(t, c); got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}

	plain, err := SetLegend([]string{"c"}, nil, stops, "", false)
	if err != nil {
		t.Fatalf("set legend: %v", err)
	}
	out := marshal(t, plain)
	if strings.Contains(out, "Label") || strings.Contains(out, "discrete") {
		t.Fatalf("optional legend fields rendered:\n%s", out)
	}
	if _, err := SetLegend([]string{"c"}, nil, nil, "", false); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected empty ramp rejection, got %v", err)
	}
}

func TestCreateFenceDiagram(t *testing.T) {
	testlog.Start(t)
	lines := [][]Point3{
		{{X: 0, Y: 0, Z: 0}, {X: 10, Y: 0, Z: -5.5}},
		{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}, {X: 7, Y: 8, Z: 9}},
	}
	c, err := CreateFenceDiagram("model", lines)
	if err != nil {
		t.Fatalf("fence: %v", err)
	}
	want := strings.Join([]string{
		`<ImodCommand type="CreateFenceDiagram">`,
		`  <TargetModel guid="model" />`,
		`  <Polylines>`,
		`    <Polyline>`,
		`      <Points>0 0 0 10 0 -5.5</Points>`,
		`    </Polyline>`,
		`    <Polyline>`,
		`      <Points>1 2 3 4 5 6 7 8 9</Points>`,
		`    </Polyline>`,
		`  </Polylines>`,
		`</ImodCommand>`,
		``,
	}, "\n")
	if got := marshal(t, c); got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}
	if _, err := CreateFenceDiagram("model", [][]Point3{{{X: 1}}}); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected short polyline rejection, got %v", err)
	}
	if _, err := CreateFenceDiagram("", lines); !errors.Is(err, protocol.ErrInvalidArgument) {
		t.Fatalf("expected guid rejection, got %v", err)
	}
}

func TestAddToExplorer(t *testing.T) {
	testlog.Start(t)
	c, err := AddToExplorer("wells.ipf", "b-1", []string{"x", "y", "top"}, nil)
	if err != nil {
		t.Fatalf("add to explorer: %v", err)
	}
	want := strings.Join([]string{
		`<ImodCommand type="AddToExplorer">`,
		`  <BoreholeTable guid="b-1" filename="wells.ipf">`,
		`    <Columns>`,
		`      <Column name="x" />`,
		`      <Column name="y" />`,
		`      <Column name="top" />`,
		`    </Columns>`,
		`  </BoreholeTable>`,
		`</ImodCommand>`,
		``,
	}, "\n")
	if got := marshal(t, c); got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}

	bare, err := AddToExplorer("wells.ipf", "b-1", nil, nil)
	if err != nil {
		t.Fatalf("add to explorer: %v", err)
	}
	if got := marshal(t, bare); strings.Contains(got, "Columns") || strings.Contains(got, "BoundingBox") {
		t.Fatalf("optional fields rendered:\n%s", got)
	}
}

func TestGetProcessID(t *testing.T) {
	testlog.Start(t)
	c := GetProcessID()
	if got := marshal(t, c); got != "<ImodCommand type=\"GetProcessId\" />\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}
