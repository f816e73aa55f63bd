package command

import "github.com/danmuck/imodctl/internal/protocol/schema"

// RootTag is the tag of every command document.
const RootTag = "ImodCommand"

// Command type attribute values.
const (
	TypeAddLayeredGridToExplorer = "AddLayeredGridToExplorer"
	TypeLoadExplorerModel        = "LoadExplorerModel"
	TypeUnloadModel              = "UnloadModel"
	TypeSetLegend                = "SetLegendCommand"
	TypeCreateFenceDiagram       = "CreateFenceDiagram"
	TypeAddToExplorer            = "AddToExplorer"
	TypeGetProcessID             = "GetProcessId"
)

// Body node types.
var (
	TargetModelType = &schema.NodeType{
		Name: "TargetModel",
		Tag:  "TargetModel",
		Fields: []schema.FieldSpec{
			{Name: "guid", Kind: schema.Attr, Required: true},
		},
	}
	VariableType = &schema.NodeType{
		Name: "Variable",
		Tag:  "Variable",
		Fields: []schema.FieldSpec{
			{Name: "guid", Kind: schema.Attr, Required: true},
			{Name: "name", Kind: schema.Attr, Required: true},
		},
	}
	BoundingBoxType = &schema.NodeType{
		Name: "BoundingBox",
		Tag:  "BoundingBox",
		Fields: []schema.FieldSpec{
			{Name: "xmin", Kind: schema.Attr, Required: true},
			{Name: "ymin", Kind: schema.Attr, Required: true},
			{Name: "xmax", Kind: schema.Attr, Required: true},
			{Name: "ymax", Kind: schema.Attr, Required: true},
		},
	}
	LayeredGridType = &schema.NodeType{
		Name: "LayeredGrid",
		Tag:  "LayeredGrid",
		Fields: []schema.FieldSpec{
			{Name: "guid", Kind: schema.Attr, Required: true},
			{Name: "filename", Kind: schema.Attr, Required: true},
			{Name: "Variables", Kind: schema.List, Required: true, Of: VariableType},
			{Name: "BoundingBox", Kind: schema.Object, Of: BoundingBoxType},
		},
	}
	LegendTargetType = &schema.NodeType{
		Name: "LegendTarget",
		Tag:  "LegendTarget",
		Fields: []schema.FieldSpec{
			{Name: "guid", Kind: schema.Attr, Required: true},
			{Name: "Variables", Kind: schema.List, Required: true, Of: VariableType},
		},
	}
	LegendType = &schema.NodeType{
		Name: "Legend",
		Tag:  "Legend",
		Fields: []schema.FieldSpec{
			{Name: "discrete", Kind: schema.Attr},
			{Name: "Label", Kind: schema.Text},
			{Name: "Colors", Kind: schema.Text, Required: true},
		},
	}
	PolylineType = &schema.NodeType{
		Name: "Polyline",
		Tag:  "Polyline",
		Fields: []schema.FieldSpec{
			{Name: "Points", Kind: schema.Text, Required: true},
		},
	}
	ColumnType = &schema.NodeType{
		Name: "Column",
		Tag:  "Column",
		Fields: []schema.FieldSpec{
			{Name: "name", Kind: schema.Attr, Required: true},
		},
	}
	BoreholeTableType = &schema.NodeType{
		Name: "BoreholeTable",
		Tag:  "BoreholeTable",
		Fields: []schema.FieldSpec{
			{Name: "guid", Kind: schema.Attr, Required: true},
			{Name: "filename", Kind: schema.Attr, Required: true},
			{Name: "Columns", Kind: schema.List, Of: ColumnType},
			{Name: "BoundingBox", Kind: schema.Object, Of: BoundingBoxType},
		},
	}
)

// Command document types. All render as RootTag with a type attribute.
var (
	AddLayeredGridToExplorerType = rootType(TypeAddLayeredGridToExplorer,
		schema.FieldSpec{Name: "LayeredGrid", Kind: schema.Object, Required: true, Of: LayeredGridType},
	)
	LoadExplorerModelType = rootType(TypeLoadExplorerModel,
		schema.FieldSpec{Name: "TargetModels", Kind: schema.List, Required: true, Of: TargetModelType},
	)
	UnloadModelType = rootType(TypeUnloadModel,
		schema.FieldSpec{Name: "TargetModels", Kind: schema.List, Required: true, Of: TargetModelType},
	)
	SetLegendType = rootType(TypeSetLegend,
		schema.FieldSpec{Name: "LegendTarget", Kind: schema.Object, Required: true, Of: LegendTargetType},
		schema.FieldSpec{Name: "Legend", Kind: schema.Object, Required: true, Of: LegendType},
	)
	CreateFenceDiagramType = rootType(TypeCreateFenceDiagram,
		schema.FieldSpec{Name: "TargetModel", Kind: schema.Object, Required: true, Of: TargetModelType},
		schema.FieldSpec{Name: "Polylines", Kind: schema.List, Required: true, Of: PolylineType},
	)
	AddToExplorerType = rootType(TypeAddToExplorer,
		schema.FieldSpec{Name: "BoreholeTable", Kind: schema.Object, Required: true, Of: BoreholeTableType},
	)
	GetProcessIDType = rootType(TypeGetProcessID)
)

// Types lists every command document type.
var Types = []*schema.NodeType{
	AddLayeredGridToExplorerType,
	LoadExplorerModelType,
	UnloadModelType,
	SetLegendType,
	CreateFenceDiagramType,
	AddToExplorerType,
	GetProcessIDType,
}

func rootType(name string, body ...schema.FieldSpec) *schema.NodeType {
	fields := append([]schema.FieldSpec{{Name: "type", Kind: schema.Attr, Required: true}}, body...)
	return &schema.NodeType{Name: name, Tag: RootTag, Fields: fields}
}
