package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/imodctl/internal/protocol/command"
	"github.com/spf13/cobra"
)

// commandFlags carries every flag the print subcommands share.
type commandFlags struct {
	guids     []string
	variables []string
	columns   []string
	stops     []string
	polylines []string
	file      string
	bbox      string
	label     string
	discrete  bool
	indent    string
}

func newPrintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print a viewer command without sending it",
	}
	builders := []struct {
		use   string
		short string
		build func(*commandFlags) (command.Command, error)
	}{
		{"unload", "UnloadModel for --guid models", func(f *commandFlags) (command.Command, error) {
			return command.UnloadModel(f.guids)
		}},
		{"load", "LoadExplorerModel for --guid models", func(f *commandFlags) (command.Command, error) {
			return command.LoadExplorerModel(f.guids)
		}},
		{"layered-grid", "AddLayeredGridToExplorer for --file with --var layers", func(f *commandFlags) (command.Command, error) {
			box, err := parseRectangle(f.bbox)
			if err != nil {
				return command.Command{}, err
			}
			return command.AddLayeredGridToExplorer(f.file, f.variables, f.guids, box)
		}},
		{"legend", "SetLegendCommand from --stop value,r,g,b,a entries", func(f *commandFlags) (command.Command, error) {
			stops, err := parseStops(f.stops)
			if err != nil {
				return command.Command{}, err
			}
			return command.SetLegend(f.guids, f.variables, stops, f.label, f.discrete)
		}},
		{"fence", "CreateFenceDiagram from --polyline x,y,z;x,y,z entries", func(f *commandFlags) (command.Command, error) {
			lines, err := parsePolylines(f.polylines)
			if err != nil {
				return command.Command{}, err
			}
			if len(f.guids) != 1 {
				return command.Command{}, fmt.Errorf("fence takes exactly one --guid, got %d", len(f.guids))
			}
			return command.CreateFenceDiagram(f.guids[0], lines)
		}},
		{"borehole", "AddToExplorer for a borehole table --file", func(f *commandFlags) (command.Command, error) {
			box, err := parseRectangle(f.bbox)
			if err != nil {
				return command.Command{}, err
			}
			if len(f.guids) != 1 {
				return command.Command{}, fmt.Errorf("borehole takes exactly one --guid, got %d", len(f.guids))
			}
			return command.AddToExplorer(f.file, f.guids[0], f.columns, box)
		}},
		{"pid", "GetProcessId", func(*commandFlags) (command.Command, error) {
			return command.GetProcessID(), nil
		}},
	}
	for _, b := range builders {
		cmd.AddCommand(newPrintSubcommand(b.use, b.short, b.build))
	}
	return cmd
}

func newPrintSubcommand(use, short string, build func(*commandFlags) (command.Command, error)) *cobra.Command {
	f := &commandFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := build(f)
			if err != nil {
				return err
			}
			out, err := c.Marshal(f.indent)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringArrayVar(&f.guids, "guid", nil, "model guid; repeat for several (container first, then one per --var)")
	fl.StringArrayVar(&f.variables, "var", nil, "variable name; repeatable")
	fl.StringArrayVar(&f.columns, "column", nil, "borehole column name; repeatable")
	fl.StringArrayVar(&f.stops, "stop", nil, "legend stop value,r,g,b,a; repeatable")
	fl.StringArrayVar(&f.polylines, "polyline", nil, "fence polyline x,y,z;x,y,z; repeatable")
	fl.StringVar(&f.file, "file", "", "data file path")
	fl.StringVar(&f.bbox, "bbox", "", "bounding box xmin,ymin,xmax,ymax")
	fl.StringVar(&f.label, "label", "", "legend label")
	fl.BoolVar(&f.discrete, "discrete", false, "discrete legend")
	fl.StringVar(&f.indent, "indent", "  ", "indentation step")
	return cmd
}

func splitFloats(raw string, n int, what string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%s %q: want %d comma-separated values", what, raw, n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", what, raw, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseRectangle(raw string) (*command.Rectangle, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := splitFloats(raw, 4, "bbox")
	if err != nil {
		return nil, err
	}
	r := command.NewRectangle(v[0], v[1], v[2], v[3])
	return &r, nil
}

func parseStops(raw []string) ([]command.ColorStop, error) {
	stops := make([]command.ColorStop, 0, len(raw))
	for _, s := range raw {
		v, err := splitFloats(s, 5, "stop")
		if err != nil {
			return nil, err
		}
		stop := command.ColorStop{Value: v[0]}
		channels := []*uint8{&stop.R, &stop.G, &stop.B, &stop.A}
		for i, dst := range channels {
			c := v[i+1]
			if c < 0 || c > 255 || c != float64(int(c)) {
				return nil, fmt.Errorf("stop %q: channel %v is not an integer in 0..255", s, c)
			}
			*dst = uint8(c)
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func parsePolylines(raw []string) ([][]command.Point3, error) {
	lines := make([][]command.Point3, 0, len(raw))
	for _, line := range raw {
		var pts []command.Point3
		for _, p := range strings.Split(line, ";") {
			v, err := splitFloats(p, 3, "point")
			if err != nil {
				return nil, err
			}
			pts = append(pts, command.Point3{X: v[0], Y: v[1], Z: v[2]})
		}
		lines = append(lines, pts)
	}
	return lines, nil
}
