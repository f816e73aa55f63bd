package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/imodctl/internal/idf"
	"github.com/danmuck/imodctl/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "idfctl",
		Short:         "Inspect and convert IDF raster grids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("metrics-textfile", "", "write grid I/O counters to this file on exit")
	root.AddCommand(newInfoCmd(), newToASCCmd(), newFromASCCmd())
	return root
}

// execute runs root and then writes the metrics textfile when one was
// requested, including after a failed command.
func execute(root *cobra.Command) error {
	err := root.Execute()
	path, _ := root.PersistentFlags().GetString("metrics-textfile")
	if path == "" {
		return err
	}
	if werr := observability.WriteTextfile(path); werr != nil {
		log.Warn().Err(werr).Str("path", path).Msg("idfctl: metrics textfile")
		if err == nil {
			err = werr
		}
	}
	return err
}

// precisionLabel is the metrics label for a grid read that may have failed
// before the header was known.
func precisionLabel(p idf.Precision, err error) string {
	if err != nil {
		return "unknown"
	}
	return p.String()
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.idf>",
		Short: "Print the header of an IDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := idf.ReadHeader(args[0])
			observability.RecordGridIO("read_header", precisionLabel(h.Precision, err), err == nil)
			if err != nil {
				return err
			}
			printHeader(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func printHeader(w io.Writer, h idf.Header) {
	fmt.Fprintf(w, "precision  %s\n", h.Precision)
	fmt.Fprintf(w, "ncol       %d\n", h.NCol)
	fmt.Fprintf(w, "nrow       %d\n", h.NRow)
	fmt.Fprintf(w, "xmin       %g\n", h.XMin)
	fmt.Fprintf(w, "xmax       %g\n", h.XMax)
	fmt.Fprintf(w, "ymin       %g\n", h.YMin)
	fmt.Fprintf(w, "ymax       %g\n", h.YMax)
	fmt.Fprintf(w, "dx         %g\n", h.DX)
	fmt.Fprintf(w, "dy         %g\n", h.DY)
	fmt.Fprintf(w, "dmin       %g\n", h.DMin)
	fmt.Fprintf(w, "dmax       %g\n", h.DMax)
	fmt.Fprintf(w, "nodata     %g\n", h.NoData)
	if h.HasTopBottom {
		fmt.Fprintf(w, "top        %g\n", h.Top)
		fmt.Fprintf(w, "bottom     %g\n", h.Bottom)
	}
}

func newToASCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "to-asc <in.idf> <out.asc>",
		Short: "Convert an IDF grid to ESRI ASCII",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, a, err := idf.Read(args[0])
			observability.RecordGridIO("read", precisionLabel(h.Precision, err), err == nil)
			if err != nil {
				return err
			}
			if err := writeFile(args[1], func(w io.Writer) error {
				return idf.WriteASCII(w, idf.ToRaster(h, a))
			}); err != nil {
				return err
			}
			log.Info().Str("in", args[0]).Str("out", args[1]).Msg("idfctl to-asc")
			return nil
		},
	}
}

func newFromASCCmd() *cobra.Command {
	var (
		precision string
		noData    float64
	)
	cmd := &cobra.Command{
		Use:   "from-asc <in.asc> <out.idf>",
		Short: "Convert an ESRI ASCII grid to IDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := idf.ParsePrecision(precision)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			r, err := idf.ReadASCII(bufio.NewReader(f))
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			a, ref, err := idf.FromRaster(r)
			if err != nil {
				return err
			}

			opts := []idf.WriteOption{idf.WithPrecision(p)}
			if cmd.Flags().Changed("nodata") {
				n := a.ReplaceNoData(r.NoData, noData)
				log.Debug().Int("cells", n).Float64("from", r.NoData).Float64("to", noData).Msg("idfctl from-asc nodata remap")
				opts = append(opts, idf.WithNoData(noData))
			} else {
				opts = append(opts, idf.WithNoData(r.NoData))
			}
			err = idf.Write(args[1], a, ref, opts...)
			observability.RecordGridIO("write", p.String(), err == nil)
			if err != nil {
				return err
			}
			log.Info().Str("in", args[0]).Str("out", args[1]).Stringer("precision", p).Msg("idfctl from-asc")
			return nil
		},
	}
	cmd.Flags().StringVar(&precision, "precision", "single", "element width: single|double")
	cmd.Flags().Float64Var(&noData, "nodata", idf.DefaultNoData, "nodata sentinel for the output; cells equal to the ASCII NODATA_value are rewritten to it")
	return cmd
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		return err
	}
	return bw.Flush()
}
