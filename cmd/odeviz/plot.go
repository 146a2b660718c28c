package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/odeviz/internal/analysis"
	"github.com/san-kum/odeviz/internal/archive"
	"github.com/san-kum/odeviz/internal/coordinator"
	"github.com/san-kum/odeviz/internal/export"
)

var errNoSeries = errors.New("record has no plottable y_values")

type plotFlags struct {
	width  int
	height int
}

func (a *cli) plotCommands() []*cobra.Command {
	var pf plotFlags
	plotCmd := &cobra.Command{
		Use:   "plot [id]",
		Short: "plot y(t) of a saved simulation",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRecord(func(cmd *cobra.Command, d *coordinator.Display, t, y []float64) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "simulation: #%d %s\n", d.Metadata.ID, d.Metadata.Name)
			fmt.Fprintf(out, "type: %s\n", d.Metadata.EquationType)
			fmt.Fprintf(out, "samples: %d\n\n", len(y))

			graph := asciigraph.Plot(y,
				asciigraph.Height(pf.height),
				asciigraph.Width(pf.width),
				asciigraph.Caption(fmt.Sprintf("y(t), t in [%g, %g]", t[0], t[len(t)-1])),
			)
			fmt.Fprintln(out, graph)
			return nil
		}),
	}
	plotCmd.Flags().IntVar(&pf.width, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&pf.height, "height", 10, "plot height")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [id]",
		Short: "extrema, period and frequency analysis",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRecord(func(cmd *cobra.Command, d *coordinator.Display, t, y []float64) error {
			out := cmd.OutOrStdout()
			res := analysis.Analyze(t, y)

			title(out, fmt.Sprintf("#%d %s", d.Metadata.ID, d.Metadata.Name))
			fmt.Fprintf(out, "max:       %.6f\n", res.MaxValue)
			fmt.Fprintf(out, "min:       %.6f\n", res.MinValue)
			fmt.Fprintf(out, "amplitude: %.6f\n", res.Amplitude)
			fmt.Fprintf(out, "final t:   %.4f\n", res.FinalTime)
			if res.PeriodEstimate > 0 {
				fmt.Fprintf(out, "period:    %.4f\n", res.PeriodEstimate)
			} else {
				fmt.Fprintln(out, "period:    n/a")
			}

			if freq := analysis.DominantFrequency(t, y); freq > 0 {
				fmt.Fprintf(out, "dominant:  %.4f Hz (period %.4f)\n", freq, 1/freq)
			}

			if ps := analysis.PowerSpectrum(y); len(ps) > 2 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, asciigraph.Plot(ps[1:],
					asciigraph.Height(8),
					asciigraph.Width(60),
					asciigraph.Caption("power spectrum"),
				))
			}
			return nil
		}),
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [id]",
		Short: "phase portrait y' against y",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRecord(func(cmd *cobra.Command, d *coordinator.Display, t, y []float64) error {
			portrait := analysis.PhasePortrait(t, y)
			if portrait == nil {
				return errNoSeries
			}
			fmt.Fprintf(cmd.OutOrStdout(), "phase portrait: #%d %s\n\n", d.Metadata.ID, d.Metadata.Name)
			fmt.Fprintln(cmd.OutOrStdout(), analysis.PhasePortraitToASCII(portrait, 60, 20))
			return nil
		}),
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [id] [file]",
		Short: "write t,y samples as CSV (- for stdout)",
		Args:  cobra.ExactArgs(2),
		RunE: a.withRecord(func(cmd *cobra.Command, d *coordinator.Display, t, y []float64) error {
			dest := cmd.Flags().Arg(1)
			if dest == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), t, y)
			}

			f, err := os.Create(dest)
			if err != nil {
				return err
			}
			if err := export.WriteCSV(f, t, y); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d samples to %s\n", len(y), dest)
			return nil
		}),
	}

	var svgPhase bool
	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [id] [file]",
		Short: "render the trajectory as SVG",
		Args:  cobra.ExactArgs(2),
		RunE: a.withRecord(func(cmd *cobra.Command, d *coordinator.Display, t, y []float64) error {
			xs, ys := t, y
			if svgPhase {
				portrait := analysis.PhasePortrait(t, y)
				if portrait == nil {
					return errNoSeries
				}
				xs = make([]float64, len(portrait.Points))
				ys = make([]float64, len(portrait.Points))
				for i, p := range portrait.Points {
					xs[i], ys[i] = p.X, p.Y
				}
			}

			svg := export.TrajectoryToSVG(xs, ys, export.SVGOptions{Title: d.Metadata.Name})
			if svg == "" {
				return errNoSeries
			}
			dest := cmd.Flags().Arg(1)
			if err := os.WriteFile(dest, []byte(svg), 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dest)
			return nil
		}),
	}
	exportSVGCmd.Flags().BoolVar(&svgPhase, "phase", false, "draw the phase portrait instead of y(t)")

	return []*cobra.Command{plotCmd, analyzeCmd, phaseCmd, exportCSVCmd, exportSVGCmd}
}

// withRecord loads the record named by the first argument and its samples.
func (a *cli) withRecord(fn func(cmd *cobra.Command, d *coordinator.Display, t, y []float64) error) func(*cobra.Command, []string) error {
	return a.withArchive(func(cmd *cobra.Command, args []string, c *coordinator.Coordinator) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		d, err := c.LoadForDisplay(id)
		if err != nil {
			return err
		}
		t, y, err := samples(d)
		if err != nil {
			return fmt.Errorf("#%d: %w", id, err)
		}
		return fn(cmd, d, t, y)
	})
}

// samples returns the stored t_values, or an even grid over the record's
// time range when they are missing.
func samples(d *coordinator.Display) ([]float64, []float64, error) {
	y, ok := archive.Series(d.Results, "y_values")
	if !ok || len(y) < 2 {
		return nil, nil, errNoSeries
	}
	if t, ok := archive.Series(d.Results, "t_values"); ok && len(t) == len(y) {
		return t, y, nil
	}

	start, end := d.Metadata.TimeRange[0], d.Metadata.TimeRange[1]
	t := make([]float64, len(y))
	step := (end - start) / float64(len(y)-1)
	for i := range t {
		t[i] = start + float64(i)*step
	}
	return t, y, nil
}
