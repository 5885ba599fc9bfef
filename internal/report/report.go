// Package report prints polar and VMG results for a human at the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"sailperf/internal/polar"
	"sailperf/internal/vmg"
)

const (
	NoUpwind   = "No upwind data available"
	NoDownwind = "No downwind data available"
	NoVMG      = "No VMG data available"
	NoPolar    = "No polar data available"
)

// Console writes reports to out.
type Console struct {
	out io.Writer
}

// NewConsoleWriter reports to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Wrote confirms a finished output file.
func (c *Console) Wrote(what, path string) {
	fmt.Fprintf(c.out, "Wrote %s to %s\n", what, path)
}

// PolarTable renders the polar statistics with the grouping columns in opts.
func (c *Console) PolarTable(stats []polar.Stat, opts polar.Options) {
	if len(stats) == 0 {
		fmt.Fprintln(c.out, NoPolar)
		return
	}

	header := []any{"TWA"}
	if opts.ByTack {
		header = append(header, "Tack")
	}
	if opts.AWSBinWidth > 0 {
		header = append(header, "AWS (kn)")
	}
	header = append(header, "Min", "Max", "Mean", "Count")

	table := tablewriter.NewWriter(c.out)
	table.Header(header...)
	for _, s := range stats {
		row := []any{fmt.Sprintf("%g", s.TWABin)}
		if opts.ByTack {
			row = append(row, string(s.Tack))
		}
		if opts.AWSBinWidth > 0 {
			label := "-"
			if s.AWS != nil {
				label = s.AWS.Label()
			}
			row = append(row, label)
		}
		row = append(row, knots(s.Min), knots(s.Max), knots(s.Mean), fmt.Sprintf("%d", s.Count))
		table.Append(row...)
	}
	table.Render()
}

// VMGTable renders one row per wind speed bin.
func (c *Console) VMGTable(results []vmg.Result) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, NoVMG)
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("AWS (kn)", "Up TWA", "Up STW", "Up VMG", "Down TWA", "Down STW", "Down VMG", "Points")
	for _, r := range results {
		row := []any{r.AWSBin.Label()}
		row = append(row, optimumCells(r.Upwind)...)
		row = append(row, optimumCells(r.Downwind)...)
		row = append(row, fmt.Sprintf("%d", r.DataPoints))
		table.Append(row...)
	}
	table.Render()
}

// VMGReport prints the optimum angles per wind speed bin as text.
func (c *Console) VMGReport(results []vmg.Result) {
	fmt.Fprintln(c.out, "VMG Analysis Results:")
	fmt.Fprintln(c.out, strings.Repeat("=", 80))
	if len(results) == 0 {
		fmt.Fprintln(c.out, NoVMG)
		return
	}
	for _, r := range results {
		fmt.Fprintf(c.out, "\nAWS Bin: %s knots\n", r.AWSBin.Label())
		fmt.Fprintf(c.out, "Data points: %d\n", r.DataPoints)
		c.printOptimum("Upwind", NoUpwind, r.Upwind)
		c.printOptimum("Downwind", NoDownwind, r.Downwind)
	}
}

func (c *Console) printOptimum(side, missing string, o *vmg.Optimum) {
	if o == nil {
		fmt.Fprintf(c.out, "  %s\n", missing)
		return
	}
	fmt.Fprintf(c.out, "  Optimal %s: %.1f° TWA\n", side, o.Angle)
	fmt.Fprintf(c.out, "    Speed: %.1f knots\n", o.Speed)
	fmt.Fprintf(c.out, "    VMG: %.1f knots\n", o.VMG)
}

func optimumCells(o *vmg.Optimum) []any {
	if o == nil {
		return []any{"-", "-", "-"}
	}
	return []any{fmt.Sprintf("%.0f°", o.Angle), fmt.Sprintf("%.2f", o.Speed), fmt.Sprintf("%.2f", o.VMG)}
}

func knots(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
