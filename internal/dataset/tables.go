package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"sailperf/internal/polar"
	"sailperf/internal/vmg"
)

const (
	ColTWABin = "twa_bin"
	ColAWSBin = "aws_bin"
	ColMin    = "min"
	ColMax    = "max"
	ColMean   = "mean"
	ColCount  = "count"
)

// VMGColumns is the header of the optimizer output.
var VMGColumns = []string{
	ColAWSBin,
	"upwind_angle", "upwind_vmg", "upwind_speed",
	"downwind_angle", "downwind_vmg", "downwind_speed",
	"data_points",
}

// PolarColumns is the header of the polar table for the given grouping.
func PolarColumns(opts polar.Options) []string {
	cols := []string{ColTWABin}
	if opts.ByTack {
		cols = append(cols, ColTack)
	}
	if opts.AWSBinWidth > 0 {
		cols = append(cols, ColAWSBin)
	}
	return append(cols, ColMin, ColMax, ColMean, ColCount)
}

func WritePolar(w io.Writer, stats []polar.Stat, opts polar.Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PolarColumns(opts)); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, s := range stats {
		row := []string{strconv.FormatFloat(s.TWABin, 'f', -1, 64)}
		if opts.ByTack {
			row = append(row, string(s.Tack))
		}
		if opts.AWSBinWidth > 0 {
			label := ""
			if s.AWS != nil {
				label = s.AWS.Label()
			}
			row = append(row, label)
		}
		row = append(row, FormatFloat(s.Min), FormatFloat(s.Max), FormatFloat(s.Mean), strconv.Itoa(s.Count))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPolar reads a polar table. Tack and AWS bin are read when their columns
// are present.
func ReadPolar(r io.Reader) ([]polar.Stat, error) {
	t, err := readTable(r, ColTWABin)
	if err != nil {
		return nil, err
	}
	out := make([]polar.Stat, 0, len(t.rows))
	for i, row := range t.rows {
		var s polar.Stat
		twa, err := t.float(i, row, ColTWABin)
		if err != nil {
			return nil, err
		}
		if twa == nil {
			return nil, t.rowErr(i, ColTWABin, fmt.Errorf("empty"))
		}
		s.TWABin = *twa
		if s.Tack, err = parseTack(t.str(row, ColTack)); err != nil {
			return nil, t.rowErr(i, ColTack, err)
		}
		if label := t.str(row, ColAWSBin); t.has(ColAWSBin) && label != "" {
			b, err := polar.ParseAWSBin(label)
			if err != nil {
				return nil, t.rowErr(i, ColAWSBin, err)
			}
			s.AWS = &b
		}
		if s.Min, err = t.float(i, row, ColMin); err != nil {
			return nil, err
		}
		if s.Max, err = t.float(i, row, ColMax); err != nil {
			return nil, err
		}
		if s.Mean, err = t.float(i, row, ColMean); err != nil {
			return nil, err
		}
		if s.Count, err = t.integer(i, row, ColCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func WriteVMG(w io.Writer, results []vmg.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(VMGColumns); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, r := range results {
		row := []string{r.AWSBin.Label()}
		row = append(row, optimumCells(r.Upwind)...)
		row = append(row, optimumCells(r.Downwind)...)
		row = append(row, strconv.Itoa(r.DataPoints))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func optimumCells(o *vmg.Optimum) []string {
	if o == nil {
		return []string{"", "", ""}
	}
	return []string{
		strconv.FormatFloat(o.Angle, 'f', -1, 64),
		strconv.FormatFloat(o.VMG, 'f', -1, 64),
		strconv.FormatFloat(o.Speed, 'f', -1, 64),
	}
}
