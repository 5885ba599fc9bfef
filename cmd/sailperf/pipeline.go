package main

import (
	"flag"
	"io"
	"path/filepath"

	"sailperf/internal/dataset"
	"sailperf/internal/derive"
	"sailperf/internal/merge"
	"sailperf/internal/nmea"
	"sailperf/internal/polar"
	"sailperf/internal/rawlog"
	"sailperf/internal/sample"
	"sailperf/internal/track"
	"sailperf/internal/vmg"
)

// runAWSBinWidth is used by the run command when no AWS bin width is
// configured; VMG has nothing to work with otherwise.
const runAWSBinWidth = 2

func runDecode(a *app, args []string) error {
	fs := a.newFlagSet("decode", "log...")
	out := fs.String("o", "", "Records CSV to write (default stdout)")
	fs.BoolVar(&a.cfg.Decode.VerifyChecksum, "verify-checksum", a.cfg.Decode.VerifyChecksum, "Drop sentences with a bad *hh checksum")
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}

	recs, err := a.decode(fs.Args())
	if err != nil {
		return err
	}
	if *out == "" {
		return dataset.WriteRecords(a.stdout, recs)
	}
	return a.write("decoded records", *out, func(w io.Writer) error {
		return dataset.WriteRecords(w, recs)
	})
}

func runBuild(a *app, args []string) error {
	fs := a.newFlagSet("build", "records.csv")
	out := fs.String("o", "combined.csv", "Combined dataset CSV to write")
	a.datasetFlags(fs)
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	recs, err := dataset.OpenFile(fs.Arg(0), dataset.ReadRecords)
	if err != nil {
		return err
	}
	rows, withTrack, err := a.build(recs)
	if err != nil {
		return err
	}
	return a.write("merged dataset", *out, func(w io.Writer) error {
		return dataset.WriteCombined(w, rows, withTrack)
	})
}

func runPolar(a *app, args []string) error {
	fs := a.newFlagSet("polar", "combined.csv")
	out := fs.String("o", "polar.csv", "Polar CSV to write")
	printTable := fs.Bool("print", false, "Print the polar table")
	a.polarFlags(fs)
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	rows, err := dataset.OpenFile(fs.Arg(0), dataset.ReadCombined)
	if err != nil {
		return err
	}
	opts := a.cfg.PolarOptions()
	stats := a.aggregate(rows, opts)
	if *printTable {
		a.console.PolarTable(stats, opts)
	}
	return a.write("polar stats", *out, func(w io.Writer) error {
		return dataset.WritePolar(w, stats, opts)
	})
}

func runVMG(a *app, args []string) error {
	fs := a.newFlagSet("vmg", "polar.csv")
	out := fs.String("o", "", "Detailed VMG CSV to write (optional)")
	table := fs.Bool("table", false, "Print a summary table after the report")
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}

	stats, err := dataset.OpenFile(fs.Arg(0), dataset.ReadPolar)
	if err != nil {
		return err
	}
	results := a.optimize(stats)
	a.console.VMGReport(results)
	if *table {
		a.console.VMGTable(results)
	}
	if *out == "" {
		return nil
	}
	return a.write("detailed VMG results", *out, func(w io.Writer) error {
		return dataset.WriteVMG(w, results)
	})
}

func runPipeline(a *app, args []string) error {
	fs := a.newFlagSet("run", "log...")
	dir := fs.String("out", ".", "Directory for records.csv, combined.csv, polar.csv and vmg.csv")
	fs.BoolVar(&a.cfg.Decode.VerifyChecksum, "verify-checksum", a.cfg.Decode.VerifyChecksum, "Drop sentences with a bad *hh checksum")
	a.datasetFlags(fs)
	a.polarFlags(fs)
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}
	if a.cfg.Polar.AWSBinWidth == 0 {
		a.cfg.Polar.AWSBinWidth = runAWSBinWidth
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	recs, err := a.decode(fs.Args())
	if err != nil {
		return err
	}
	if err := a.write("decoded records", filepath.Join(*dir, "records.csv"), func(w io.Writer) error {
		return dataset.WriteRecords(w, recs)
	}); err != nil {
		return err
	}

	rows, withTrack, err := a.build(recs)
	if err != nil {
		return err
	}
	if err := a.write("merged dataset", filepath.Join(*dir, "combined.csv"), func(w io.Writer) error {
		return dataset.WriteCombined(w, rows, withTrack)
	}); err != nil {
		return err
	}

	opts := a.cfg.PolarOptions()
	stats := a.aggregate(rows, opts)
	if err := a.write("polar stats", filepath.Join(*dir, "polar.csv"), func(w io.Writer) error {
		return dataset.WritePolar(w, stats, opts)
	}); err != nil {
		return err
	}

	results := a.optimize(stats)
	a.console.VMGReport(results)
	return a.write("detailed VMG results", filepath.Join(*dir, "vmg.csv"), func(w io.Writer) error {
		return dataset.WriteVMG(w, results)
	})
}

// datasetFlags binds the dataset flags over the loaded config.
func (a *app) datasetFlags(fs *flag.FlagSet) {
	d := &a.cfg.Dataset
	fs.StringVar(&d.Track, "track", d.Track, "GPX or FIT track merged by nearest time")
	fs.BoolVar(&d.ExcludeEngine, "exclude-engine", d.ExcludeEngine, "Exclude known engine time windows")
	fs.StringVar(&d.RaceStart, "start-time", d.RaceStart, "Race start time (UTC, e.g. 2025-07-26T13:15:00)")
	fs.StringVar(&d.RaceEnd, "end-time", d.RaceEnd, "Race end time (UTC, e.g. 2025-07-26T15:15:00)")
	fs.StringVar(&a.cfg.Merge.AngleMode, "angles", a.cfg.Merge.AngleMode, "Angle gap filling: linear or shortest")
}

func (a *app) polarFlags(fs *flag.FlagSet) {
	p := &a.cfg.Polar
	fs.Float64Var(&p.TWABinWidth, "twa-bin-size", p.TWABinWidth, "TWA bin size in degrees")
	fs.IntVar(&p.AWSBinWidth, "aws-bin-size", p.AWSBinWidth, "Bin AWS in knots (0 disables)")
	fs.BoolVar(&p.ByTack, "by-tack", p.ByTack, "Split port and starboard tack")
}

// decode reads and decodes logs in the order given.
func (a *app) decode(paths []string) ([]sample.RawRecord, error) {
	timer := a.metrics.Stage("read")
	lines, rst, err := rawlog.ReadFiles(paths)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}
	a.metrics.RecordRead(rst)
	if rst.Malformed > 0 {
		a.log.Warn("malformed log lines dropped", "count", rst.Malformed)
	}

	timer = a.metrics.Stage("decode")
	recs, dst := nmea.NewDecoder(nmea.Options{VerifyChecksum: a.cfg.Decode.VerifyChecksum}).DecodeAll(lines)
	timer.ObserveDuration()
	a.metrics.RecordDecode(dst)
	a.log.Info("decoded logs",
		"files", len(paths),
		"lines", rst.Lines,
		"records", len(recs),
		"skipped", dst.TotalSkipped(),
	)
	for reason, n := range dst.Skipped {
		a.log.Debug("skipped sentences", "reason", reason, "count", n)
	}
	return recs, nil
}

// build merges records to one row per second and enriches and filters them.
// withTrack reports whether track columns belong in the output.
func (a *app) build(recs []sample.RawRecord) (rows []sample.EnrichedSample, withTrack bool, err error) {
	opts, err := a.cfg.DeriveOptions()
	if err != nil {
		return nil, false, err
	}
	d := a.cfg.Dataset
	if (d.RaceStart == "") != (d.RaceEnd == "") {
		a.log.Warn("race trimming needs both start and end time; not trimming",
			"start", d.RaceStart, "end", d.RaceEnd)
	}
	if d.Track != "" {
		fixes, err := track.LoadFile(d.Track)
		if err != nil {
			return nil, false, err
		}
		a.log.Info("loaded track", "path", d.Track, "fixes", len(fixes))
		opts.Track = fixes
		withTrack = true
	}

	timer := a.metrics.Stage("merge")
	merged := merge.Merge(recs, a.cfg.MergeOptions())
	timer.ObserveDuration()
	a.metrics.RecordMerge(merged)

	timer = a.metrics.Stage("derive")
	res := derive.Derive(merged.Samples, opts)
	timer.ObserveDuration()
	a.metrics.RecordDerive(res)

	a.log.Info("built dataset",
		"merged", len(merged.Samples),
		"duplicates", merged.Duplicates,
		"excluded", res.Excluded,
		"trimmed", res.Trimmed,
		"rows", len(res.Samples),
	)
	if withTrack {
		a.log.Info("track merged", "matched", res.TrackMatched, "tolerance", opts.TrackTolerance)
	}
	return res.Samples, withTrack, nil
}

func (a *app) aggregate(rows []sample.EnrichedSample, opts polar.Options) []polar.Stat {
	timer := a.metrics.Stage("polar")
	stats := polar.Aggregate(rows, opts)
	timer.ObserveDuration()
	a.metrics.PolarGroups.Set(float64(len(stats)))
	a.log.Info("aggregated polar", "rows", len(rows), "groups", len(stats))
	return stats
}

func (a *app) optimize(stats []polar.Stat) []vmg.Result {
	timer := a.metrics.Stage("vmg")
	results := vmg.Optimize(stats)
	timer.ObserveDuration()
	a.metrics.VMGBins.Set(float64(len(results)))
	a.log.Info("optimized vmg", "groups", len(stats), "bins", len(results))
	return results
}

// write creates path through fn and confirms it on the console.
func (a *app) write(what, path string, fn func(io.Writer) error) error {
	if err := dataset.CreateFile(path, fn); err != nil {
		return err
	}
	a.console.Wrote(what, path)
	return nil
}
