// Package metrics collects per-run pipeline counters in a private Prometheus
// registry and writes them out in the node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"sailperf/internal/derive"
	"sailperf/internal/merge"
	"sailperf/internal/nmea"
	"sailperf/internal/rawlog"
	"sailperf/internal/sample"
)

const namespace = "sailperf"

// Metrics holds one run's collectors. Every series carries the run_id label.
type Metrics struct {
	RunID string

	reg *prometheus.Registry

	LinesRead      prometheus.Counter
	MalformedLines prometheus.Counter
	Decoded        *prometheus.CounterVec
	Skipped        *prometheus.CounterVec
	Duplicates     prometheus.Counter
	Filled         *prometheus.CounterVec
	Filtered       *prometheus.CounterVec
	TrackMatched   prometheus.Counter
	MergedRows     prometheus.Gauge
	DatasetRows    prometheus.Gauge
	PolarGroups    prometheus.Gauge
	VMGBins        prometheus.Gauge
	StageSeconds   *prometheus.HistogramVec
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// New builds the collectors for a run. An empty runID gets a generated one.
func New(runID string) *Metrics {
	if runID == "" {
		runID = NewRunID()
	}
	reg := prometheus.NewRegistry()
	r := prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, reg)

	m := &Metrics{RunID: runID, reg: reg}
	m.LinesRead = newCounter(r, prometheus.CounterOpts{Name: "log_lines_total", Help: "Log lines read"})
	m.MalformedLines = newCounter(r, prometheus.CounterOpts{Name: "log_lines_malformed_total", Help: "Log lines not in epoch;status;sentence form"})
	m.Decoded = newCounterVec(r, prometheus.CounterOpts{Name: "sentences_decoded_total", Help: "Sentences decoded by kind"}, []string{"kind"})
	m.Skipped = newCounterVec(r, prometheus.CounterOpts{Name: "sentences_skipped_total", Help: "Sentences skipped by reason"}, []string{"reason"})
	m.Duplicates = newCounter(r, prometheus.CounterOpts{Name: "merge_duplicates_total", Help: "Records dropped as same-second duplicates"})
	m.Filled = newCounterVec(r, prometheus.CounterOpts{Name: "merge_filled_total", Help: "Channel values filled by interpolation"}, []string{"channel"})
	m.Filtered = newCounterVec(r, prometheus.CounterOpts{Name: "rows_filtered_total", Help: "Rows removed by filter"}, []string{"filter"})
	m.TrackMatched = newCounter(r, prometheus.CounterOpts{Name: "track_matched_total", Help: "Rows given a travel-log position"})
	m.MergedRows = newGauge(r, prometheus.GaugeOpts{Name: "merged_rows", Help: "Rows in the merged series"})
	m.DatasetRows = newGauge(r, prometheus.GaugeOpts{Name: "dataset_rows", Help: "Rows in the performance dataset"})
	m.PolarGroups = newGauge(r, prometheus.GaugeOpts{Name: "polar_groups", Help: "Observed polar groups"})
	m.VMGBins = newGauge(r, prometheus.GaugeOpts{Name: "vmg_bins", Help: "Wind speed bins with a VMG result"})
	m.StageSeconds = newHistVec(r, prometheus.HistogramOpts{
		Name:    "stage_duration_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"stage"})
	return m
}

func newCounter(r prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = namespace
	c := prometheus.NewCounter(opts)
	r.MustRegister(c)
	return c
}

func newCounterVec(r prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = namespace
	c := prometheus.NewCounterVec(opts, labels)
	r.MustRegister(c)
	return c
}

func newGauge(r prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = namespace
	g := prometheus.NewGauge(opts)
	r.MustRegister(g)
	return g
}

func newHistVec(r prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	opts.Namespace = namespace
	h := prometheus.NewHistogramVec(opts, labels)
	r.MustRegister(h)
	return h
}

// Registry exposes the run's registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Stage starts timing a pipeline stage; call ObserveDuration when it ends.
func (m *Metrics) Stage(name string) *prometheus.Timer {
	return prometheus.NewTimer(m.StageSeconds.WithLabelValues(name))
}

func (m *Metrics) RecordRead(st rawlog.Stats) {
	m.LinesRead.Add(float64(st.Lines))
	m.MalformedLines.Add(float64(st.Malformed))
}

func (m *Metrics) RecordDecode(st nmea.Stats) {
	for kind, n := range st.Decoded {
		m.Decoded.WithLabelValues(kind.String()).Add(float64(n))
	}
	for reason, n := range st.Skipped {
		m.Skipped.WithLabelValues(string(reason)).Add(float64(n))
	}
}

func (m *Metrics) RecordMerge(res merge.Result) {
	m.Duplicates.Add(float64(res.Duplicates))
	for _, c := range sample.AllChannels() {
		if n := res.Filled[c]; n > 0 {
			m.Filled.WithLabelValues(c.String()).Add(float64(n))
		}
	}
	m.MergedRows.Set(float64(len(res.Samples)))
}

func (m *Metrics) RecordDerive(res derive.Result) {
	m.Filtered.WithLabelValues("engine").Add(float64(res.Excluded))
	m.Filtered.WithLabelValues("race").Add(float64(res.Trimmed))
	m.TrackMatched.Add(float64(res.TrackMatched))
	m.DatasetRows.Set(float64(len(res.Samples)))
}

// WriteTextfile writes every series to path. A blank path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	return nil
}
