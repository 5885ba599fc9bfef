package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"sailperf/internal/derive"
	"sailperf/internal/merge"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func requireErrPrefix(t *testing.T, err error, prefix string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with prefix %q, got nil", prefix)
	}
	if !strings.HasPrefix(err.Error(), prefix) {
		t.Fatalf("error=%q want prefix %q", err.Error(), prefix)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log=%+v want info/text", cfg.Log)
	}
	if cfg.Polar.TWABinWidth != 5 {
		t.Fatalf("twa_bin_width=%v want 5", cfg.Polar.TWABinWidth)
	}
	if cfg.Polar.AWSBinWidth != 0 || cfg.Polar.ByTack {
		t.Fatalf("polar grouping should default off: %+v", cfg.Polar)
	}
	if cfg.Dataset.TrackTolerance != 2*time.Second {
		t.Fatalf("track_tolerance=%s want 2s", cfg.Dataset.TrackTolerance)
	}
	if cfg.MergeOptions().Angles != merge.AngleLinear {
		t.Fatalf("angles=%q want linear", cfg.MergeOptions().Angles)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("Load(\"\")=%+v want Default()=%+v", cfg, Default())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	requireErrPrefix(t, err, "read config")
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeTempConfig(t, "polar: [\n")
	_, err := Load(path)
	requireErrPrefix(t, err, "parse config")
}

func TestLoad_FileValues(t *testing.T) {
	path := writeTempConfig(t, `
log:
  level: debug
  format: json
decode:
  verify_checksum: true
merge:
  angle_mode: shortest
dataset:
  exclude_engine: true
  race_start: "2025-07-26T13:15:00"
  race_end: "2025-07-26 15:15:00"
  track: race.gpx
  track_tolerance: 3s
polar:
  twa_bin_width: 10
  aws_bin_width: 4
  by_tack: true
metrics:
  textfile: /tmp/sailperf.prom
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Decode.VerifyChecksum {
		t.Fatalf("verify_checksum not read")
	}
	if cfg.MergeOptions().Angles != merge.AngleShortest {
		t.Fatalf("angles=%q want shortest", cfg.MergeOptions().Angles)
	}
	po := cfg.PolarOptions()
	if po.TWABinWidth != 10 || po.AWSBinWidth != 4 || !po.ByTack {
		t.Fatalf("polar options=%+v", po)
	}

	do, err := cfg.DeriveOptions()
	if err != nil {
		t.Fatalf("DeriveOptions() error: %v", err)
	}
	if len(do.Exclude) != len(derive.DefaultEngineWindows) {
		t.Fatalf("exclude=%d windows want built-in %d", len(do.Exclude), len(derive.DefaultEngineWindows))
	}
	wantStart := time.Date(2025, 7, 26, 13, 15, 0, 0, time.UTC)
	if !do.RaceStart.Equal(wantStart) || !do.TrimEnabled() {
		t.Fatalf("race start=%s trim=%v", do.RaceStart, do.TrimEnabled())
	}
	if do.TrackTolerance != 3*time.Second {
		t.Fatalf("track tolerance=%s want 3s", do.TrackTolerance)
	}
}

func TestLoad_CustomEngineWindows(t *testing.T) {
	path := writeTempConfig(t, `
dataset:
  exclude_engine: true
  engine_windows:
    - start: "2025-08-01 10:00:00"
      end: "2025-08-01 10:30:00"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ws, err := cfg.Dataset.Windows()
	if err != nil {
		t.Fatalf("Windows() error: %v", err)
	}
	if len(ws) != 1 || ws[0].End.Sub(ws[0].Start) != 30*time.Minute {
		t.Fatalf("windows=%+v", ws)
	}

	cfg.Dataset.ExcludeEngine = false
	if ws, _ := cfg.Dataset.Windows(); ws != nil {
		t.Fatalf("windows=%+v want none when exclusion is off", ws)
	}
}

func TestLoad_LoneRaceBoundIsAccepted(t *testing.T) {
	path := writeTempConfig(t, "dataset:\n  race_start: '2025-07-26T13:15:00'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	do, err := cfg.DeriveOptions()
	if err != nil {
		t.Fatalf("DeriveOptions() error: %v", err)
	}
	if do.TrimEnabled() {
		t.Fatalf("trim should stay off with only a start bound")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SAILPERF_LOG_LEVEL", "warn")
	t.Setenv("SAILPERF_METRICS_TEXTFILE", "/var/lib/node_exporter/sailperf.prom")
	t.Setenv("SAILPERF_TRACK", "env.fit")

	path := writeTempConfig(t, "log:\n  level: debug\ndataset:\n  track: file.gpx\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("level=%q want warn", cfg.Log.Level)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/sailperf.prom" {
		t.Fatalf("textfile=%q", cfg.Metrics.Textfile)
	}
	if cfg.Dataset.Track != "env.fit" {
		t.Fatalf("track=%q want env.fit", cfg.Dataset.Track)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "LogLevel",
			yaml: "log:\n  level: chatty\n",
			want: `log.level must be one of debug, info, warn, error (got "chatty")`,
		},
		{
			name: "LogFormat",
			yaml: "log:\n  format: xml\n",
			want: `log.format must be text or json (got "xml")`,
		},
		{
			name: "AngleMode",
			yaml: "merge:\n  angle_mode: spline\n",
			want: `merge.angle_mode: unknown angle interpolation "spline"`,
		},
		{
			name: "TWABinWidth",
			yaml: "polar:\n  twa_bin_width: -5\n",
			want: "polar.twa_bin_width must be > 0",
		},
		{
			name: "AWSBinWidth",
			yaml: "polar:\n  aws_bin_width: -1\n",
			want: "polar.aws_bin_width must be >= 0",
		},
		{
			name: "TrackTolerance",
			yaml: "dataset:\n  track_tolerance: -1s\n",
			want: "dataset.track_tolerance must be >= 0",
		},
		{
			name: "EngineWindowOrder",
			yaml: "dataset:\n  exclude_engine: true\n  engine_windows:\n    - start: '2025-07-26 13:00:00'\n      end: '2025-07-26 12:00:00'\n",
			want: "dataset.engine_windows[0].end must not be before start",
		},
		{
			name: "RaceOrder",
			yaml: "dataset:\n  race_start: '2025-07-26 15:00:00'\n  race_end: '2025-07-26 13:00:00'\n",
			want: "dataset.race_end must not be before dataset.race_start",
		},
		{
			name: "RaceStartUnparseable",
			yaml: "dataset:\n  race_start: 'after lunch'\n",
			want: `dataset.race_start: unrecognized timestamp "after lunch"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}
