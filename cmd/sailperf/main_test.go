package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sailperf/internal/dataset"
	"sailperf/internal/sample"
)

// A two minute beat with the wind drawing aft from 40 to 60 degrees at a
// steady 9 knots and 6 knots through the water.
const beatScenario = `
version: 1
start: "2025-07-26 13:00:00"
keyframes:
  - t: 0s
    lat_deg: 48.1
    lon_deg: 11.5
    sog_knots: 5
    stw_knots: 6
    awa_deg: 40
    aws_knots: 9
    heading_deg: 0
  - t: 120s
    lat_deg: 48.11
    lon_deg: 11.5
    sog_knots: 5
    stw_knots: 6
    awa_deg: 60
    aws_knots: 9
    heading_deg: 0
`

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func simulateBeat(t *testing.T, dir string) string {
	t.Helper()
	scenario := filepath.Join(dir, "beat.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(beatScenario), 0o644))

	logPath := filepath.Join(dir, "beat.log")
	code, stdout, stderr := runCLI(t, "simulate", "-scenario", scenario, "-o", logPath)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Wrote simulated log to "+logPath)
	return logPath
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: sailperf")

	code, _, stderr = runCLI(t, "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)

	code, _, stderr = runCLI(t, "build")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: sailperf build")

	code, _, _ = runCLI(t, "simulate")
	assert.Equal(t, 2, code)
}

func TestRun_MissingInputFails(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := runCLI(t, "build", "-o", filepath.Join(dir, "c.csv"), filepath.Join(dir, "missing.csv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "command failed")
	assert.NoFileExists(t, filepath.Join(dir, "c.csv"))
}

func TestRun_BadConfigFails(t *testing.T) {
	code, _, stderr := runCLI(t, "-config", filepath.Join(t.TempDir(), "nope.yaml"), "summary", "x.log")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "config load failed")
}

func TestRun_FlagValidation(t *testing.T) {
	dir := t.TempDir()
	logPath := simulateBeat(t, dir)
	code, _, stderr := runCLI(t, "run", "-out", dir, "-twa-bin-size", "0", logPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "polar.twa_bin_width must be > 0")
}

func TestRun_Pipeline(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "metrics.prom")
	t.Setenv("SAILPERF_METRICS_TEXTFILE", metricsPath)

	logPath := simulateBeat(t, dir)
	out := filepath.Join(dir, "out")
	code, stdout, stderr := runCLI(t, "run", "-out", out, logPath)
	require.Equal(t, 0, code, stderr)

	for what, name := range map[string]string{
		"decoded records":      "records.csv",
		"merged dataset":       "combined.csv",
		"polar stats":          "polar.csv",
		"detailed VMG results": "vmg.csv",
	} {
		assert.Contains(t, stdout, "Wrote "+what+" to "+filepath.Join(out, name))
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.Contains(t, stdout, "AWS Bin: 8-10 knots")
	assert.Contains(t, stdout, "Optimal Upwind: 40.0° TWA")
	assert.Contains(t, stdout, "Speed: 6.0 knots")
	assert.Contains(t, stdout, "No downwind data available")

	stats, err := dataset.OpenFile(filepath.Join(out, "polar.csv"), dataset.ReadPolar)
	require.NoError(t, err)
	require.Len(t, stats, 5)
	for i, s := range stats {
		assert.Equal(t, 40+5*float64(i), s.TWABin)
		require.NotNil(t, s.AWS)
		assert.Equal(t, "8-10", s.AWS.Label())
	}

	rows, err := dataset.OpenFile(filepath.Join(out, "combined.csv"), dataset.ReadCombined)
	require.NoError(t, err)
	require.Len(t, rows, 121)
	assert.Equal(t, sample.TackStarboard, rows[60].Tack)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`sailperf_polar_groups\{run_id="[0-9a-f-]{36}"\} 5`), string(prom))
	assert.Regexp(t, regexp.MustCompile(`sailperf_log_lines_total\{run_id="[^"]+"\} 121`), string(prom))
	assert.Contains(t, stderr, "run_id=")
}

func TestRun_StageByStage(t *testing.T) {
	dir := t.TempDir()
	logPath := simulateBeat(t, dir)
	records := filepath.Join(dir, "records.csv")
	combined := filepath.Join(dir, "combined.csv")
	polarPath := filepath.Join(dir, "polar.csv")
	vmgPath := filepath.Join(dir, "vmg.csv")

	code, stdout, stderr := runCLI(t, "decode", logPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "datetime,")

	code, _, stderr = runCLI(t, "decode", "-o", records, logPath)
	require.Equal(t, 0, code, stderr)

	// A lone race bound is accepted and only warned about.
	code, stdout, stderr = runCLI(t, "build", "-o", combined, "-start-time", "2025-07-26 13:00:30", records)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Wrote merged dataset to "+combined)
	assert.Contains(t, stderr, "race trimming needs both start and end time")

	code, stdout, stderr = runCLI(t, "polar", "-o", polarPath, "-aws-bin-size", "2", "-by-tack", "-print", combined)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Wrote polar stats to "+polarPath)

	code, stdout, stderr = runCLI(t, "vmg", "-o", vmgPath, polarPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "VMG Analysis Results:")
	assert.Contains(t, stdout, "Optimal Upwind: 40.0° TWA")
	assert.Contains(t, stdout, "Wrote detailed VMG results to "+vmgPath)

	b, err := os.ReadFile(vmgPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "aws_bin,upwind_angle,upwind_vmg,upwind_speed,")
	assert.Contains(t, string(b), "\n8-10,40,")
}

func TestRun_BuildTrimsRace(t *testing.T) {
	dir := t.TempDir()
	logPath := simulateBeat(t, dir)
	records := filepath.Join(dir, "records.csv")
	combined := filepath.Join(dir, "combined.csv")

	code, _, stderr := runCLI(t, "decode", "-o", records, logPath)
	require.Equal(t, 0, code, stderr)
	code, _, stderr = runCLI(t, "build", "-o", combined,
		"-start-time", "2025-07-26T13:00:30", "-end-time", "2025-07-26T13:01:00", records)
	require.Equal(t, 0, code, stderr)

	rows, err := dataset.OpenFile(combined, dataset.ReadCombined)
	require.NoError(t, err)
	require.Len(t, rows, 31)
	assert.Equal(t, "2025-07-26 13:00:30.000", sample.FormatTime(rows[0].Time))
}
