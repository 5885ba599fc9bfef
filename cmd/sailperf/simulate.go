package main

import (
	"fmt"
	"io"

	"sailperf/internal/sim"
)

func runSimulate(a *app, args []string) error {
	fs := a.newFlagSet("simulate", "")
	scenarioPath := fs.String("scenario", "", "Scenario YAML (keyframes or circuit)")
	out := fs.String("o", "sim.log", "Instrument log to write")
	if err := a.parse(fs, args, 0); err != nil {
		return err
	}
	if *scenarioPath == "" {
		fmt.Fprintln(a.stderr, "simulate: -scenario is required")
		fs.Usage()
		return errUsage
	}

	script, err := sim.LoadScenarioScript(*scenarioPath)
	if err != nil {
		return err
	}
	scn, err := sim.NewScenario(script)
	if err != nil {
		return fmt.Errorf("scenario %q: %w", *scenarioPath, err)
	}

	var n int
	if err := a.write("simulated log", *out, func(w io.Writer) error {
		var err error
		n, err = scn.WriteLog(w)
		return err
	}); err != nil {
		return err
	}
	a.log.Info("simulated",
		"scenario", *scenarioPath,
		"start", scn.Start(),
		"duration", scn.Duration(),
		"lines", n,
	)
	return nil
}
