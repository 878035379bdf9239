package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxygene76/hpgravity/internal/types"
	"github.com/oxygene76/hpgravity/pkg/analysis"
	"github.com/oxygene76/hpgravity/pkg/astronomy/nbody"
	"github.com/oxygene76/hpgravity/pkg/simulation"
)

// runCmd advances a scenario by a fixed number of steps
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario for a number of steps",
	Long: `Run advances the scenario in a batch, one rotation and one gravity step
at a time, and prints each body's final position and acceleration. Interrupting
the run stops it between steps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		every, _ := cmd.Flags().GetInt("snapshot-every")
		snapFile, _ := cmd.Flags().GetString("snapshot-file")
		digits, _ := cmd.Flags().GetInt("digits")
		output, _ := cmd.Flags().GetString("output")

		if steps < 0 {
			return fmt.Errorf("--steps must not be negative")
		}

		sys, err := scenario.BuildSystem(logger)
		if err != nil {
			return fmt.Errorf("failed to configure system: %w", err)
		}

		var sink nbody.SnapshotSink
		if snapFile != "" {
			if every <= 0 {
				every = max(steps/100, 1)
			}
			w, err := nbody.NewJSONLSnapshotWriter(snapFile, digits)
			if err != nil {
				return fmt.Errorf("failed to open snapshot file: %w", err)
			}
			defer w.Close()
			sink = w
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		start := time.Now()
		driver := simulation.NewDriver(sys, simulation.Cadence{Mode: simulation.PerFrame}, logger)
		if err := driver.Run(ctx, steps, sink, every); err != nil {
			return fmt.Errorf("run stopped after %d steps: %w", sys.Steps(), err)
		}

		report := newRunReport(sys, time.Since(start), digits)
		return printReport(report, output, digits)
	},
}

// watchCmd drives a scenario against the wall clock at its configured cadence
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Step a scenario in real time and print frame-relative positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		fps, _ := cmd.Flags().GetFloat64("fps")
		printEvery, _ := cmd.Flags().GetDuration("print-every")

		if fps <= 0 {
			return fmt.Errorf("--fps must be positive")
		}

		sys, err := scenario.BuildSystem(logger)
		if err != nil {
			return fmt.Errorf("failed to configure system: %w", err)
		}
		cadence, err := scenario.ParseCadence()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		driver := simulation.NewDriver(sys, cadence, logger)
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()

		last := time.Now()
		lastPrint := last
		for {
			select {
			case <-ctx.Done():
				fmt.Printf("\nStopped after %d steps (%d dropped)\n", sys.Steps(), driver.Dropped())
				return nil
			case now := <-ticker.C:
				if _, err := driver.Tick(now.Sub(last)); err != nil {
					return err
				}
				last = now

				if now.Sub(lastPrint) >= printEvery {
					printPositions(sys)
					lastPrint = now
				}
			}
		}
	},
}

// driftCmd runs a scenario and reports how far invariants wandered
var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Run a scenario and report mass-moment and separation drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		every, _ := cmd.Flags().GetInt("every")
		csvFile, _ := cmd.Flags().GetString("csv")
		output, _ := cmd.Flags().GetString("output")

		if every <= 0 {
			return fmt.Errorf("--every must be positive")
		}

		sys, err := scenario.BuildSystem(logger)
		if err != nil {
			return fmt.Errorf("failed to configure system: %w", err)
		}
		if _, ok := sys.ReferenceFrame(); ok {
			logger.Warn("a pinned reference frame is not inertial; mass-moment drift will include frame motion")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		tracker := analysis.NewTracker()
		driver := simulation.NewDriver(sys, simulation.Cadence{Mode: simulation.PerFrame}, logger)
		if err := driver.Run(ctx, steps, tracker, every); err != nil {
			return fmt.Errorf("drift run stopped after %d steps: %w", sys.Steps(), err)
		}

		drift, err := tracker.Report()
		if err != nil {
			return err
		}

		if csvFile != "" {
			if err := writeDriftCSV(tracker, csvFile); err != nil {
				return err
			}
		}

		if output == "json" {
			return writeJSON(drift)
		}
		printDrift(drift)
		return nil
	},
}

func init() {
	runCmd.Flags().Int("steps", 1000, "number of steps to run")
	runCmd.Flags().Int("snapshot-every", 0, "write a snapshot every N steps (default: 100 snapshots per run)")
	runCmd.Flags().String("snapshot-file", "", "JSONL trajectory output")
	runCmd.Flags().Int("digits", 30, "significant digits in printed and exported vectors")
	runCmd.Flags().String("output", "table", "output format (table|json)")

	watchCmd.Flags().Duration("duration", 0, "stop after this long (default: until interrupted)")
	watchCmd.Flags().Float64("fps", 60, "presentation ticks per second")
	watchCmd.Flags().Duration("print-every", time.Second, "how often to print positions")

	driftCmd.Flags().Int("steps", 1000, "number of steps to run")
	driftCmd.Flags().Int("every", 10, "sample every N steps")
	driftCmd.Flags().String("csv", "", "write the sampled series to a CSV file")
	driftCmd.Flags().String("output", "table", "output format (table|json)")
}

func newRunReport(sys *nbody.System, elapsed time.Duration, digits int) types.RunReport {
	frame, _ := sys.ReferenceFrame()
	report := types.RunReport{
		Scenario:       cfgFile,
		Precision:      sys.Context().Precision(),
		Integrator:     sys.Integrator().Name(),
		FrameMode:      sys.FrameMode().String(),
		ReferenceFrame: frame,
		Steps:          sys.Steps(),
		Duration:       elapsed,
	}

	positions := sys.Positions()
	for _, b := range sys.Bodies() {
		report.Bodies = append(report.Bodies, types.BodyState{
			ID:           b.ID,
			Position:     b.Position.Text(digits),
			Acceleration: b.Acceleration.Text(digits),
			Render:       positions[b.ID],
			SpinAngle:    b.Spin.Angle,
		})
	}
	return report
}

func printReport(report types.RunReport, output string, digits int) error {
	switch output {
	case "json":
		return writeJSON(report)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format: %s (use: table, json)", output)
	}

	fmt.Printf("Completed %d steps in %v (%s, %d bits)\n\n",
		report.Steps, report.Duration.Round(time.Millisecond), report.Integrator, report.Precision)

	width := digits + 8
	for _, b := range report.Bodies {
		label := b.ID
		if b.ID == report.ReferenceFrame {
			label += " (frame)"
		}
		fmt.Println(label)
		fmt.Printf("  position     %s\n", strings.Join(pad(b.Position, width), " "))
		fmt.Printf("  acceleration %s\n", strings.Join(pad(b.Acceleration, width), " "))
		fmt.Printf("  render       %v\n", b.Render)
	}
	return nil
}

func printPositions(sys *nbody.System) {
	positions := sys.Positions()
	fmt.Printf("step %d\n", sys.Steps())
	for _, id := range sys.IDs() {
		p := positions[id]
		fmt.Printf("  %-12s % .6e % .6e % .6e\n", id, p[0], p[1], p[2])
	}
}

func printDrift(d types.DriftReport) {
	fmt.Printf("Samples: %d (steps %d..%d)\n\n", d.Samples, d.FirstStep, d.LastStep)
	fmt.Printf("%-24s %-14s %-14s %-14s %-14s\n", "SERIES", "MEAN", "STD DEV", "MIN", "MAX")
	fmt.Printf("%-24s %-14.6e %-14.6e %-14.6e %-14.6e\n", "mass moment drift",
		d.MassMoment.Mean, d.MassMoment.StdDev, d.MassMoment.Min, d.MassMoment.Max)
	for _, p := range d.Separation {
		fmt.Printf("%-24s %-14.6e %-14.6e %-14.6e %-14.6e\n", p.A+"-"+p.B,
			p.Stats.Mean, p.Stats.StdDev, p.Stats.Min, p.Stats.Max)
	}
}

// writeDriftCSV writes the sampled series and reports errors from Close,
// where buffered write failures surface.
func writeDriftCSV(tracker *analysis.Tracker, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	if err := tracker.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close csv: %w", err)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pad(comps [3]string, width int) []string {
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = fmt.Sprintf("%-*s", width, c)
	}
	return out
}
