package simulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/log"

	"github.com/oxygene76/hpgravity/pkg/astronomy/nbody"
)

// Mode selects how gravity steps are scheduled against presentation ticks
type Mode int

const (
	// PerFrame runs exactly one gravity step per tick
	PerFrame Mode = iota
	// FixedRate runs as many steps as the elapsed time covers
	FixedRate
)

func (m Mode) String() string {
	if m == FixedRate {
		return "fixed"
	}
	return "per-frame"
}

// Cadence is the step scheduling policy
type Cadence struct {
	Mode            Mode
	Interval        time.Duration // simulated step length for FixedRate
	MaxStepsPerTick int           // backlog beyond this is dropped; 0 means no cap
}

// ParseCadence builds a cadence from config values. rateHz and maxSteps are
// ignored for per-frame stepping.
func ParseCadence(mode string, rateHz float64, maxSteps int) (Cadence, error) {
	switch strings.ToLower(mode) {
	case "per-frame", "frame":
		return Cadence{Mode: PerFrame}, nil
	case "", "fixed":
		if rateHz <= 0 {
			return Cadence{}, fmt.Errorf("fixed cadence needs a positive rate, got %v", rateHz)
		}
		if maxSteps <= 0 {
			maxSteps = 8
		}
		return Cadence{
			Mode:            FixedRate,
			Interval:        time.Duration(float64(time.Second) / rateHz),
			MaxStepsPerTick: maxSteps,
		}, nil
	default:
		return Cadence{}, fmt.Errorf("unknown cadence mode: %s (use: fixed, per-frame)", mode)
	}
}

// Stepper is the part of nbody.System a driver needs
type Stepper interface {
	Step() error
	Rotate()
	Steps() uint64
	Bodies() []nbody.Body
}

// Driver decouples gravity stepping from the presentation loop. Reads of the
// system are only safe between calls to Tick or Run.
type Driver struct {
	sys     Stepper
	cadence Cadence
	logger  log.Logger

	backlog time.Duration
	dropped uint64
}

// NewDriver creates a driver; a nil logger discards output
func NewDriver(sys Stepper, cadence Cadence, logger log.Logger) *Driver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Driver{sys: sys, cadence: cadence, logger: logger}
}

// Tick advances rotation once and runs zero or more gravity steps for the
// elapsed wall-clock time. It returns the number of gravity steps taken.
func (d *Driver) Tick(elapsed time.Duration) (int, error) {
	d.sys.Rotate()

	n := 1
	if d.cadence.Mode == FixedRate && d.cadence.Interval > 0 {
		if elapsed > 0 {
			d.backlog += elapsed
		}
		n = int(d.backlog / d.cadence.Interval)
		d.backlog -= time.Duration(n) * d.cadence.Interval
		if d.cadence.MaxStepsPerTick > 0 && n > d.cadence.MaxStepsPerTick {
			skipped := n - d.cadence.MaxStepsPerTick
			d.dropped += uint64(skipped)
			d.logger.Warn("dropping simulation backlog", "skipped", skipped, "total_dropped", d.dropped)
			n = d.cadence.MaxStepsPerTick
		}
	}

	for i := 0; i < n; i++ {
		if err := d.sys.Step(); err != nil {
			return i, err
		}
	}
	return n, nil
}

// Dropped returns how many fixed-rate steps were skipped to keep up
func (d *Driver) Dropped() uint64 {
	return d.dropped
}

// Run performs steps in a batch, rotating once per step, and reports a
// snapshot every `every` steps (0 disables). ctx is checked between steps
// only; a step in progress always completes.
func (d *Driver) Run(ctx context.Context, steps int, sink nbody.SnapshotSink, every int) error {
	if sink != nil {
		if err := sink.OnStart(steps, every); err != nil {
			return fmt.Errorf("snapshot sink start: %w", err)
		}
		if every > 0 {
			if err := sink.OnSnapshot(d.sys.Steps(), d.sys.Bodies()); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
		}
	}

	progressEvery := steps / 10
	start := time.Now()
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			d.logger.Info("run interrupted", "completed", i-1, "requested", steps)
			return ctx.Err()
		default:
		}

		d.sys.Rotate()
		if err := d.sys.Step(); err != nil {
			return err
		}

		if sink != nil && every > 0 && i%every == 0 {
			if err := sink.OnSnapshot(d.sys.Steps(), d.sys.Bodies()); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
		}
		if progressEvery > 0 && i%progressEvery == 0 {
			d.logger.Debug("run progress", "step", i, "of", steps, "elapsed", time.Since(start).String())
		}
	}

	if sink != nil {
		if err := sink.OnEnd(d.sys.Steps()); err != nil {
			return fmt.Errorf("snapshot sink end: %w", err)
		}
	}
	d.logger.Info("run complete", "steps", steps, "total_steps", d.sys.Steps(), "elapsed", time.Since(start).String())
	return nil
}
