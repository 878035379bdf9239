package simulation

import (
	"errors"

	"github.com/oxygene76/hpgravity/pkg/astronomy/nbody"
)

// Tee fans snapshot events out to several sinks. Nil sinks are skipped.
func Tee(sinks ...nbody.SnapshotSink) nbody.SnapshotSink {
	var live []nbody.SnapshotSink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return tee(live)
}

type tee []nbody.SnapshotSink

func (t tee) OnStart(totalSteps int, snapEvery int) error {
	for _, s := range t {
		if err := s.OnStart(totalSteps, snapEvery); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) OnSnapshot(step uint64, bodies []nbody.Body) error {
	for _, s := range t {
		if err := s.OnSnapshot(step, bodies); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) OnEnd(finalStep uint64) error {
	for _, s := range t {
		if err := s.OnEnd(finalStep); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors
func (t tee) Close() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
