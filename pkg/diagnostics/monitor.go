package diagnostics

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mendtool/mend/pkg/utils"
)

// StabilizeOptions tunes how long the monitor waits for the diagnostic set
// to settle after an edit.
type StabilizeOptions struct {
	// Timeout is a soft deadline: when it elapses the monitor returns even
	// though the set may still be churning.
	Timeout time.Duration
	// BaseInterval is the poll interval while the set holds still.
	BaseInterval time.Duration
	// RequiredStableChecks is how many consecutive identical samples count
	// as stable.
	RequiredStableChecks int
	// MaxBackoffCap bounds how far above BaseInterval the poll interval may
	// grow while the set keeps changing.
	MaxBackoffCap time.Duration
}

func (o *StabilizeOptions) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BaseInterval <= 0 {
		o.BaseInterval = 400 * time.Millisecond
	}
	if o.RequiredStableChecks <= 0 {
		o.RequiredStableChecks = 2
	}
	if o.MaxBackoffCap <= 0 {
		o.MaxBackoffCap = 2 * time.Second
	}
}

// Monitor waits for an asynchronously-updated diagnostic source to stop
// changing long enough to be trusted as current.
type Monitor struct {
	provider Provider
	logger   *utils.Logger
}

func NewMonitor(provider Provider) *Monitor {
	return &Monitor{
		provider: provider,
		logger:   utils.GetLogger(false),
	}
}

// WaitForStable polls diagnostics for target until the reported set is
// identical for opts.RequiredStableChecks consecutive samples, the soft
// timeout elapses, or ctx is cancelled. A lapsed timeout is not an error:
// diagnostics may simply be slow and the caller proceeds with whatever is
// current. The only non-nil return is ctx.Err().
//
// While the set keeps changing the poll interval backs off by 1.2x per
// consecutive change with up to 20% jitter, capped at
// BaseInterval+MaxBackoffCap, so an actively reprocessing source is not
// hammered. A still sample resets the interval to BaseInterval.
func (m *Monitor) WaitForStable(ctx context.Context, target string, opts StabilizeOptions) error {
	opts.applyDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.BaseInterval
	bo.Multiplier = 1.2
	bo.RandomizationFactor = 0.2
	bo.MaxInterval = opts.BaseInterval + opts.MaxBackoffCap
	bo.MaxElapsedTime = 0 // the soft timeout below governs instead
	bo.Reset()

	deadline := time.Now().Add(opts.Timeout)
	var prev string
	seeded := false
	stable := 0
	unstableStreak := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sample, err := m.provider.Diagnostics(target)
		if err != nil {
			// Treat an unreadable source as an empty sample; the bridge may
			// be mid-rewrite and the next poll will see the fresh set.
			m.logger.Logf("diagnostics read for %s failed: %v", target, err)
			sample = nil
		}

		fp := Fingerprint(sample)
		if seeded && fp == prev {
			stable++
			if stable >= opts.RequiredStableChecks {
				m.logger.Logf("diagnostics for %s stable after %d checks (%d changes observed)", target, stable, unstableStreak)
				return nil
			}
			bo.Reset()
		} else {
			if seeded {
				unstableStreak++
			}
			stable = 0
		}
		prev = fp
		seeded = true

		if time.Now().After(deadline) {
			m.logger.Logf("diagnostics for %s did not stabilize within %s, proceeding with current sample", target, opts.Timeout)
			return nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = bo.MaxInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// StableIssues waits for stabilization, then returns the classified current
// sample. On cancellation the error is ctx.Err() and the issues are nil.
func (m *Monitor) StableIssues(ctx context.Context, target string, opts StabilizeOptions) ([]Issue, error) {
	if err := m.WaitForStable(ctx, target, opts); err != nil {
		return nil, err
	}
	sample, err := m.provider.Diagnostics(target)
	if err != nil {
		return nil, err
	}
	return ClassifyAll(sample), nil
}
