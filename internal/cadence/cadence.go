// Package cadence implements the live-data sampler of §4.9: a cooperative
// loop that drives periodic batched readPids calls, enforcing a minimum
// period derived from observed round-trip time and dropping ticks rather
// than queueing them when a prior call is still in flight.
package cadence

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/anodyne74/obdclient/internal/pidreg"
)

// DefaultStalenessBudget is the default age past which a consumer should
// treat a PidSample as stale, per §4.9.
const DefaultStalenessBudget = 5 * time.Second

// Reader is the subset of the client facade the sampler depends on.
type Reader interface {
	ReadPids(ctx context.Context, service byte, pids []byte) ([]pidreg.PidSample, error)
}

// Tick is one sampler iteration's outcome: either a batch of samples or an
// error, both timestamped at acquisition. Dropped is set when the tick was
// skipped because a prior call had not yet completed.
type Tick struct {
	Samples  []pidreg.PidSample
	Err      error
	Acquired time.Time
	Dropped  bool
}

// Sampler drives Reader.ReadPids at a caller-supplied period, never
// overlapping calls and never queueing skipped ticks.
type Sampler struct {
	reader  Reader
	service byte
	pids    []byte
	period  time.Duration

	busy      int32 // atomic
	minPeriod int64 // atomic, nanoseconds
}

// New constructs a Sampler. period is the caller-requested cadence; the
// sampler raises its effective ticking interval to the observed
// round-trip time of the batch once that exceeds period, rather than
// falling behind by queueing ticks.
func New(reader Reader, service byte, pids []byte, period time.Duration) *Sampler {
	return &Sampler{
		reader:  reader,
		service: service,
		pids:    pids,
		period:  period,
	}
}

// Run drives ticks until ctx is cancelled, sending each Tick to out.
// Cancellation stops the next tick but lets an in-flight call complete and
// be delivered (its result is still sent to out if the channel send can
// proceed; Run does not block forever on a full, abandoned channel past
// ctx cancellation).
func (s *Sampler) Run(ctx context.Context, out chan<- Tick) {
	ticker := time.NewTicker(s.effectivePeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ticker.Reset(s.effectivePeriod())

		if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
			select {
			case out <- Tick{Dropped: true, Acquired: time.Now()}:
			case <-ctx.Done():
				return
			}
			continue
		}

		go func() {
			defer atomic.StoreInt32(&s.busy, 0)
			start := time.Now()
			samples, err := s.reader.ReadPids(context.WithoutCancel(ctx), s.service, s.pids)
			rtt := time.Since(start)

			if rtt.Nanoseconds() > atomic.LoadInt64(&s.minPeriod) {
				atomic.StoreInt64(&s.minPeriod, int64(rtt))
			}

			tick := Tick{Samples: samples, Err: err, Acquired: start}
			select {
			case out <- tick:
				return
			default:
			}
			select {
			case out <- tick:
			case <-ctx.Done():
			}
		}()
	}
}

// effectivePeriod is the caller's requested period, raised to the largest
// observed round-trip time if that is larger.
func (s *Sampler) effectivePeriod() time.Duration {
	observed := time.Duration(atomic.LoadInt64(&s.minPeriod))
	if observed > s.period {
		return observed
	}
	return s.period
}

// ObservedRTT returns the largest round-trip time seen across completed
// batches so far.
func (s *Sampler) ObservedRTT() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.minPeriod))
}

// Stale reports whether a sample acquired at `acquired` exceeds the given
// staleness budget as of `now`.
func Stale(acquired time.Time, budget time.Duration, now time.Time) bool {
	if budget <= 0 {
		budget = DefaultStalenessBudget
	}
	return now.Sub(acquired) > budget
}
