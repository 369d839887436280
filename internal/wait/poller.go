// Package wait polls a status source until a readiness predicate holds for a
// number of consecutive reads, an error predicate fires, or time runs out.
package wait

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/melih-ucgun/vigil/internal/core"
	"github.com/melih-ucgun/vigil/internal/status"
)

const (
	DefaultDelay     = time.Second
	DefaultTimeout   = 3 * time.Minute
	DefaultSuccesses = 3
)

// Source returns the raw `juju status --format json` document.
type Source interface {
	RawStatus(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) RawStatus(ctx context.Context) ([]byte, error) { return f(ctx) }

// Predicate inspects one snapshot.
type Predicate func(*status.Status) bool

// Sink receives the diff between consecutive snapshots whenever it is not empty.
type Sink func(lines []string)

type options struct {
	errFn     Predicate
	errName   string
	delay     time.Duration
	timeout   time.Duration
	successes int
}

type Option func(*options)

// WithError makes Wait fail with a *WaitError as soon as fn returns true.
// It is evaluated before the ready predicate on every read.
func WithError(fn Predicate) Option {
	return WithNamedError(funcName(fn), fn)
}

// WithNamedError is WithError with the name reported in WaitError.
func WithNamedError(name string, fn Predicate) Option {
	return func(o *options) {
		o.errFn = fn
		o.errName = name
	}
}

// WithDelay sets the pause between reads.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithTimeout sets the overall time budget.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithSuccesses sets how many consecutive ready reads end the wait.
// Values below 1 make Wait return ErrInvalidSuccesses.
func WithSuccesses(n int) Option {
	return func(o *options) { o.successes = n }
}

// Poller runs the wait loop against one Source. It is not safe for
// concurrent use against the same source.
type Poller struct {
	Source Source
	// Sink is optional. Diffs are computed either way.
	Sink   Sink
	Logger core.Logger
	Clock  clock.Clock
}

// pollState is everything that survives from one tick to the next.
type pollState struct {
	previous  *status.Status
	current   *status.Status
	successes int
	ticks     int
}

// Wait fetches and parses the status every delay until ready has returned
// true for the configured number of reads in a row.
//
// Each tick: fetch and parse; report the diff against the previous snapshot
// to the Sink; evaluate the error predicate, then ready. The timeout is
// measured on a monotonic clock before every fetch, so slow fetches count
// against it and an always-false ready performs ceil(timeout/delay) reads.
//
// ctx is only handed to the Source. The loop itself sleeps without
// watching ctx; a cancelled ctx ends the wait through the Source error.
func (p *Poller) Wait(ctx context.Context, ready Predicate, opts ...Option) (*status.Status, error) {
	if ready == nil {
		return nil, errors.New("wait: ready predicate is required")
	}
	if p.Source == nil {
		return nil, errors.New("wait: no status source")
	}

	o := options{
		delay:     DefaultDelay,
		timeout:   DefaultTimeout,
		successes: DefaultSuccesses,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.successes < 1 {
		return nil, ErrInvalidSuccesses
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := p.Logger
	if logger == nil {
		logger = core.NopLogger{}
	}
	logger = logger.With("wait_id", uuid.NewString())
	logger.Debug("wait: starting", "delay", o.delay, "timeout", o.timeout, "successes", o.successes)

	st := &pollState{}
	start := clk.Now()
	for clk.Since(start) < o.timeout {
		done, err := p.tick(ctx, st, ready, &o, logger)
		if err != nil {
			return nil, err
		}
		if done {
			logger.Debug("wait: ready", "ticks", st.ticks, "elapsed", clk.Since(start))
			return st.current, nil
		}
		clk.Sleep(o.delay)
	}

	logger.Debug("wait: timed out", "ticks", st.ticks)
	return nil, &TimeoutError{Timeout: o.timeout, Status: st.current}
}

func (p *Poller) tick(ctx context.Context, st *pollState, ready Predicate, o *options, logger core.Logger) (bool, error) {
	st.previous = st.current
	st.ticks++

	raw, err := p.Source.RawStatus(ctx)
	if err != nil {
		return false, &SourceError{Err: err}
	}
	current, err := status.ParseJSON(raw)
	if err != nil {
		return false, err
	}
	st.current = current

	if !current.Equal(st.previous) {
		lines := core.StatusDiff(st.previous, current)
		if len(lines) > 0 && p.Sink != nil {
			p.Sink(lines)
		}
	}

	if o.errFn != nil && o.errFn(current) {
		return false, &WaitError{Predicate: o.errName, Status: current}
	}

	if ready(current) {
		st.successes++
		logger.Trace("wait: ready read", "successes", st.successes, "required", o.successes)
		return st.successes >= o.successes, nil
	}
	st.successes = 0
	return false, nil
}

func funcName(fn Predicate) string {
	if fn == nil {
		return ""
	}
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
