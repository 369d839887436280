package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/melih-ucgun/vigil/internal/status"
)

const minimalJSON = `{
	"model": {"name": "mdl", "type": "typ", "controller": "ctl", "cloud": "aws", "version": "3.0.0"},
	"machines": {},
	"applications": {}
}`

const activeJSON = `{
	"model": {"name": "mdl", "type": "typ", "controller": "ctl", "cloud": "aws", "version": "3.0.0"},
	"machines": {},
	"applications": {
		"web": {
			"charm": "web", "charm-origin": "charmhub", "charm-name": "web", "charm-rev": 1, "exposed": false,
			"application-status": {"current": "active", "since": "now"},
			"units": {"web/0": {"workload-status": {"current": "active"}}}
		}
	},
	"controller": {"timestamp": "12:00:00"}
}`

// fakeSource serves documents in order, repeating the last one.
type fakeSource struct {
	docs  []string
	calls int
	err   error
	// onFetch runs inside every fetch, e.g. to simulate a slow call.
	onFetch func()
}

func (f *fakeSource) RawStatus(ctx context.Context) ([]byte, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.docs) {
		i = len(f.docs) - 1
	}
	return []byte(f.docs[i]), nil
}

type sinkRecorder struct {
	batches [][]string
}

func (s *sinkRecorder) sink(lines []string) {
	s.batches = append(s.batches, lines)
}

func newPoller(src Source) (*Poller, *testingclock.FakeClock, *sinkRecorder) {
	clk := testingclock.NewFakeClock(time.Date(2025, 2, 24, 12, 0, 0, 0, time.UTC))
	rec := &sinkRecorder{}
	return &Poller{Source: src, Sink: rec.sink, Clock: clk}, clk, rec
}

func alwaysReady(*status.Status) bool { return true }

func never(*status.Status) bool { return false }

func TestWaitReady(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, rec := newPoller(src)
	start := clk.Now()

	st, err := p.Wait(context.Background(), alwaysReady)
	require.NoError(t, err)

	assert.Equal(t, 3, src.calls)
	assert.Equal(t, 2*time.Second, clk.Since(start))
	assert.Equal(t, "mdl", st.Model.Name)
	assert.Empty(t, st.Machines)
	assert.Empty(t, st.Apps)

	// Only the first read differs from "nothing".
	require.Len(t, rec.batches, 1)
	assert.Contains(t, rec.batches[0], "+ .model.name = 'mdl'")
}

func TestWaitReadyGlitch(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, _ := newPoller(src)
	start := clk.Now()

	reads := []bool{true, false, true, true, true}
	n := 0
	ready := func(*status.Status) bool {
		r := reads[n]
		n++
		return r
	}

	_, err := p.Wait(context.Background(), ready)
	require.NoError(t, err)
	assert.Equal(t, 5, src.calls)
	assert.Equal(t, 4*time.Second, clk.Since(start))
}

func TestWaitDelayAndSuccesses(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, _ := newPoller(src)
	start := clk.Now()

	_, err := p.Wait(context.Background(), alwaysReady, WithDelay(750*time.Millisecond), WithSuccesses(5))
	require.NoError(t, err)
	assert.Equal(t, 5, src.calls)
	assert.Equal(t, 3*time.Second, clk.Since(start))
}

func TestWaitSingleSuccess(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, _, _ := newPoller(src)

	_, err := p.Wait(context.Background(), alwaysReady, WithSuccesses(1))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestWaitInvalidSuccesses(t *testing.T) {
	for _, n := range []int{0, -1} {
		src := &fakeSource{docs: []string{minimalJSON}}
		p, _, _ := newPoller(src)

		_, err := p.Wait(context.Background(), alwaysReady, WithSuccesses(n))
		assert.ErrorIs(t, err, ErrInvalidSuccesses)
		assert.Equal(t, 0, src.calls)
	}
}

func TestWaitErrorShortCircuits(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, _ := newPoller(src)
	start := clk.Now()

	_, err := p.Wait(context.Background(), alwaysReady, WithError(func(*status.Status) bool { return true }))

	var waitErr *WaitError
	require.ErrorAs(t, err, &waitErr)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, time.Duration(0), clk.Since(start))
	require.NotNil(t, waitErr.Status)
	assert.Equal(t, "mdl", waitErr.Status.Model.Name)
	assert.Contains(t, err.Error(), "mdl")
}

func TestWaitNamedError(t *testing.T) {
	src := &fakeSource{docs: []string{activeJSON}}
	p, _, _ := newPoller(src)

	_, err := p.Wait(context.Background(), never, WithNamedError("AnyError()", func(s *status.Status) bool {
		return s.Apps["web"].IsActive()
	}))

	var waitErr *WaitError
	require.ErrorAs(t, err, &waitErr)
	assert.Equal(t, "AnyError()", waitErr.Predicate)
	assert.Contains(t, err.Error(), "AnyError() returned true")
}

func TestWaitTimeoutDefault(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, _ := newPoller(src)
	start := clk.Now()

	_, err := p.Wait(context.Background(), never)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 180, src.calls)
	assert.Equal(t, 180*time.Second, clk.Since(start))
	assert.Equal(t, DefaultTimeout, timeoutErr.Timeout)
	require.NotNil(t, timeoutErr.Status)
	assert.Contains(t, err.Error(), "mdl")
}

func TestWaitTimeoutOverride(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, _ := newPoller(src)
	start := clk.Now()

	_, err := p.Wait(context.Background(), never, WithTimeout(5*time.Second))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 5, src.calls)
	assert.Equal(t, 5*time.Second, clk.Since(start))
}

func TestWaitTimeoutCountsSlowFetches(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, clk, _ := newPoller(src)
	src.onFetch = func() { clk.Step(2 * time.Second) }

	_, err := p.Wait(context.Background(), never, WithTimeout(10*time.Second))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	// Each tick costs 2s of fetching plus 1s of delay: ceil(10/3) reads.
	assert.Equal(t, 4, src.calls)
}

func TestWaitTimeoutWithoutFetch(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, _, _ := newPoller(src)

	_, err := p.Wait(context.Background(), alwaysReady, WithTimeout(0))

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Nil(t, timeoutErr.Status)
	assert.Equal(t, 0, src.calls)
	assert.Equal(t, "wait timed out after 0s", err.Error())
}

func TestWaitSourceErrorPropagates(t *testing.T) {
	boom := errors.New("juju exploded")
	src := &fakeSource{docs: []string{minimalJSON}, err: boom}
	p, _, _ := newPoller(src)

	_, err := p.Wait(context.Background(), alwaysReady)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.calls)
}

func TestWaitParseErrorPropagates(t *testing.T) {
	src := &fakeSource{docs: []string{`{"model": {"name": "m"}}`}}
	p, _, _ := newPoller(src)

	_, err := p.Wait(context.Background(), alwaysReady)
	assert.ErrorIs(t, err, status.ErrParseViolation)
	assert.Equal(t, 1, src.calls)
}

func TestWaitEmitsOnlyMeaningfulChanges(t *testing.T) {
	changedSince := `{
		"model": {"name": "mdl", "type": "typ", "controller": "ctl", "cloud": "aws", "version": "3.0.0"},
		"machines": {},
		"applications": {
			"web": {
				"charm": "web", "charm-origin": "charmhub", "charm-name": "web", "charm-rev": 1, "exposed": false,
				"application-status": {"current": "active", "since": "later"},
				"units": {"web/0": {"workload-status": {"current": "active"}}}
			}
		},
		"controller": {"timestamp": "12:00:01"}
	}`
	src := &fakeSource{docs: []string{minimalJSON, activeJSON, changedSince}}
	p, _, rec := newPoller(src)

	_, err := p.Wait(context.Background(), func(s *status.Status) bool { return status.AllActive(s) && len(s.Apps) > 0 }, WithSuccesses(2))
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)

	// The third document differs only in timestamps and is not reported.
	require.Len(t, rec.batches, 2)
	assert.Contains(t, rec.batches[1], "+ .apps['web'].app_status.current = 'active'")
	for _, line := range rec.batches[1] {
		assert.NotContains(t, line, "since")
		assert.NotContains(t, line, "timestamp")
	}
}

func TestWaitWithoutSink(t *testing.T) {
	src := &fakeSource{docs: []string{minimalJSON}}
	p, _, _ := newPoller(src)
	p.Sink = nil

	st, err := p.Wait(context.Background(), alwaysReady)
	require.NoError(t, err)
	assert.Equal(t, "mdl", st.Model.Name)
}

func TestWaitRequiresReady(t *testing.T) {
	p, _, _ := newPoller(&fakeSource{docs: []string{minimalJSON}})
	_, err := p.Wait(context.Background(), nil)
	assert.Error(t, err)
}
