package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := New(fb)

	r.RecordStep("jobs", StepCoerce, nil, 2*time.Second)
	r.RecordStep("jobs", StepLoad, errors.New("boom"), 500*time.Millisecond)

	require.Len(t, fb.callsCounters, 2)
	require.Len(t, fb.callsHistograms, 2)

	assert.Equal(t, StepTotal, fb.callsCounters[0].name)
	assert.Equal(t, Labels{"table": "jobs", "step": "coerce", "status": "success"}, fb.callsCounters[0].labels)
	assert.Equal(t, "failure", fb.callsCounters[1].labels["status"])

	assert.Equal(t, StepDurationSeconds, fb.callsHistograms[0].name)
	assert.InDelta(t, 2.0, fb.callsHistograms[0].value, 1e-9)
	assert.InDelta(t, 0.5, fb.callsHistograms[1].value, 1e-9)
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := New(fb)

	r.RecordRows("employees", RowsInserted, 0)
	r.RecordRows("employees", RowsSkipped, -3)
	r.RecordRows("employees", RowsInserted, 42)

	require.Len(t, fb.callsCounters, 1)
	c := fb.callsCounters[0]
	assert.Equal(t, RowsTotal, c.name)
	assert.Equal(t, 42.0, c.delta)
	assert.Equal(t, Labels{"table": "employees", "outcome": "inserted"}, c.labels)
}

func TestTimerAndFlush(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := New(fb)
	done := r.Timer("departments", StepRead)
	done(nil)

	require.Len(t, fb.callsHistograms, 1)
	assert.GreaterOrEqual(t, fb.callsHistograms[0].value, 0.0)

	require.NoError(t, r.Flush())
	assert.Equal(t, 1, fb.flushCount)
}

// A nil recorder and a recorder without backend must be usable.
func TestNilSafety(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.RecordStep("jobs", StepLoad, nil, time.Second)
	r.RecordRows("jobs", RowsInserted, 1)
	assert.NoError(t, r.Flush())

	New(nil).RecordRows("jobs", RowsSkipped, 1)
}

func TestNormalizeKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindNone, NormalizeKind(" "))
	assert.Equal(t, KindDatadog, NormalizeKind(" DataDog "))
}
