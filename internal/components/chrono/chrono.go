package chrono

import (
	"context"
	"sync"
	"time"
)

// API is the clock everything that waits or reads the time should go through.
//
// note: fault injection point
type API interface {
	Now() time.Time
	// Sleep blocks for `d` or until ctx is done, in which case ctx.Err() is returned.
	Sleep(ctx context.Context, d time.Duration) error
}

// StandardImpl is the wall clock.
type StandardImpl struct{}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

func (StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FakeImpl is a manually driven clock, Sleep returns immediately after advancing the
// current time by the requested duration.
type FakeImpl struct {
	mutex sync.Mutex
	now   time.Time
	slept []time.Duration
}

func NewFakeImpl(now time.Time) *FakeImpl {
	return &FakeImpl{now: now}
}

func (f *FakeImpl) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *FakeImpl) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = f.now.Add(d)
	f.slept = append(f.slept, d)
	return nil
}

// Slept returns every duration passed to Sleep so far.
func (f *FakeImpl) Slept() []time.Duration {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]time.Duration(nil), f.slept...)
}
