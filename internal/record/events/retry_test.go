package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/record/models"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// flakySubscriber fails a fixed number of times, then delivers one event and
// ends cleanly.
type flakySubscriber struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakySubscriber) Run(ctx context.Context, handle Handler) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errConnRefused
	}
	handle(ctx, sampleEvent())
	return nil
}

func (f *flakySubscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetrying_ResubscribesUntilBackendIsUp(t *testing.T) {
	sub := &flakySubscriber{failures: 3}
	var got []models.RecordCreatedEvent

	err := NewRetrying(sub, time.Millisecond, discardLogger()).Run(context.Background(),
		func(_ context.Context, event models.RecordCreatedEvent) {
			got = append(got, event)
		})

	require.NoError(t, err)
	assert.Equal(t, 4, sub.Calls())
	require.Len(t, got, 1)
	assert.Equal(t, int64(12), got[0].PatientID)
}

func TestRetrying_StopsWhenCancelledDuringBackoff(t *testing.T) {
	sub := &flakySubscriber{failures: 1_000_000}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewRetrying(sub, time.Hour, discardLogger()).Run(ctx, func(context.Context, models.RecordCreatedEvent) {})
	}()

	require.Eventually(t, func() bool { return sub.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, sub.Calls())
}

func TestNewRetrying_DefaultsDelay(t *testing.T) {
	r := NewRetrying(&flakySubscriber{}, 0, discardLogger())
	assert.Equal(t, DefaultRetryDelay, r.delay)
}
