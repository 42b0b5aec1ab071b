package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background task never ran")
	}
}

func TestSafeGo_RunsTask(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "receipt", func(ctx context.Context) error {
		close(done)
		return nil
	})

	waitDone(t, done)
}

func TestSafeGo_ErrorDoesNotPropagate(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "receipt", func(ctx context.Context) error {
		defer close(done)
		return errors.New("delivery backend down")
	})

	// the error is logged; reaching here means nothing escaped
	waitDone(t, done)
}

func TestSafeGo_TimeoutCancelsContext(t *testing.T) {
	done := make(chan struct{})
	var got error

	SafeGo(context.Background(), 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		defer close(done)
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			got = ctx.Err()
			return got
		}
	})

	waitDone(t, done)
	require.Error(t, got)
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "panicky task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	// recovery happens in the goroutine's deferred handler; the test
	// process surviving past this wait is the assertion
	waitDone(t, done)
	time.Sleep(50 * time.Millisecond)
}
