package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osabridge/internal/script"
)

// engineFunc adapts a function to the Engine interface for tests.
type engineFunc func(ctx context.Context, source string) (string, error)

func (f engineFunc) Run(ctx context.Context, source string) (string, error) {
	return f(ctx, source)
}

// hangingEngine blocks until the context expires, simulating a stuck
// application.
func hangingEngine(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExecute_Success(t *testing.T) {
	e := New(engineFunc(func(_ context.Context, source string) (string, error) {
		assert.Equal(t, "get name", source)
		return "Inbox\n", nil
	}))

	res, err := e.Execute(context.Background(), script.NewRead("get name"))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "Inbox\n", res.Output)
	assert.Nil(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.NotEmpty(t, res.CallID)
	assert.Greater(t, res.Latency, time.Duration(0))
}

func TestExecute_TimeoutAbortsCall(t *testing.T) {
	e := New(engineFunc(hangingEngine), WithTimeout(20*time.Millisecond), WithRetry(1, time.Millisecond, time.Millisecond))

	start := time.Now()
	res, err := e.Execute(context.Background(), script.NewRead("get everything"))
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Err)
	assert.Equal(t, ErrCodeTimeout, res.Err.Code)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must abort, not block")
}

func TestExecute_TransientRetriedUpToBound(t *testing.T) {
	var calls atomic.Int32
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", errors.New("execution error: application isn't running (-600)")
	}), WithRetry(3, time.Millisecond, 10*time.Millisecond))

	res, err := e.Execute(context.Background(), script.NewRead("get name"))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ErrCodeAppUnavailable, res.Err.Code)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecute_TransientRecoversMidway(t *testing.T) {
	var calls atomic.Int32
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("AppleEvent timed out (-1712)")
		}
		return "ok", nil
	}), WithRetry(5, time.Millisecond, 10*time.Millisecond))

	res, err := e.Execute(context.Background(), script.NewRead("get name"))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 3, res.Attempts)
}

func TestExecute_SyntaxNeverRetried(t *testing.T) {
	var calls atomic.Int32
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", errors.New(`syntax error: Expected end of line but found identifier. (-2741)`)
	}), WithRetry(5, time.Millisecond, 10*time.Millisecond))

	res, err := e.Execute(context.Background(), script.NewRead("gett name"))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ErrCodeSyntax, res.Err.Code)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecute_ReferenceNotFoundNeverRetried(t *testing.T) {
	var calls atomic.Int32
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", errors.New(`Can't get to do id "missing". (-1728)`)
	}), WithRetry(5, time.Millisecond, 10*time.Millisecond))

	res, err := e.Execute(context.Background(), script.NewRead("get to do"))
	require.NoError(t, err)
	assert.Equal(t, ErrCodeReferenceNotFound, res.Err.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecute_PermissionDeniedCarriesHint(t *testing.T) {
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("Not authorized to send Apple events to Things3. (-1743)")
	}))

	res, err := e.Execute(context.Background(), script.NewRead("get name"))
	require.NoError(t, err)
	assert.Equal(t, ErrCodePermissionDenied, res.Err.Code)
	assert.NotEmpty(t, res.Err.Hint)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return "", errors.New("application isn't running (-600)")
	}), WithRetry(5, time.Hour, time.Hour)) // backoff would block forever

	res, err := e.Execute(ctx, script.NewRead("get name"))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecute_ZeroCommandRejected(t *testing.T) {
	e := New(engineFunc(hangingEngine))
	_, err := e.Execute(context.Background(), script.Command{})
	require.Error(t, err)
}

func TestExecuteOnce_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	e := New(engineFunc(func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", errors.New("application isn't running (-600)")
	}), WithRetry(5, time.Millisecond, time.Millisecond))

	res, err := e.ExecuteOnce(context.Background(), script.NewWrite("set x"), 0)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load(), "ExecuteOnce must not retry internally")
	assert.True(t, res.Err.Transient())
}

func TestExecute_ParallelCallsAreIsolated(t *testing.T) {
	// One hanging call must not delay an independent fast call.
	block := make(chan struct{})
	e := New(engineFunc(func(ctx context.Context, source string) (string, error) {
		if source == "slow" {
			select {
			case <-block:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "fast-result", nil
	}), WithTimeout(5*time.Second))

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := e.Execute(context.Background(), script.NewRead("slow"))
		assert.NoError(t, err)
	}()

	start := time.Now()
	res, err := e.Execute(context.Background(), script.NewRead("fast"))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Less(t, time.Since(start), time.Second)

	close(block)
	<-slowDone
}

func TestBackoffDelay_CappedAndMonotone(t *testing.T) {
	e := New(engineFunc(hangingEngine), WithRetry(10, 100*time.Millisecond, time.Second))

	var prev time.Duration
	for attempt := 1; attempt <= 10; attempt++ {
		d := e.backoffDelay(attempt)
		assert.LessOrEqual(t, d, time.Second, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, prev, "backoff must not shrink")
		prev = d
	}
	assert.Equal(t, 100*time.Millisecond, e.backoffDelay(1))
	assert.Equal(t, 200*time.Millisecond, e.backoffDelay(2))
	assert.Equal(t, time.Second, e.backoffDelay(10))
}

func TestClassify_Table(t *testing.T) {
	tests := []struct {
		raw  string
		want ErrorCode
	}{
		{"syntax error: Expected end of line. (-2741)", ErrCodeSyntax},
		{`Can't get project "nope". (-1728)`, ErrCodeReferenceNotFound},
		{"invalid index. (-1719)", ErrCodeReferenceNotFound},
		{"Things3 got an error: doesn't understand the message.", ErrCodeReferenceNotFound},
		{"Not authorized to send Apple events to System Events. (-1743)", ErrCodePermissionDenied},
		{"osascript is not allowed assistive access.", ErrCodePermissionDenied},
		{"Application isn't running. (-600)", ErrCodeAppUnavailable},
		{"connection is invalid. (-609)", ErrCodeAppUnavailable},
		{"AppleEvent timed out. (-1712)", ErrCodeTimeout},
		{"some novel failure text", ErrCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.want)+"/"+tt.raw, func(t *testing.T) {
			got := Classify(tt.raw)
			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestErrorCode_Transient(t *testing.T) {
	assert.True(t, ErrCodeTimeout.Transient())
	assert.True(t, ErrCodeAppUnavailable.Transient())
	assert.False(t, ErrCodeSyntax.Transient())
	assert.False(t, ErrCodeReferenceNotFound.Transient())
	assert.False(t, ErrCodePermissionDenied.Transient())
	assert.False(t, ErrCodeUnknown.Transient())
}

func TestEngineErrorHelpers(t *testing.T) {
	te := &EngineError{Code: ErrCodeTimeout, Message: "deadline"}
	wrapped := fmt.Errorf("call failed: %w", te)
	assert.True(t, IsTimeout(wrapped))
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsTimeout(errors.New("plain")))
}
