package bflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/advdv/bflow"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestAwaitNested(t *testing.T) {
	nested := func(context.Context) (any, error) { return bflow.Value("deep"), nil }
	res := bflow.Await(t.Context(), nested)
	require.False(t, res.IsErr())
	require.Equal(t, "deep", res.Value)

	require.Equal(t, bflow.Ok(nil), bflow.Await(t.Context(), nil))

	res = bflow.Await(t.Context(), bflow.Errored(errors.New("nope")))
	require.True(t, res.IsErr())
	require.EqualError(t, res.Err, "nope")
}

func TestAll(t *testing.T) {
	res := bflow.Await(t.Context(), bflow.All(
		bflow.Value(1),
		func(ctx context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return "slow", nil
		},
		bflow.Value(3),
	))

	require.NoError(t, res.Err)
	require.Equal(t, []any{1, "slow", 3}, res.Value)
}

func TestAllCancelsOnFailure(t *testing.T) {
	cancelled := make(chan error, 1)
	res := bflow.Await(t.Context(), bflow.All(
		bflow.Errored(errors.New("first")),
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			cancelled <- ctx.Err()
			return nil, ctx.Err()
		},
	))

	require.EqualError(t, res.Err, "first")
	require.ErrorIs(t, <-cancelled, context.Canceled)
}

func TestRace(t *testing.T) {
	res := bflow.Await(t.Context(), bflow.Race(
		bflow.Sleep(time.Minute),
		func(context.Context) (any, error) { return "fast", nil },
	))

	require.NoError(t, res.Err)
	require.Equal(t, "fast", res.Value)

	require.Equal(t, bflow.Ok(nil), bflow.Await(t.Context(), bflow.Race()))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancelCause(t.Context())
	cancel(bflow.Stop("shutdown"))

	res := bflow.Await(ctx, bflow.Sleep(time.Minute))

	var sig *bflow.StopSignal
	require.ErrorAs(t, res.Err, &sig)
	require.Equal(t, "shutdown", sig.Message)
}

func TestFuture(t *testing.T) {
	release := make(chan struct{})
	f := bflow.Go(t.Context(), func(context.Context) (any, error) {
		<-release
		return 42, nil
	})

	select {
	case <-f.Done():
		t.Fatal("future settled early")
	default:
	}

	close(release)
	require.Equal(t, bflow.Ok(42), f.Await())

	res := bflow.Await(t.Context(), f.Task())
	require.Equal(t, 42, res.Value)
}

func TestFutureDeadContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var ran bool
	f := bflow.Go(ctx, func(context.Context) (any, error) {
		ran = true
		return nil, nil
	})

	require.ErrorIs(t, f.Await().Err, context.Canceled)
	require.False(t, ran)
}
