package bserve_test

import (
	"context"
	"testing"
	"time"

	"github.com/advdv/bflow/bserve"
	"github.com/stretchr/testify/require"
)

func TestServerTimeouts(t *testing.T) {
	tests := []struct {
		name              string
		config            bserve.TimeoutConfig
		wantReadHeader    time.Duration
		wantReadWriteIdle time.Duration
	}{
		{
			name:              "default buffer",
			config:            bserve.TimeoutConfig{RequestTimeout: 30 * time.Second},
			wantReadHeader:    5 * time.Second,
			wantReadWriteIdle: 30*time.Second + bserve.DefaultTimeoutBuffer,
		},
		{
			name:              "custom buffer",
			config:            bserve.TimeoutConfig{RequestTimeout: 10 * time.Second, Buffer: 2 * time.Second},
			wantReadHeader:    5 * time.Second,
			wantReadWriteIdle: 12 * time.Second,
		},
		{
			name:              "short request timeout caps header timeout",
			config:            bserve.TimeoutConfig{RequestTimeout: time.Second},
			wantReadHeader:    time.Second + bserve.DefaultTimeoutBuffer,
			wantReadWriteIdle: time.Second + bserve.DefaultTimeoutBuffer,
		},
		{
			name:              "no request timeout",
			config:            bserve.TimeoutConfig{},
			wantReadHeader:    5 * time.Second,
			wantReadWriteIdle: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readHeader, read, write, idle := tt.config.ServerTimeouts()
			require.Equal(t, tt.wantReadHeader, readHeader)
			require.Equal(t, tt.wantReadWriteIdle, read)
			require.Equal(t, tt.wantReadWriteIdle, write)
			require.Equal(t, tt.wantReadWriteIdle, idle)
		})
	}
}

func TestRemainingTime(t *testing.T) {
	require.Zero(t, bserve.RemainingTime(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), time.Minute)
	defer cancel()
	remaining := bserve.RemainingTime(ctx)
	require.Greater(t, remaining, 50*time.Second)
	require.LessOrEqual(t, remaining, time.Minute)

	past, cancel2 := context.WithDeadline(t.Context(), time.Now().Add(-time.Second))
	defer cancel2()
	require.Zero(t, bserve.RemainingTime(past))
}
