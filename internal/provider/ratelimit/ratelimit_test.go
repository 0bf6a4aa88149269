package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ratefeed/internal/provider"
	"ratefeed/internal/provider/providermock"
	"ratefeed/internal/provider/ratelimit"
)

func mockGoogle(t *testing.T) *providermock.MockProvider {
	t.Helper()
	p := providermock.NewMockProvider(gomock.NewController(t))
	p.EXPECT().Source().Return(provider.Google).AnyTimes()
	return p
}

func TestTokenBucket_BurstThenCancel(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(0.001, 2)
	require.NoError(t, tb.Wait(t.Context()))
	require.NoError(t, tb.Wait(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenBucketProvider_ExhaustedIsUnavailable(t *testing.T) {
	t.Parallel()

	p := mockGoogle(t)
	p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(provider.Quote{Symbol: "BTCJPY"}, nil).Times(1)
	limited := &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(0.001, 1)}

	_, err := limited.Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Fetch(ctx, "BTCJPY")
	require.True(t, provider.IsUnavailable(err))
	require.Equal(t, provider.Google, limited.Source())
}

func TestMinInterval_Spacing(t *testing.T) {
	t.Parallel()

	p := mockGoogle(t)
	p.EXPECT().Fetch(gomock.Any(), "BTCJPY").Return(provider.Quote{}, nil).Times(2)
	m := &ratelimit.MinInterval{P: p, Interval: 50 * time.Millisecond}

	start := time.Now()
	_, err := m.Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)
	_, err = m.Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)

	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
