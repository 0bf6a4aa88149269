package broadcast_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ratefeed/internal/broadcast"
	"ratefeed/internal/composite"
	"ratefeed/internal/power"
)

type computeFunc func(context.Context, power.Selector) (*composite.Rate, error)

func (f computeFunc) Compute(ctx context.Context, sel power.Selector) (*composite.Rate, error) {
	return f(ctx, sel)
}

type templates map[string]broadcast.Template

func (ts templates) Get(id string) (broadcast.Template, error) {
	t, ok := ts[id]
	if !ok {
		return broadcast.Template{}, broadcast.ErrTemplateNotFound
	}
	return t, nil
}

type recorder struct {
	msgs []broadcast.Message
	err  error
}

func (r *recorder) Notify(_ context.Context, m broadcast.Message) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func fixedRate(_ context.Context, sel power.Selector) (*composite.Rate, error) {
	if !sel.IsZero() {
		return nil, errors.New("broadcast must use the default selector")
	}
	return sampleRate(), nil
}

func TestBroadcaster_Run(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	b := &broadcast.Broadcaster{
		Calc:      computeFunc(fixedRate),
		Templates: templates{broadcast.PriceBroadcast: {Title: "T", Content: "Bid {bid_price} Ask {ask_price}"}},
		Notifier:  rec,
	}

	rate, err := b.Run(t.Context())

	require.NoError(t, err)
	require.NotNil(t, rate)
	require.Len(t, rec.msgs, 1)
	require.Equal(t, "Bid 148514.85 Ask 152000.00", rec.msgs[0].Text)
	require.Equal(t, "T", rec.msgs[0].Title)
	require.Same(t, rate, rec.msgs[0].Rate)
}

func TestBroadcaster_DeliveryFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errors.New("telegram down")}
	b := &broadcast.Broadcaster{
		Calc:      computeFunc(fixedRate),
		Templates: templates{broadcast.PriceBroadcast: {Content: "x"}},
		Notifier:  rec,
	}

	rate, err := b.Run(t.Context())
	require.NoError(t, err)
	require.NotNil(t, rate)
}

func TestBroadcaster_MissingTemplate(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	b := &broadcast.Broadcaster{Calc: computeFunc(fixedRate), Templates: templates{}, Notifier: rec}

	rate, err := b.Run(t.Context())
	require.NoError(t, err)
	require.NotNil(t, rate)
	require.Empty(t, rec.msgs)
}

func TestBroadcaster_ComputeFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	b := &broadcast.Broadcaster{
		Calc: computeFunc(func(context.Context, power.Selector) (*composite.Rate, error) {
			return nil, &composite.ComputationError{Stage: "fetch okj", Cause: errors.New("503")}
		}),
		Templates: templates{broadcast.PriceBroadcast: {Content: "x"}},
		Notifier:  rec,
	}

	rate, err := b.Run(t.Context())
	require.Nil(t, rate)
	var ce *composite.ComputationError
	require.ErrorAs(t, err, &ce)
	require.Empty(t, rec.msgs)
}
