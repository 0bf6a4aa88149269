package power_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ratefeed/internal/power"
	"ratefeed/internal/power/powermock"
)

func TestResolve_EmptySelectorSkipsLookup(t *testing.T) {
	t.Parallel()

	// Arrange: no expectations, any store call fails the test
	store := powermock.NewMockStore(gomock.NewController(t))
	r := &power.Resolver{Store: store}

	// Act
	res, err := r.Resolve(t.Context(), power.Selector{})

	// Assert
	require.NoError(t, err)
	require.Equal(t, power.OutcomeUnspecified, res.Outcome)
	require.True(t, res.Power.Equal(decimal.NewFromInt(1)))
	require.Nil(t, res.Config)
}

func TestResolve_GroupTakesPrecedence(t *testing.T) {
	t.Parallel()

	store := powermock.NewMockStore(gomock.NewController(t))
	store.EXPECT().GetByGroup(gomock.Any(), "vip").
		Return(power.Config{ID: "aB3xY9", Group: "vip", Power: decimal.RequireFromString("1.05")}, nil)
	r := &power.Resolver{Store: store}

	res, err := r.Resolve(t.Context(), power.Selector{Group: "vip", ID: "zzzzzz"})

	require.NoError(t, err)
	require.Equal(t, power.OutcomeFound, res.Outcome)
	require.Equal(t, "1.05", res.Power.String())
	require.Equal(t, "aB3xY9", res.Config.ID)
}

func TestResolve_ByID(t *testing.T) {
	t.Parallel()

	store := powermock.NewMockStore(gomock.NewController(t))
	store.EXPECT().GetByID(gomock.Any(), "aB3xY9").
		Return(power.Config{ID: "aB3xY9", Group: "vip", Power: decimal.RequireFromString("0.98")}, nil)

	res, err := (&power.Resolver{Store: store}).Resolve(t.Context(), power.Selector{ID: "aB3xY9"})

	require.NoError(t, err)
	require.Equal(t, "0.98", res.Power.String())
}

func TestResolve_NotFoundDefaults(t *testing.T) {
	t.Parallel()

	store := powermock.NewMockStore(gomock.NewController(t))
	store.EXPECT().GetByGroup(gomock.Any(), "ghost").Return(power.Config{}, power.ErrNotFound)

	res, err := (&power.Resolver{Store: store}).Resolve(t.Context(), power.Selector{Group: "ghost"})

	require.NoError(t, err)
	require.Equal(t, power.OutcomeDefaulted, res.Outcome)
	require.True(t, res.Power.Equal(power.DefaultPower))
}

func TestResolve_StoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := powermock.NewMockStore(gomock.NewController(t))
	store.EXPECT().GetByGroup(gomock.Any(), "vip").Return(power.Config{}, errors.New("connection reset"))

	_, err := (&power.Resolver{Store: store}).Resolve(t.Context(), power.Selector{Group: "vip"})

	require.ErrorIs(t, err, power.ErrStore)
}
