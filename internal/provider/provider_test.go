package provider

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatSymbol(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, sep, want string
	}{
		{"BTCJPY", "_", "BTC_JPY"},
		{"BTCJPY", "-", "BTC-JPY"},
		{"BTCUSDT", "-", "BTC-USDT"},
		{"btc/jpy", "/", "BTC/JPY"},
		{"BTC-JPY", "_", "BTC_JPY"},
		{"ETHUSDT", "/", "ETH/USDT"},
		{"BTCEUR", "-", "BTCEUR"},
		{"JPY", "_", "JPY"},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, FormatSymbol(tc.in, tc.sep), "FormatSymbol(%q, %q)", tc.in, tc.sep)
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()
	require.Equal(t, "BTCJPY", Canonical(" btc_jpy "))
	require.Equal(t, "BTCUSDT", Canonical("BTC/USDT"))
}

func TestParseSource_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range Sources() {
		got, err := ParseSource(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
	_, err := ParseSource("kraken")
	require.Error(t, err)

	b, err := json.Marshal(struct {
		S Source `json:"s"`
	}{OKJ})
	require.NoError(t, err)
	require.JSONEq(t, `{"s":"okj"}`, string(b))
}

func TestQuoteValidate_RejectsNegative(t *testing.T) {
	t.Parallel()

	q := Quote{Source: Binance, Bid: decimal.NewFromInt(1), Ask: decimal.NewFromInt(-1), Last: decimal.NewFromInt(1)}
	err := q.Validate()
	var pe *QuoteParseError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "ask", pe.Field)
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	d, err := ParseDecimal(OKX, "last", "15000000.5")
	require.NoError(t, err)
	require.Equal(t, "15000000.5", d.String())

	_, err = ParseDecimal(OKX, "last", "")
	require.ErrorIs(t, err, ErrMissingField)

	_, err = ParseDecimal(OKX, "last", "abc")
	var pe *QuoteParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "last", pe.Field)
}

func TestChangePercent_ZeroOpen(t *testing.T) {
	t.Parallel()
	require.True(t, ChangePercent(decimal.NewFromInt(10), decimal.Zero).IsZero())
	require.Equal(t, "10", ChangePercent(decimal.NewFromInt(110), decimal.NewFromInt(100)).String())
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()
	r := Registry{}
	_, err := r.Get(Binance)
	require.ErrorIs(t, err, ErrUnknownSource)
}
