package broadcast_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ratefeed/internal/broadcast"
	"ratefeed/internal/composite"
)

func TestTemplateStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "templates", "message_template.json")
	s, err := broadcast.NewTemplateStore(path)
	require.NoError(t, err)

	// seeded on first open
	tpl, err := s.Get(broadcast.PriceBroadcast)
	require.NoError(t, err)
	require.Contains(t, tpl.Content, "{bid_price}")

	_, err = s.Get("missing")
	require.ErrorIs(t, err, broadcast.ErrTemplateNotFound)

	content := "Bid {bid_price}"
	updated, err := s.Update(broadcast.PriceBroadcast, broadcast.TemplatePatch{Content: &content})
	require.NoError(t, err)
	require.Equal(t, "Bid {bid_price}", updated.Content)
	require.Equal(t, "USDT/JPY", updated.Title, "title is kept when not patched")

	_, err = s.Update("missing", broadcast.TemplatePatch{Content: &content})
	require.ErrorIs(t, err, broadcast.ErrTemplateNotFound)

	// persisted
	reopened, err := broadcast.NewTemplateStore(path)
	require.NoError(t, err)
	tpl, err = reopened.Get(broadcast.PriceBroadcast)
	require.NoError(t, err)
	require.Equal(t, content, tpl.Content)
}

func TestTemplateStore_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "t.json")
	require.NoError(t, os.WriteFile(path, []byte("["), 0o644))
	s, err := broadcast.NewTemplateStore(path)
	require.NoError(t, err)

	_, err = s.Get(broadcast.PriceBroadcast)
	require.Error(t, err)
	require.NotErrorIs(t, err, broadcast.ErrTemplateNotFound)
}

func sampleRate() *composite.Rate {
	d := decimal.RequireFromString
	return &composite.Rate{
		Bid:           d("148514.85"),
		Ask:           d("152000"),
		Last:          d("150248.76"),
		SpreadPercent: d("2.35"),
		SecondaryLast: d("150482.16"),
		Power:         d("1"),
		CalculatedAt:  time.Date(2025, 3, 1, 9, 30, 5, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	out := broadcast.Render(
		"{bid_price}/{ask_price}/{last_price} g={google_last_price} s={spread_percent}% p={power} at {formatted_time} {other}",
		sampleRate(), tokyo)

	require.Equal(t, "148514.85/152000.00/150248.76 g=150482.16 s=2.35% p=1 at 2025-03-01 18:30:05 {other}", out)
}

func TestEscapeMarkdownV2(t *testing.T) {
	t.Parallel()

	require.Equal(t, `*Bid* 148514\.85 \(2\.35%\)\!`, broadcast.EscapeMarkdownV2("*Bid* 148514.85 (2.35%)!"))
	require.Equal(t, `a\-b \\ c`, broadcast.EscapeMarkdownV2(`a-b \ c`))
}
