package google_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/google"
)

const resultPage = `<html><body>
<div class="BNeawe tAd8D AP7Wnd">1 Bitcoin equals</div>
<div class="BNeawe iBp4i AP7Wnd"><div>15,123,456.78 Japanese Yen</div></div>
</body></html>`

func TestFetch(t *testing.T) {
	t.Parallel()

	// Arrange: a fake search page
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "BTC/JPY price" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(resultPage))
	}))
	defer srv.Close()

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := google.New(google.WithBaseURL(srv.URL), google.WithHTTPClient(srv.Client()), google.WithClock(func() time.Time { return fixed }))

	// Act
	q, err := c.Fetch(t.Context(), "BTC/JPY")

	// Assert: bid, ask and last collapse to the scraped value
	require.NoError(t, err)
	require.Equal(t, "BTCJPY", q.Symbol)
	require.Equal(t, provider.Google, q.Source)
	require.Equal(t, "15123456.78", q.Last.String())
	require.True(t, q.Bid.Equal(q.Last))
	require.True(t, q.Ask.Equal(q.Last))
	require.True(t, q.ChangePercent24h.IsZero())
	require.True(t, q.ObservedAt.Equal(fixed))
}

func TestFetch_FallbackSelector(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div class="BNeawe s3v9rd AP7Wnd">101.5 Japanese Yen</div>`))
	}))
	defer srv.Close()

	q, err := google.New(google.WithBaseURL(srv.URL), google.WithHTTPClient(srv.Client())).Fetch(t.Context(), "BTCJPY")
	require.NoError(t, err)
	require.Equal(t, "101.5", q.Last.String())
}

func TestFetch_NoPriceElement(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>captcha</body></html>`))
	}))
	defer srv.Close()

	_, err := google.New(google.WithBaseURL(srv.URL), google.WithHTTPClient(srv.Client())).Fetch(t.Context(), "BTCJPY")
	var pe *provider.QuoteParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "price", pe.Field)
}

func TestFetch_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := google.New(google.WithBaseURL(srv.URL), google.WithHTTPClient(srv.Client())).Fetch(t.Context(), "BTCJPY")
	var ue *provider.UpstreamUnavailableError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusTooManyRequests, ue.Status)
}
