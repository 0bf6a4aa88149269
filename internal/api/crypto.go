package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ratefeed/internal/broadcast"
	"ratefeed/internal/composite"
	"ratefeed/internal/power"
	"ratefeed/internal/provider"
)

type priceQuery struct {
	Symbol   string `validate:"min=2,max=20"`
	Exchange string `validate:"oneof=binance okx okj google"`
}

type quoteResponse struct {
	Symbol             string      `json:"symbol"`
	Exchange           string      `json:"exchange"`
	BidPrice           json.Number `json:"bid_price"`
	AskPrice           json.Number `json:"ask_price"`
	LastPrice          json.Number `json:"last_price"`
	Volume             json.Number `json:"volume"`
	PriceChangePercent json.Number `json:"price_change_percent"`
	Timestamp          time.Time   `json:"timestamp"`
}

func (h *handlers) getPrice(w http.ResponseWriter, r *http.Request) {
	q := priceQuery{
		Symbol:   strings.TrimSpace(r.URL.Query().Get("symbol")),
		Exchange: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("exchange"))),
	}
	if q.Symbol == "" {
		q.Symbol = composite.DefaultUSDTSymbol
	}
	if q.Exchange == "" {
		q.Exchange = provider.Binance.String()
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	src, err := provider.ParseSource(q.Exchange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.Providers.Get(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := p.Fetch(r.Context(), q.Symbol)
	if err != nil {
		h.log.Warn("price fetch failed", "id", RequestID(r.Context()), "exchange", q.Exchange, "symbol", q.Symbol, "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Symbol:             quote.Symbol,
		Exchange:           quote.Source.DisplayName(),
		BidPrice:           num(quote.Bid),
		AskPrice:           num(quote.Ask),
		LastPrice:          num(quote.Last),
		Volume:             num(quote.Volume24h),
		PriceChangePercent: num(quote.ChangePercent24h),
		Timestamp:          quote.ObservedAt,
	})
}

type bidAskLast struct {
	BidPrice      json.Number `json:"bid_price"`
	AskPrice      json.Number `json:"ask_price"`
	LastPrice     json.Number `json:"last_price"`
	SpreadPercent json.Number `json:"spread_percent"`
}

type lastOnly struct {
	LastPrice json.Number `json:"last_price"`
}

type sourceLeg struct {
	BidPrice         json.Number `json:"bid_price,omitempty"`
	AskPrice         json.Number `json:"ask_price,omitempty"`
	LastPrice        json.Number `json:"last_price"`
	ChangePercent24h json.Number `json:"change_percent_24h,omitempty"`
	Exchange         string      `json:"exchange"`
	Timestamp        time.Time   `json:"timestamp"`
	Stale            bool        `json:"stale,omitempty"`
}

type sourceData struct {
	BTCUSDT      sourceLeg `json:"btc_usdt"`
	BTCJPY       sourceLeg `json:"btc_jpy"`
	BTCJPYGoogle sourceLeg `json:"btc_jpy_google"`
}

type composeResponse struct {
	USDTJPY         bidAskLast  `json:"usdt_jpy"`
	USDTJPYGoogle   lastOnly    `json:"usdt_jpy_google"`
	SourceData      sourceData  `json:"source_data"`
	CalculationTime time.Time   `json:"calculation_time"`
	PowerMultiplier json.Number `json:"power_multiplier"`
	PowerSource     string      `json:"power_source"`
}

// leg reports q after scaling by the applied multiplier.
func leg(q provider.Quote, p decimal.Decimal) sourceLeg {
	return sourceLeg{
		BidPrice:         num(q.Bid.Mul(p)),
		AskPrice:         num(q.Ask.Mul(p)),
		LastPrice:        num(q.Last.Mul(p)),
		ChangePercent24h: num(q.ChangePercent24h),
		Exchange:         q.Source.DisplayName(),
		Timestamp:        q.ObservedAt,
	}
}

func newComposeResponse(rate *composite.Rate) composeResponse {
	return composeResponse{
		USDTJPY: bidAskLast{
			BidPrice:      fixed(rate.Bid),
			AskPrice:      fixed(rate.Ask),
			LastPrice:     fixed(rate.Last),
			SpreadPercent: fixed(rate.SpreadPercent),
		},
		USDTJPYGoogle: lastOnly{LastPrice: fixed(rate.SecondaryLast)},
		SourceData: sourceData{
			BTCUSDT: leg(rate.USDT, rate.Power),
			BTCJPY:  leg(rate.JPY, rate.Power),
			BTCJPYGoogle: sourceLeg{
				LastPrice: num(rate.Pivot.Last.Mul(rate.Power)),
				Exchange:  rate.Pivot.Source.DisplayName(),
				Timestamp: rate.Pivot.ObservedAt,
				Stale:     rate.PivotStale,
			},
		},
		CalculationTime: rate.CalculatedAt,
		PowerMultiplier: num(rate.Power),
		PowerSource:     rate.PowerOutcome.String(),
	}
}

func (h *handlers) getCompose(w http.ResponseWriter, r *http.Request) {
	sel := power.Selector{
		Group: strings.TrimSpace(r.URL.Query().Get("group")),
		ID:    strings.TrimSpace(r.URL.Query().Get("id")),
	}
	rate, err := h.Calc.Compute(r.Context(), sel)
	if err != nil {
		h.log.Error("compose failed", "id", RequestID(r.Context()), "group", sel.Group, "config_id", sel.ID, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to calculate USDT/JPY rate: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, newComposeResponse(rate))
}

func (h *handlers) triggerBroadcast(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Broadcast.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("broadcast failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, newComposeResponse(rate))
}

func (h *handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Templates.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var patch broadcast.TemplatePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Templates.Update(mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type intervalResponse struct {
	Minutes int    `json:"minutes"`
	Message string `json:"message,omitempty"`
}

func (h *handlers) getInterval(w http.ResponseWriter, _ *http.Request) {
	d, ok := h.Scheduler.Interval(broadcast.PriceBroadcast)
	if !ok {
		writeError(w, http.StatusNotFound, "broadcast job is not registered")
		return
	}
	writeJSON(w, http.StatusOK, intervalResponse{Minutes: int(d / time.Minute)})
}

func (h *handlers) updateInterval(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
		return
	}
	if err := h.Scheduler.Reschedule(broadcast.PriceBroadcast, time.Duration(minutes)*time.Minute); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, intervalResponse{
		Minutes: minutes,
		Message: fmt.Sprintf("Successfully updated broadcast interval to %d min(s)", minutes),
	})
}
