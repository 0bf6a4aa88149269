// Command fetch prints one normalized quote, or the composite USDT/JPY
// rate, as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"ratefeed/internal/app"
	"ratefeed/internal/composite"
	"ratefeed/internal/config"
	"ratefeed/internal/logging"
	"ratefeed/internal/power"
	"ratefeed/internal/provider"
)

type options struct {
	exchange   string
	symbol     string
	compose    bool
	group      string
	id         string
	configPath string
	timeout    time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.exchange, "exchange", "binance", "binance, okx, okj or google")
	flag.StringVar(&o.symbol, "symbol", composite.DefaultUSDTSymbol, "instrument, e.g. BTCUSDT or BTC/JPY")
	flag.BoolVar(&o.compose, "compose", false, "print the composite USDT/JPY rate instead of one quote")
	flag.StringVar(&o.group, "group", "", "power group for -compose")
	flag.StringVar(&o.id, "id", "", "power config id for -compose")
	flag.StringVar(&o.configPath, "config", os.Getenv("CONFIG_FILE"), "config file (JSON or YAML)")
	flag.DurationVar(&o.timeout, "timeout", 20*time.Second, "overall deadline")
	flag.Parse()

	if err := run(o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "fetch:", err)
		os.Exit(1)
	}
}

func run(o options, w io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var out any
	if o.compose {
		out, err = a.Calculator.Compute(ctx, power.Selector{Group: o.group, ID: o.id})
	} else {
		out, err = fetchQuote(ctx, a.Providers, o.exchange, o.symbol)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func fetchQuote(ctx context.Context, reg provider.Registry, exchange, symbol string) (provider.Quote, error) {
	src, err := provider.ParseSource(exchange)
	if err != nil {
		return provider.Quote{}, err
	}
	p, err := reg.Get(src)
	if err != nil {
		return provider.Quote{}, err
	}
	return p.Fetch(ctx, symbol)
}
