package broadcast

import (
	"context"
	"log/slog"
	"time"

	"ratefeed/internal/composite"
	"ratefeed/internal/power"
)

// RateComputer is satisfied by *composite.Calculator.
type RateComputer interface {
	Compute(ctx context.Context, sel power.Selector) (*composite.Rate, error)
}

type TemplateGetter interface {
	Get(id string) (Template, error)
}

// Broadcaster computes the default rate and delivers it through Notifier.
type Broadcaster struct {
	Calc       RateComputer
	Templates  TemplateGetter
	TemplateID string
	Notifier   Notifier
	Location   *time.Location
	Logger     *slog.Logger
}

// Run returns the computation error, if any. Template and delivery failures
// are logged and do not fail the run.
func (b *Broadcaster) Run(ctx context.Context) (*composite.Rate, error) {
	log := b.logger()
	rate, err := b.Calc.Compute(ctx, power.Selector{})
	if err != nil {
		log.Error("broadcast compute failed", "err", err)
		return nil, err
	}

	id := b.TemplateID
	if id == "" {
		id = PriceBroadcast
	}
	tpl, err := b.Templates.Get(id)
	if err != nil {
		log.Error("broadcast template unavailable", "template", id, "err", err)
		return rate, nil
	}
	msg := Message{Title: tpl.Title, Text: Render(tpl.Content, rate, b.Location), Rate: rate}
	if err := b.Notifier.Notify(ctx, msg); err != nil {
		log.Error("broadcast delivery failed", "err", err)
		return rate, nil
	}
	log.Info("broadcast sent", "bid", rate.Bid.StringFixed(2), "ask", rate.Ask.StringFixed(2))
	return rate, nil
}

// Job adapts Run to the Scheduler.
func (b *Broadcaster) Job(ctx context.Context) { _, _ = b.Run(ctx) }

func (b *Broadcaster) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
