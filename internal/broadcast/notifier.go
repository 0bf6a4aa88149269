package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"ratefeed/internal/composite"
)

// Message is a rendered broadcast. Rate is the computation it was built from.
type Message struct {
	Title string
	Text  string
	Rate  *composite.Rate
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// MultiNotifier delivers to every notifier and joins their errors.
type MultiNotifier []Notifier

func (mn MultiNotifier) Notify(ctx context.Context, m Message) error {
	var errs []error
	for _, n := range mn {
		if err := n.Notify(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, m Message) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("broadcast", "title", m.Title, "text", m.Text)
	return nil
}
