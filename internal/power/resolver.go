package power

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Selector picks a config by group or by id. Group wins when both are set.
type Selector struct {
	Group string
	ID    string
}

func (s Selector) IsZero() bool { return s.Group == "" && s.ID == "" }

// Outcome distinguishes a found config from a default.
type Outcome uint8

const (
	// OutcomeUnspecified means the selector was empty and no lookup ran.
	OutcomeUnspecified Outcome = iota + 1
	OutcomeFound
	// OutcomeDefaulted means the selected config does not exist.
	OutcomeDefaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnspecified:
		return "unspecified"
	case OutcomeFound:
		return "found"
	case OutcomeDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Resolution is the multiplier to apply and how it was chosen.
// Config is set only for OutcomeFound.
type Resolution struct {
	Power   decimal.Decimal
	Outcome Outcome
	Config  *Config
}

type Resolver struct {
	Store  Lookup
	Logger *slog.Logger
}

// Resolve never fails for a missing config; only store failures are returned.
func (r *Resolver) Resolve(ctx context.Context, sel Selector) (Resolution, error) {
	if sel.IsZero() || r == nil || r.Store == nil {
		return Resolution{Power: DefaultPower, Outcome: OutcomeUnspecified}, nil
	}

	var (
		c   Config
		err error
	)
	if sel.Group != "" {
		c, err = r.Store.GetByGroup(ctx, sel.Group)
	} else {
		c, err = r.Store.GetByID(ctx, sel.ID)
	}
	switch {
	case errors.Is(err, ErrNotFound):
		r.logger().Warn("power config not found, using default",
			"group", sel.Group, "id", sel.ID, "power", DefaultPower.String())
		return Resolution{Power: DefaultPower, Outcome: OutcomeDefaulted}, nil
	case errors.Is(err, ErrStore):
		return Resolution{}, err
	case err != nil:
		return Resolution{}, storeErr("lookup", err)
	}
	return Resolution{Power: c.Power, Outcome: OutcomeFound, Config: &c}, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
