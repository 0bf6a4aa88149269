package power

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no config matches the group or id.
	ErrNotFound = errors.New("power: config not found")
	// ErrStore wraps any failure of the backing store.
	ErrStore = errors.New("power: config store failure")
	// ErrGroupExists is returned by Create for a duplicate group.
	ErrGroupExists = errors.New("power: group already exists")
	// ErrInvalidPower rejects negative multipliers.
	ErrInvalidPower = errors.New("power: power must be >= 0")
	// ErrEmptyGroup rejects configs without a group name.
	ErrEmptyGroup = errors.New("power: group is required")
)

// DefaultPower is applied when no config is selected or found.
var DefaultPower = decimal.NewFromInt(1)

// Config is a named price multiplier.
type Config struct {
	ID          string          `json:"id"`
	Group       string          `json:"group" validate:"required,max=64"`
	Power       decimal.Decimal `json:"power"`
	Description string          `json:"description,omitempty"`
}

func (c Config) validate() error {
	if c.Group == "" {
		return ErrEmptyGroup
	}
	if c.Power.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidPower, c.Power)
	}
	return nil
}

// Lookup is the read side used by the resolver.
type Lookup interface {
	GetByGroup(ctx context.Context, group string) (Config, error)
	GetByID(ctx context.Context, id string) (Config, error)
}

// Store is a keyed collection of configs. Group and ID are both unique.
//
//go:generate mockgen -package=powermock -destination=powermock/store.go -source=power.go Store
type Store interface {
	Lookup
	List(ctx context.Context) ([]Config, error)
	// Create assigns a new ID and ignores any ID on c.
	Create(ctx context.Context, c Config) (Config, error)
	// Update replaces power and description, keeping ID and group.
	Update(ctx context.Context, group string, c Config) (Config, error)
	Delete(ctx context.Context, group string) error
	// SetAllPowers returns ErrNotFound when the store is empty.
	SetAllPowers(ctx context.Context, p decimal.Decimal) ([]Config, error)
}

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 6
	idAttempts = 16
)

// NewID returns a random 6-character alphanumeric id.
func NewID() (string, error) {
	b := make([]byte, idLength)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b), nil
}

// uniqueID draws ids until taken reports false.
func uniqueID(taken func(string) (bool, error)) (string, error) {
	for range idAttempts {
		id, err := NewID()
		if err != nil {
			return "", err
		}
		used, err := taken(id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no free id after %d attempts", ErrStore, idAttempts)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
