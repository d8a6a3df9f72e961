// Package custody models the typed, valued coins the core receives from and
// hands back to the external custody subsystem. The core never moves value
// itself — it only tracks the totals that result from merge, send, and burn
// primitives.
package custody

import (
	"fmt"

	"github.com/google/uuid"

	"StableLedger/internal/fault"
)

// Coin is a qualified balance: an amount of a single asset type.
type Coin struct {
	ID    uuid.UUID
	Color string // asset type, e.g. "ADA" or "sUSD"
	Value int64
}

// NewCoin mints a coin value object. Zero-value coins are legal (they
// represent an empty pool default).
func NewCoin(color string, value int64) Coin {
	return Coin{ID: uuid.New(), Color: color, Value: value}
}

// Merge combines two coins of the same color.
func (c Coin) Merge(other Coin) (Coin, error) {
	if c.Color != other.Color {
		return Coin{}, fmt.Errorf("%w: cannot merge %s into %s", fault.ErrPrecondition, other.Color, c.Color)
	}
	return Coin{ID: c.ID, Color: c.Color, Value: c.Value + other.Value}, nil
}

// Split removes amount from the coin, returning the taken part and the
// change. The change has Value 0 when the coin is fully consumed.
func (c Coin) Split(amount int64) (taken, change Coin, err error) {
	if amount < 0 || amount > c.Value {
		return Coin{}, Coin{}, fmt.Errorf("%w: split %d from coin of %d", fault.ErrPrecondition, amount, c.Value)
	}
	taken = Coin{ID: uuid.New(), Color: c.Color, Value: amount}
	change = Coin{ID: c.ID, Color: c.Color, Value: c.Value - amount}
	return taken, change, nil
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool {
	return c.Value == 0
}
