package custody

import (
	"fmt"

	"StableLedger/internal/fault"
)

// PoolTotal tracks an aggregate pool balance for a single asset type. It is
// mutated only through the merge/send/burn primitives; when a send or burn
// leaves no change, the total resets to the empty default rather than
// keeping a zero-value coin around.
type PoolTotal struct {
	color string
	coin  *Coin // nil when the pool holds nothing
}

func NewPoolTotal(color string) *PoolTotal {
	return &PoolTotal{color: color}
}

// Color returns the asset type this pool accepts.
func (p *PoolTotal) Color() string {
	return p.color
}

// Value returns the current aggregate, 0 for an empty pool.
func (p *PoolTotal) Value() int64 {
	if p.coin == nil {
		return 0
	}
	return p.coin.Value
}

// MergeIn absorbs a coin into the pool, setting it when the pool is empty.
func (p *PoolTotal) MergeIn(c Coin) error {
	if c.Color != p.color {
		return fmt.Errorf("%w: pool accepts %s, got %s", fault.ErrPrecondition, p.color, c.Color)
	}

	if p.coin == nil {
		stored := c
		p.coin = &stored
		return nil
	}

	merged, err := p.coin.Merge(c)
	if err != nil {
		return err
	}
	p.coin = &merged
	return nil
}

// SendOut removes amount from the pool, returning the sent coin. The pool
// keeps the change, or resets to default when nothing remains.
func (p *PoolTotal) SendOut(amount int64) (Coin, error) {
	if p.coin == nil || amount > p.coin.Value {
		return Coin{}, fmt.Errorf("%w: pool holds %d, send of %d requested",
			fault.ErrSolvency, p.Value(), amount)
	}

	sent, change, err := p.coin.Split(amount)
	if err != nil {
		return Coin{}, err
	}

	if change.IsZero() {
		p.coin = nil
	} else {
		p.coin = &change
	}
	return sent, nil
}

// Burn destroys amount from the pool. Identical to SendOut except the
// removed value is discarded rather than handed back.
func (p *PoolTotal) Burn(amount int64) error {
	_, err := p.SendOut(amount)
	return err
}

// SetValue overwrites the aggregate (used during snapshot restore).
func (p *PoolTotal) SetValue(v int64) {
	if v <= 0 {
		p.coin = nil
		return
	}
	p.coin = &Coin{Color: p.color, Value: v}
}
