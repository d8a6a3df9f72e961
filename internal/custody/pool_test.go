package custody_test

import (
	"errors"
	"testing"

	"StableLedger/internal/custody"
	"StableLedger/internal/fault"
)

func TestCoin_MergeAndSplit(t *testing.T) {
	a := custody.NewCoin("ADA", 600)
	b := custody.NewCoin("ADA", 400)

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Value != 1000 {
		t.Errorf("merged value: got %d, want 1000", merged.Value)
	}

	taken, change, err := merged.Split(300)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if taken.Value != 300 || change.Value != 700 {
		t.Errorf("split: got (%d, %d), want (300, 700)", taken.Value, change.Value)
	}
}

func TestCoin_MergeColorMismatch(t *testing.T) {
	a := custody.NewCoin("ADA", 10)
	b := custody.NewCoin("sUSD", 10)
	if _, err := a.Merge(b); !errors.Is(err, fault.ErrPrecondition) {
		t.Errorf("color mismatch accepted: %v", err)
	}
}

func TestPoolTotal_MergeAndSend(t *testing.T) {
	pool := custody.NewPoolTotal("ADA")
	if pool.Value() != 0 {
		t.Fatalf("empty pool value: %d", pool.Value())
	}

	if err := pool.MergeIn(custody.NewCoin("ADA", 1000)); err != nil {
		t.Fatalf("merge in: %v", err)
	}
	if pool.Value() != 1000 {
		t.Errorf("pool value: got %d, want 1000", pool.Value())
	}

	sent, err := pool.SendOut(400)
	if err != nil {
		t.Fatalf("send out: %v", err)
	}
	if sent.Value != 400 || pool.Value() != 600 {
		t.Errorf("after send: sent=%d pool=%d, want 400/600", sent.Value, pool.Value())
	}
}

func TestPoolTotal_SendAllResetsToDefault(t *testing.T) {
	pool := custody.NewPoolTotal("sUSD")
	if err := pool.MergeIn(custody.NewCoin("sUSD", 100)); err != nil {
		t.Fatalf("merge in: %v", err)
	}

	if _, err := pool.SendOut(100); err != nil {
		t.Fatalf("send out: %v", err)
	}
	if pool.Value() != 0 {
		t.Errorf("drained pool should reset to default, value=%d", pool.Value())
	}

	// The reset pool must accept new deposits.
	if err := pool.MergeIn(custody.NewCoin("sUSD", 50)); err != nil {
		t.Fatalf("merge into reset pool: %v", err)
	}
	if pool.Value() != 50 {
		t.Errorf("pool value after refill: %d", pool.Value())
	}
}

func TestPoolTotal_Overdraw(t *testing.T) {
	pool := custody.NewPoolTotal("ADA")
	pool.MergeIn(custody.NewCoin("ADA", 10))

	if _, err := pool.SendOut(11); !errors.Is(err, fault.ErrSolvency) {
		t.Errorf("overdraw accepted: %v", err)
	}
	if pool.Value() != 10 {
		t.Errorf("failed send mutated pool: %d", pool.Value())
	}
}

func TestPoolTotal_Burn(t *testing.T) {
	pool := custody.NewPoolTotal("sUSD")
	pool.MergeIn(custody.NewCoin("sUSD", 100))

	if err := pool.Burn(60); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if pool.Value() != 40 {
		t.Errorf("pool after burn: got %d, want 40", pool.Value())
	}
}
