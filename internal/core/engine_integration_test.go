package core_test

import (
	"crypto/sha256"
	"testing"

	"github.com/google/uuid"

	"StableLedger/internal/core"
	"StableLedger/internal/event"
	"StableLedger/internal/ledger"
	"StableLedger/internal/state"
)

// --- Test helpers ---

// newTestCore creates a DeterministicCore with buffered channels and no DB checker.
func newTestCore() (*core.DeterministicCore, chan core.CoreOutput, chan core.CoreOutput) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1024)
	c := core.NewDeterministicCore(0, persistChan, projChan, nil, nil, nil)
	return c, persistChan, projChan
}

func positionID(label string) [32]byte {
	return sha256.Sum256([]byte(label))
}

func mustDeposit(owner uuid.UUID, id [32]byte, coinValue, collateral int64, seq int64) *event.DepositSubmitted {
	return &event.DepositSubmitted{
		DepositID:  uuid.New(),
		Owner:      owner,
		PositionID: id,
		CoinValue:  coinValue,
		Collateral: collateral,
		Sequence:   seq,
		Timestamp:  1000000 + seq*1000,
	}
}

func mustMint(owner uuid.UUID, id [32]byte, amount int64, seq int64) *event.MintRequested {
	return &event.MintRequested{
		RequestID:  uuid.New(),
		Owner:      owner,
		PositionID: id,
		Amount:     amount,
		Sequence:   seq,
		Timestamp:  1000000 + seq*1000,
	}
}

func mustWithdraw(owner uuid.UUID, id [32]byte, amount, price int64, seq int64) *event.WithdrawRequested {
	return &event.WithdrawRequested{
		RequestID:   uuid.New(),
		Owner:       owner,
		PositionID:  id,
		Amount:      amount,
		OraclePrice: price,
		Sequence:    seq,
		Timestamp:   1000000 + seq*1000,
	}
}

func mustRepay(owner uuid.UUID, id [32]byte, coinValue, amount int64, seq int64) *event.RepaySubmitted {
	return &event.RepaySubmitted{
		RequestID:  uuid.New(),
		Owner:      owner,
		PositionID: id,
		CoinValue:  coinValue,
		Amount:     amount,
		Sequence:   seq,
		Timestamp:  1000000 + seq*1000,
	}
}

func mustStake(owner uuid.UUID, coinValue int64, seq int64) *event.StakeSubmitted {
	return &event.StakeSubmitted{
		StakeID:   uuid.New(),
		Owner:     owner,
		CoinValue: coinValue,
		Sequence:  seq,
		Timestamp: 1000000 + seq*1000,
	}
}

func mustRewardWithdraw(owner uuid.UUID, amount int64, seq int64) *event.RewardWithdrawRequested {
	return &event.RewardWithdrawRequested{
		RequestID: uuid.New(),
		Owner:     owner,
		Amount:    amount,
		Sequence:  seq,
		Timestamp: 1000000 + seq*1000,
	}
}

func mustLiquidation(id [32]byte, collateralAmt, debt int64, seq int64) *event.LiquidationRequested {
	return &event.LiquidationRequested{
		LiquidationID: uuid.New(),
		PositionID:    id,
		CollateralAmt: collateralAmt,
		Debt:          debt,
		Sequence:      seq,
		Timestamp:     1000000 + seq*1000,
	}
}

func drainOutputs(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// ============================================================================
// Test: Deposit Flow
// ============================================================================

func TestDeposit_LocksCollateralInReservePool(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0))
	if err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	batch := outputs[0].Batch
	if len(batch.Journals) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(batch.Journals))
	}
	if batch.Journals[0].JournalType != ledger.JournalTypeDeposit {
		t.Errorf("expected deposit journal, got %v", batch.Journals[0].JournalType)
	}
	if batch.Journals[0].Amount != 1000 {
		t.Errorf("expected amount 1000, got %d", batch.Journals[0].Amount)
	}

	adaID, _ := ledger.GetAssetID("ADA")
	if got := c.BalanceTracker().GetReservePoolBalance(adaID); got != 1000 {
		t.Errorf("expected reserve pool 1000, got %d", got)
	}

	dep := c.Protocol().Positions().Get(id)
	if dep == nil {
		t.Fatal("position not created")
	}
	if dep.Status != state.PositionStatusInactive {
		t.Errorf("expected Inactive, got %s", dep.Status)
	}
}

// ============================================================================
// Test: Mint Flow
// ============================================================================

func TestMint_IssuesSupplyDelta(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	drainOutputs(persistCh)

	if err := c.ProcessEvent(mustMint(owner, id, 500, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	batch := outputs[0].Batch
	if len(batch.Journals) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(batch.Journals))
	}
	if batch.Journals[0].JournalType != ledger.JournalTypeMint {
		t.Errorf("expected mint journal, got %v", batch.Journals[0].JournalType)
	}

	susdID, _ := ledger.GetAssetID("sUSD")
	if got := c.BalanceTracker().GetStableSupply(susdID); got != 500 {
		t.Errorf("expected stable supply 500, got %d", got)
	}
	if got := c.Protocol().Globals().TotalMint; got != 500 {
		t.Errorf("expected totalMint 500, got %d", got)
	}
}

func TestMint_ReplacesDebtWithSmallerAmount(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 500, 1)); err != nil {
		t.Fatalf("first mint failed: %v", err)
	}
	drainOutputs(persistCh)

	// Re-mint 300: the new debt replaces the old, so 200 burns back out.
	if err := c.ProcessEvent(mustMint(owner, id, 300, 2)); err != nil {
		t.Fatalf("second mint failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	batch := outputs[0].Batch
	if len(batch.Journals) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(batch.Journals))
	}
	if batch.Journals[0].JournalType != ledger.JournalTypeRepayBurn {
		t.Errorf("expected repay-burn journal for debt decrease, got %v", batch.Journals[0].JournalType)
	}
	if batch.Journals[0].Amount != 200 {
		t.Errorf("expected burn of 200, got %d", batch.Journals[0].Amount)
	}

	susdID, _ := ledger.GetAssetID("sUSD")
	if got := c.BalanceTracker().GetStableSupply(susdID); got != 300 {
		t.Errorf("expected stable supply 300, got %d", got)
	}
}

func TestMint_RejectedOverBorrowLimit(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	drainOutputs(persistCh)

	// LVT 50 on collateral 1000 caps the borrow limit at 500.
	err := c.ProcessEvent(mustMint(owner, id, 501, 1))
	if err == nil {
		t.Fatal("expected error for mint above borrow limit, got nil")
	}

	if len(drainOutputs(persistCh)) != 0 {
		t.Error("rejected mint must not emit output")
	}
	if got := c.Protocol().Globals().TotalMint; got != 0 {
		t.Errorf("expected totalMint 0 after rejection, got %d", got)
	}
}

// ============================================================================
// Test: Repay and Withdraw
// ============================================================================

func TestRepay_BurnsWholeCoin(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 500, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	drainOutputs(persistCh)

	if err := c.ProcessEvent(mustRepay(owner, id, 200, 200, 2)); err != nil {
		t.Fatalf("repay failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	batch := outputs[0].Batch
	if batch.Journals[0].JournalType != ledger.JournalTypeRepayBurn {
		t.Errorf("expected repay-burn journal, got %v", batch.Journals[0].JournalType)
	}

	susdID, _ := ledger.GetAssetID("sUSD")
	if got := c.BalanceTracker().GetStableSupply(susdID); got != 300 {
		t.Errorf("expected stable supply 300, got %d", got)
	}
}

func TestWithdraw_ReleasesFromReservePool(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 400, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	drainOutputs(persistCh)

	// MCR 100 on debt 400 keeps 400 of value locked; at price 2 that is
	// 200 collateral, leaving 800 withdrawable.
	if err := c.ProcessEvent(mustWithdraw(owner, id, 800, 2, 2)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	batch := outputs[0].Batch
	if batch.Journals[0].JournalType != ledger.JournalTypeWithdrawal {
		t.Errorf("expected withdrawal journal, got %v", batch.Journals[0].JournalType)
	}

	adaID, _ := ledger.GetAssetID("ADA")
	if got := c.BalanceTracker().GetReservePoolBalance(adaID); got != 200 {
		t.Errorf("expected reserve pool 200, got %d", got)
	}
	if got := c.Protocol().ReservePool().Value(); got != 200 {
		t.Errorf("expected custody total 200, got %d", got)
	}
}

func TestWithdraw_RejectedOverFloor(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 400, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustWithdraw(owner, id, 801, 2, 2))
	if err == nil {
		t.Fatal("expected error for withdrawal past the collateral floor, got nil")
	}
	if len(drainOutputs(persistCh)) != 0 {
		t.Error("rejected withdrawal must not emit output")
	}
}

// ============================================================================
// Test: Staking and Liquidation
// ============================================================================

func TestLiquidation_BurnsDebtAndAccruesRewards(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	staker := uuid.New()
	id := positionID("pos-1")

	// Borrower: 1000 collateral, 50 debt.
	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 50, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// Staker locks 100 into the stability pool (staking partition).
	if err := c.ProcessEvent(mustStake(staker, 100, 0)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	drainOutputs(persistCh)

	// Liquidate: burn 50 of debt against the 100 pool.
	if err := c.ProcessEvent(mustLiquidation(id, 1000, 50, 0)); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	batch := outputs[0].Batch
	if batch.Journals[0].JournalType != ledger.JournalTypeLiquidationBurn {
		t.Errorf("expected liquidation-burn journal, got %v", batch.Journals[0].JournalType)
	}

	susdID, _ := ledger.GetAssetID("sUSD")
	if got := c.BalanceTracker().GetStabilityPoolBalance(susdID); got != 50 {
		t.Errorf("expected stability pool 50 after burn, got %d", got)
	}
	if got := c.BalanceTracker().GetStableSupply(susdID); got != 0 {
		t.Errorf("expected stable supply 0 after burn, got %d", got)
	}

	dep := c.Protocol().Positions().Get(id)
	if dep.Status != state.PositionStatusLiquidated {
		t.Errorf("expected Liquidated, got %s", dep.Status)
	}

	// Half the pool burned: the staker's effective stake halves, and the
	// seized 1000 collateral accrues at 20 per staked unit.
	reward, st, err := c.Protocol().CheckReward(staker)
	if err != nil {
		t.Fatalf("reward check failed: %v", err)
	}
	if reward != 2000 {
		t.Errorf("expected accrued reward 2000, got %d", reward)
	}
	if st.EffectiveBalance != 50 {
		t.Errorf("expected effective balance 50, got %d", st.EffectiveBalance)
	}
}

func TestRewardWithdraw_PaysFromReservePool(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	staker := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 50, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustStake(staker, 100, 0)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	if err := c.ProcessEvent(mustLiquidation(id, 1000, 50, 0)); err != nil {
		t.Fatalf("liquidation failed: %v", err)
	}
	drainOutputs(persistCh)

	// The accrual is 2000, but only the 1000 of seized collateral sits in
	// the reserve pool; withdraw part of it.
	if err := c.ProcessEvent(mustRewardWithdraw(staker, 800, 1)); err != nil {
		t.Fatalf("reward withdraw failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	batch := outputs[0].Batch
	if len(batch.Journals) != 2 {
		t.Fatalf("expected 2 journals for traceable payout, got %d", len(batch.Journals))
	}
	for _, j := range batch.Journals {
		if j.JournalType != ledger.JournalTypeRewardPayout {
			t.Errorf("expected reward-payout journal, got %v", j.JournalType)
		}
	}

	adaID, _ := ledger.GetAssetID("ADA")
	if got := c.BalanceTracker().GetReservePoolBalance(adaID); got != 200 {
		t.Errorf("expected reserve pool 200, got %d", got)
	}
	if got := c.BalanceTracker().GetUserRewardBalance(staker, adaID); got != 0 {
		t.Errorf("expected settled reward account, got %d", got)
	}
}

// ============================================================================
// Test: Idempotency
// ============================================================================

func TestIdempotency_DuplicateDeposit_Ignored(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()

	deposit := mustDeposit(owner, positionID("pos-1"), 1000, 1000, 0)

	if err := c.ProcessEvent(deposit); err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}
	outputs1 := drainOutputs(persistCh)
	if len(outputs1) != 1 {
		t.Fatalf("expected 1 output on first process, got %d", len(outputs1))
	}

	// Process same event again — should be silently ignored
	if err := c.ProcessEvent(deposit); err != nil {
		t.Fatalf("duplicate deposit should not error: %v", err)
	}

	outputs2 := drainOutputs(persistCh)
	if len(outputs2) != 0 {
		t.Errorf("expected 0 outputs for duplicate, got %d", len(outputs2))
	}
}

// ============================================================================
// Test: Sequence Validation
// ============================================================================

func TestSequenceValidation_GapDetected(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()

	if err := c.ProcessEvent(mustDeposit(owner, positionID("pos-1"), 1000, 1000, 0)); err != nil {
		t.Fatalf("seq 0 failed: %v", err)
	}
	drainOutputs(persistCh)

	// Skip seq 1, send seq 2 — should detect gap
	err := c.ProcessEvent(mustDeposit(owner, positionID("pos-2"), 1000, 1000, 2))
	if err == nil {
		t.Fatal("expected sequence gap error, got nil")
	}
}

func TestSequenceValidation_PartitionsAreIndependent(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	staker := uuid.New()

	// positions partition at seq 0, staking partition at seq 0: both accepted.
	if err := c.ProcessEvent(mustDeposit(owner, positionID("pos-1"), 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, positionID("pos-1"), 100, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustStake(staker, 100, 0)); err != nil {
		t.Fatalf("stake on fresh partition failed: %v", err)
	}
	drainOutputs(persistCh)
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestStateHashChain_Deterministic(t *testing.T) {
	// Process same events twice — state hashes should be identical
	owner := uuid.New()
	depositID := uuid.New()
	mintID := uuid.New()
	id := positionID("pos-1")

	processEvents := func() [][32]byte {
		c, persistCh, _ := newTestCore()

		deposit := &event.DepositSubmitted{
			DepositID:  depositID,
			Owner:      owner,
			PositionID: id,
			CoinValue:  1000,
			Collateral: 1000,
			Sequence:   0,
			Timestamp:  1000000,
		}
		mint := &event.MintRequested{
			RequestID:  mintID,
			Owner:      owner,
			PositionID: id,
			Amount:     500,
			Sequence:   1,
			Timestamp:  1001000,
		}

		if err := c.ProcessEvent(deposit); err != nil {
			t.Fatalf("deposit failed: %v", err)
		}
		if err := c.ProcessEvent(mint); err != nil {
			t.Fatalf("mint failed: %v", err)
		}

		outputs := drainOutputs(persistCh)
		hashes := make([][32]byte, len(outputs))
		for i, o := range outputs {
			copy(hashes[i][:], o.Envelope.StateHash[:])
		}
		return hashes
	}

	hashes1 := processEvents()
	hashes2 := processEvents()

	if len(hashes1) != len(hashes2) {
		t.Fatalf("different number of outputs: %d vs %d", len(hashes1), len(hashes2))
	}

	for i := range hashes1 {
		if hashes1[i] != hashes2[i] {
			t.Errorf("hash %d differs: %x vs %x", i, hashes1[i], hashes2[i])
		}
	}
}

// ============================================================================
// Test: Admin Parameter Update
// ============================================================================

func TestParamUpdate_AppliedFromAdminPartition(t *testing.T) {
	c, persistCh, _ := newTestCore()

	update := &event.ProtocolParamUpdate{
		LiquidationThreshold: 75,
		LoanToValue:          40,
		MinCollateralRatio:   110,
		EffectiveSeq:         0,
		Sequence:             0,
		Timestamp:            1000000,
	}

	if err := c.ProcessEvent(update); err != nil {
		t.Fatalf("param update failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if len(outputs[0].Batch.Journals) != 0 {
		t.Errorf("param update must not move value, got %d journals", len(outputs[0].Batch.Journals))
	}

	cfg := c.Protocol().Config()
	if cfg.LoanToValue != 40 || cfg.LiquidationThreshold != 75 || cfg.MinCollateralRatio != 110 {
		t.Errorf("config not applied: %+v", cfg)
	}

	// Asset types stay fixed.
	if cfg.CollateralAsset != "ADA" || cfg.StableAsset != "sUSD" {
		t.Errorf("asset types must not change: %+v", cfg)
	}
}

// ============================================================================
// Test: Envelope Integrity
// ============================================================================

func TestEnvelope_HasCorrectFields(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()

	deposit := mustDeposit(owner, positionID("pos-1"), 1000, 1000, 0)
	if err := c.ProcessEvent(deposit); err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	env := outputs[0].Envelope

	if env.Sequence != 0 {
		t.Errorf("expected sequence 0, got %d", env.Sequence)
	}
	if env.IdempotencyKey != deposit.IdempotencyKey() {
		t.Errorf("idempotency key mismatch: %s vs %s", env.IdempotencyKey, deposit.IdempotencyKey())
	}
	if env.EventType != event.EventTypeDepositSubmitted {
		t.Errorf("event type mismatch: %v vs %v", env.EventType, event.EventTypeDepositSubmitted)
	}
	if env.Partition != event.PartitionPositions {
		t.Errorf("expected positions partition, got %s", env.Partition)
	}
	if env.StateHash == ([32]byte{}) {
		t.Error("state hash should not be empty")
	}
}

// ============================================================================
// Test: Projection Channel (non-blocking drop)
// ============================================================================

func TestProjectionChannel_DropsOnFull(t *testing.T) {
	persistCh := make(chan core.CoreOutput, 1024)
	projCh := make(chan core.CoreOutput, 1) // Tiny buffer — will fill up
	c := core.NewDeterministicCore(0, persistCh, projCh, nil, nil, nil)

	owner := uuid.New()

	for i := int64(0); i < 5; i++ {
		deposit := mustDeposit(owner, positionID(string(rune('a'+i))), 1000, 1000, i)
		if err := c.ProcessEvent(deposit); err != nil {
			t.Fatalf("ProcessEvent %d failed: %v", i, err)
		}
	}

	// All 5 should succeed (projection drops are silent)
	persistOutputs := drainOutputs(persistCh)
	if len(persistOutputs) != 5 {
		t.Errorf("expected 5 persist outputs, got %d", len(persistOutputs))
	}
}

// ============================================================================
// Test: Snapshot / Restore
// ============================================================================

func TestSnapshotRestore_ResumesProcessing(t *testing.T) {
	c, persistCh, _ := newTestCore()
	owner := uuid.New()
	id := positionID("pos-1")

	if err := c.ProcessEvent(mustDeposit(owner, id, 1000, 1000, 0)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := c.ProcessEvent(mustMint(owner, id, 500, 1)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if snap.Sequence != 1 {
		t.Fatalf("expected snapshot at sequence 1, got %d", snap.Sequence)
	}

	// Fresh core restored from snapshot continues where the first stopped.
	restored, persistCh2, _ := newTestCore()
	restored.RestoreFromSnapshot(snap)

	if restored.GetSequence() != 2 {
		t.Errorf("expected next sequence 2, got %d", restored.GetSequence())
	}
	if restored.GetStateHash() != c.GetStateHash() {
		t.Error("restored hash chain tip differs")
	}
	if got := restored.Protocol().Globals().TotalMint; got != 500 {
		t.Errorf("expected restored totalMint 500, got %d", got)
	}

	// The private metadata commitment must survive the restore or repay
	// would be rejected.
	if err := restored.ProcessEvent(mustRepay(owner, id, 500, 500, 2)); err != nil {
		t.Fatalf("repay on restored core failed: %v", err)
	}

	outputs := drainOutputs(persistCh2)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	dep := restored.Protocol().Positions().Get(id)
	if dep.Status != state.PositionStatusClosed {
		t.Errorf("expected Closed after full repay, got %s", dep.Status)
	}
}
