package ledger_test

import (
	"testing"

	"github.com/google/uuid"

	"StableLedger/internal/ledger"
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	userID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assetID, _ := ledger.GetAssetID("ADA")
	key := ledger.NewUserAccountKey(userID, ledger.SubTypeCollateral, assetID)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:collateral:ADA"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_SystemPath(t *testing.T) {
	assetID, _ := ledger.GetAssetID("sUSD")
	key := ledger.StabilityPoolAccount(assetID)

	path := key.AccountPath()
	if path != "system:stability_pool:sUSD" {
		t.Errorf("got %q, want %q", path, "system:stability_pool:sUSD")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	assetID, _ := ledger.GetAssetID("ADA")
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, assetID)

	path := key.AccountPath()
	if path != "external:deposits:ADA" {
		t.Errorf("got %q, want %q", path, "external:deposits:ADA")
	}
}

func TestGetAssetID_Known(t *testing.T) {
	id, ok := ledger.GetAssetID("sUSD")
	if !ok {
		t.Fatal("sUSD should be a known asset")
	}
	if id == 0 {
		t.Error("sUSD asset ID should be non-zero")
	}
}

func TestGetAssetID_Unknown(t *testing.T) {
	_, ok := ledger.GetAssetID("DOGE")
	if ok {
		t.Error("DOGE should not be a known asset")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	assetID, _ := ledger.GetAssetID("ADA")

	if bt.GetReservePoolBalance(assetID) != 0 {
		t.Error("initial reserve pool balance should be 0")
	}
}

func TestBalanceTracker_ApplyJournal(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	assetID, _ := ledger.GetAssetID("ADA")

	// Simulate deposit: debit system:reserve_pool, credit external:deposits
	j := ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.ReservePoolAccount(assetID),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, assetID),
		AssetID:       assetID,
		Amount:        1_000_000,
	}

	bt.ApplyJournal(j)

	if got := bt.GetReservePoolBalance(assetID); got != 1_000_000 {
		t.Errorf("reserve pool: got %d, want 1_000_000", got)
	}
}

func TestBalanceTracker_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	ada, _ := ledger.GetAssetID("ADA")
	susd, _ := ledger.GetAssetID("sUSD")

	// Deposit collateral
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.ReservePoolAccount(ada),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, ada),
		AssetID:       ada,
		Amount:        1_000_000,
	})

	// Mint pegged tokens
	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewExternalAccountKey(ledger.SubTypeExternalCirculation, susd),
		CreditAccount: ledger.StableSupplyAccount(susd),
		AssetID:       susd,
		Amount:        300_000,
	})

	totals := bt.ComputeGlobalBalance()
	for aid, total := range totals {
		if total != 0 {
			t.Errorf("asset %d has non-zero global balance: %d", aid, total)
		}
	}
}

func TestBalanceTracker_StableSupplySign(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	susd, _ := ledger.GetAssetID("sUSD")

	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.NewExternalAccountKey(ledger.SubTypeExternalCirculation, susd),
		CreditAccount: ledger.StableSupplyAccount(susd),
		AssetID:       susd,
		Amount:        500,
	})

	// Supply account is the liability side: reported supply is positive.
	if got := bt.GetStableSupply(susd); got != 500 {
		t.Errorf("stable supply: got %d, want 500", got)
	}
}

func TestBalanceTracker_Snapshot(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	assetID, _ := ledger.GetAssetID("ADA")

	bt.ApplyJournal(ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       uuid.New(),
		DebitAccount:  ledger.ReservePoolAccount(assetID),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, assetID),
		AssetID:       assetID,
		Amount:        999,
	})

	snap := bt.Snapshot()
	if len(snap) == 0 {
		t.Fatal("snapshot should not be empty")
	}

	// Mutating snapshot should not affect tracker
	for k := range snap {
		snap[k] = 0
	}

	if bt.GetReservePoolBalance(assetID) != 999 {
		t.Error("tracker balance should not be affected by snapshot mutation")
	}
}

// ============================================================================
// Test: Batch Validation
// ============================================================================

func TestBatchValidate_EmptyBatch_Fails(t *testing.T) {
	batch := &ledger.Batch{
		BatchID:  uuid.New(),
		Journals: []ledger.Journal{},
	}

	if err := batch.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatchValidate_NonPositiveAmount_Fails(t *testing.T) {
	batchID := uuid.New()
	assetID, _ := ledger.GetAssetID("ADA")

	for _, amount := range []int64{0, -100} {
		batch := &ledger.Batch{
			BatchID: batchID,
			Journals: []ledger.Journal{
				{
					JournalID:     uuid.New(),
					BatchID:       batchID,
					DebitAccount:  ledger.ReservePoolAccount(assetID),
					CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, assetID),
					AssetID:       assetID,
					Amount:        amount,
				},
			},
		}

		if err := batch.Validate(); err == nil {
			t.Errorf("amount %d should fail validation", amount)
		}
	}
}

func TestBatchValidate_SelfTransfer_Fails(t *testing.T) {
	batchID := uuid.New()
	assetID, _ := ledger.GetAssetID("ADA")
	sameAccount := ledger.ReservePoolAccount(assetID)

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				DebitAccount:  sameAccount,
				CreditAccount: sameAccount,
				AssetID:       assetID,
				Amount:        100,
			},
		},
	}

	if err := batch.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}
}

func TestBatchValidate_MismatchedBatchID_Fails(t *testing.T) {
	batchID := uuid.New()
	assetID, _ := ledger.GetAssetID("ADA")

	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       uuid.New(), // Different batch ID
				DebitAccount:  ledger.ReservePoolAccount(assetID),
				CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, assetID),
				AssetID:       assetID,
				Amount:        100,
			},
		},
	}

	if err := batch.Validate(); err == nil {
		t.Error("mismatched batch ID should fail validation")
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestJournalGenerator_FullLifecycleStaysZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	v := ledger.NewInvariantValidator(bt)
	ada, _ := ledger.GetAssetID("ADA")
	susd, _ := ledger.GetAssetID("sUSD")
	staker := uuid.New()

	apply := func(batch *ledger.Batch, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if err := bt.ApplyBatch(batch); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if err := v.ValidateGlobalBalance(); err != nil {
			t.Fatalf("zero-sum violated: %v", err)
		}
	}

	apply(jg.GenerateDeposit("dep-1", 1000, ada, 1))
	apply(jg.GenerateMint("mint-1", 500, susd, 2))
	apply(jg.GenerateStake("stake-1", 100, susd, 3))
	apply(jg.GenerateLiquidationBurn("liq-1", 50, susd, 4))
	apply(jg.GenerateRewardPayout(staker, "reward-1", 200, ada, 5))
	apply(jg.GenerateRepayBurn("repay-1", 300, susd, 6))
	apply(jg.GenerateWithdrawal("wd-1", 400, ada, 7))

	if got := bt.GetReservePoolBalance(ada); got != 400 {
		t.Errorf("reserve pool: got %d, want 400", got)
	}
	if got := bt.GetStabilityPoolBalance(susd); got != 50 {
		t.Errorf("stability pool: got %d, want 50", got)
	}
	// 500 minted, 50 burned in liquidation, 300 repaid.
	if got := bt.GetStableSupply(susd); got != 150 {
		t.Errorf("stable supply: got %d, want 150", got)
	}
}

func TestJournalGenerator_WithdrawalPreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	ada, _ := ledger.GetAssetID("ADA")

	if _, err := jg.GenerateWithdrawal("wd-1", 100, ada, 1); err == nil {
		t.Error("withdrawal from empty reserve pool should fail pre-check")
	}
}

func TestJournalGenerator_LiquidationPreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	susd, _ := ledger.GetAssetID("sUSD")

	batch, err := jg.GenerateStake("stake-1", 40, susd, 1)
	if err != nil {
		t.Fatalf("generate stake: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply stake: %v", err)
	}

	if _, err := jg.GenerateLiquidationBurn("liq-1", 50, susd, 2); err == nil {
		t.Error("liquidation burn beyond stability pool should fail pre-check")
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_PoolBacking(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	v := ledger.NewInvariantValidator(bt)
	ada, _ := ledger.GetAssetID("ADA")
	susd, _ := ledger.GetAssetID("sUSD")

	batch, err := jg.GenerateDeposit("dep-1", 1000, ada, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := v.ValidatePoolBacking(ada, 1000, susd, 0); err != nil {
		t.Errorf("pool backing should match: %v", err)
	}
	if err := v.ValidatePoolBacking(ada, 999, susd, 0); err == nil {
		t.Error("diverging custody total should fail")
	}
}
