package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from protocol operations
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // for pre-checks on outgoing transfers
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64, capacity int) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, capacity),
	}
}

func (jg *JournalGenerator) appendJournal(batch *Batch, debit, credit AccountKey, assetID AssetID, amount int64, jt JournalType) {
	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		EventRef:      batch.EventRef,
		Sequence:      jg.sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     batch.Timestamp,
	})
}

// GenerateDeposit records collateral entering the reserve pool.
// Moves funds: external:deposits → system:reserve_pool
func (jg *JournalGenerator) GenerateDeposit(
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		ReservePoolAccount(assetID),
		NewExternalAccountKey(SubTypeExternalDeposits, assetID),
		assetID, amount, JournalTypeDeposit)

	jg.sequence++
	return batch, nil
}

// GenerateMint records pegged-token issuance. The supply account carries the
// liability, circulation carries the issued tokens.
// Moves funds: system:stable_supply → external:circulation
func (jg *JournalGenerator) GenerateMint(
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		NewExternalAccountKey(SubTypeExternalCirculation, assetID),
		StableSupplyAccount(assetID),
		assetID, amount, JournalTypeMint)

	jg.sequence++
	return batch, nil
}

// GenerateRepayBurn retires circulating supply against the issuance
// liability.
// Moves funds: external:circulation → system:stable_supply
func (jg *JournalGenerator) GenerateRepayBurn(
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		StableSupplyAccount(assetID),
		NewExternalAccountKey(SubTypeExternalCirculation, assetID),
		assetID, amount, JournalTypeRepayBurn)

	jg.sequence++
	return batch, nil
}

// GenerateWithdrawal records collateral leaving the reserve pool.
// Pre-check: the reserve pool account must cover the amount.
// Moves funds: system:reserve_pool → external:withdrawals
func (jg *JournalGenerator) GenerateWithdrawal(
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(ReservePoolAccount(assetID), amount); err != nil {
		return nil, fmt.Errorf("withdrawal pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		NewExternalAccountKey(SubTypeExternalWithdrawals, assetID),
		ReservePoolAccount(assetID),
		assetID, amount, JournalTypeWithdrawal)

	jg.sequence++
	return batch, nil
}

// GenerateStake records pegged tokens locking into the stability pool.
// Moves funds: external:circulation → system:stability_pool
func (jg *JournalGenerator) GenerateStake(
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		StabilityPoolAccount(assetID),
		NewExternalAccountKey(SubTypeExternalCirculation, assetID),
		assetID, amount, JournalTypeStake)

	jg.sequence++
	return batch, nil
}

// GenerateRewardPayout records seized collateral paid out to a staker.
// Pre-check: the reserve pool account must cover the amount.
// Moves funds: system:reserve_pool → user:reward, then user:reward →
// external:withdrawals so the payout is traceable per user.
func (jg *JournalGenerator) GenerateRewardPayout(
	userID uuid.UUID,
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(ReservePoolAccount(assetID), amount); err != nil {
		return nil, fmt.Errorf("reward payout pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp, 2)
	jg.appendJournal(batch,
		NewUserAccountKey(userID, SubTypeReward, assetID),
		ReservePoolAccount(assetID),
		assetID, amount, JournalTypeRewardPayout)
	jg.appendJournal(batch,
		NewExternalAccountKey(SubTypeExternalWithdrawals, assetID),
		NewUserAccountKey(userID, SubTypeReward, assetID),
		assetID, amount, JournalTypeRewardPayout)

	jg.sequence++
	return batch, nil
}

// GenerateLiquidationBurn retires the liquidated debt out of the stability
// pool against the issuance liability.
// Pre-check: the stability pool account must cover the burned debt.
// Moves funds: system:stability_pool → system:stable_supply
func (jg *JournalGenerator) GenerateLiquidationBurn(
	eventRef string,
	debt int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(StabilityPoolAccount(assetID), debt); err != nil {
		return nil, fmt.Errorf("liquidation pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp, 1)
	jg.appendJournal(batch,
		StableSupplyAccount(assetID),
		StabilityPoolAccount(assetID),
		assetID, debt, JournalTypeLiquidationBurn)

	jg.sequence++
	return batch, nil
}

// CurrentSequence returns the next sequence the generator will assign
func (jg *JournalGenerator) CurrentSequence() int64 {
	return jg.sequence
}

// SetSequence resets the generator sequence (used for snapshot restore)
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}
