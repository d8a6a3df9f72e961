package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	Partition      string
	JournalEntries []JournalEntry
	Liquidation    *LiquidationRecord
	Timestamp      int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	JournalID     string
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
}

// LiquidationRecord carries liquidation details for the history projection.
// Filled by the orchestrator from the liquidation payload; DebtBurnt comes
// from the applied journal (zero when the stability pool was empty).
type LiquidationRecord struct {
	LiquidationID    uuid.UUID
	PositionID       string
	CollateralSeized int64
	DebtRequested    int64
	DebtBurnt        int64
}

// ProjectionWorker updates projection tables from processed events.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the event log.
type ProjectionWorker struct {
	db            *sql.DB
	inputChan     <-chan ProjectionOutput
	rewardHistory *RewardHistoryProjection
	lastSeq       int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput) *ProjectionWorker {
	return &ProjectionWorker{
		db:            db,
		inputChan:     inputChan,
		rewardHistory: NewRewardHistoryProjection(),
	}
}

// RewardHistory exposes the in-memory reward payout projection.
func (pw *ProjectionWorker) RewardHistory() *RewardHistoryProjection {
	return pw.rewardHistory
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue — projections are eventually consistent
				// and can be rebuilt from the event log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Update balance projections from journal entries
	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if output.Liquidation != nil {
		if err := pw.insertLiquidationHistory(ctx, tx, output); err != nil {
			return fmt.Errorf("liquidation history: %w", err)
		}
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// In-memory reward history is fed after the durable write succeeds
	pw.recordRewardPayouts(output)
	return nil
}

func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry) error {
	// Debit account: increase balance (funds arrive at the debit side)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.AssetID, j.Amount, pw.lastSeq); err != nil {
		return err
	}

	// Credit account: decrease balance
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.AssetID, j.Amount, pw.lastSeq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) insertLiquidationHistory(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	l := output.Liquidation
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.liquidation_history
			(liquidation_id, position_id, collateral_seized, debt_requested, debt_burnt, sequence, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (liquidation_id) DO NOTHING
	`, l.LiquidationID, l.PositionID, l.CollateralSeized, l.DebtRequested, l.DebtBurnt,
		output.Sequence, output.Timestamp)
	return err
}

// recordRewardPayouts extracts reward payout legs from the journal batch.
// A payout is two legs; the user-debit leg carries the owner identity.
func (pw *ProjectionWorker) recordRewardPayouts(output ProjectionOutput) {
	for _, j := range output.JournalEntries {
		if j.JournalType != journalTypeRewardPayout {
			continue
		}
		owner, ok := parseUserAccount(j.DebitAccount)
		if !ok {
			continue
		}
		pw.rewardHistory.AddEntry(RewardHistoryEntry{
			Owner:     owner,
			AssetID:   j.AssetID,
			Amount:    j.Amount,
			JournalID: j.JournalID,
			Sequence:  output.Sequence,
			Timestamp: output.Timestamp,
		})
	}
}

// journalTypeRewardPayout matches ledger.JournalTypeRewardPayout. Kept as a
// local constant so the projection package stays decoupled from the core.
const journalTypeRewardPayout int32 = 5

// parseUserAccount extracts the owner UUID from paths like
// "user:<uuid>:reward:ADA".
func parseUserAccount(accountPath string) (uuid.UUID, bool) {
	parts := strings.Split(accountPath, ":")
	if len(parts) < 3 || parts[0] != "user" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RebuildProjections rebuilds all projection tables from the event log.
// Projections can always be rebuilt by replaying the journal.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	// Truncate all projection tables
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.liquidation_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Rebuild from journal entries: funds arrive at the debit side
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	// Subtract credits
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
