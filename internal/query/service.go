package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// QueryService provides read-only access to projection tables.
// Queries are served via gRPC and HTTP/JSON (gRPC-Gateway), reading from
// PostgreSQL projection tables. All responses include as_of_sequence for
// freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetPoolOverview returns the system pool balances.
func (qs *QueryService) GetPoolOverview(
	ctx context.Context,
	collateralAsset string,
	stableAsset string,
) (*PoolOverviewResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	reserve, err := qs.getProjectedBalance(ctx, fmt.Sprintf("system:reserve_pool:%s", collateralAsset))
	if err != nil {
		return nil, err
	}

	stability, err := qs.getProjectedBalance(ctx, fmt.Sprintf("system:stability_pool:%s", stableAsset))
	if err != nil {
		return nil, err
	}

	// The supply account carries the issuance liability, so it runs negative
	// while tokens are outstanding.
	supply, err := qs.getProjectedBalance(ctx, fmt.Sprintf("system:stable_supply:%s", stableAsset))
	if err != nil {
		return nil, err
	}

	circulation, err := qs.getProjectedBalance(ctx, fmt.Sprintf("external:circulation:%s", stableAsset))
	if err != nil {
		return nil, err
	}

	return &PoolOverviewResponse{
		ReservePool:   reserve,
		StabilityPool: stability,
		TotalSupply:   -supply,
		Circulation:   circulation,
		AsOfSequence:  asOfSeq,
	}, nil
}

// GetRewardBalance returns a staker's reward state for a specific asset.
// Lifetime payouts are summed from the journal; the pending reward accrues
// in the in-memory stability pool state and is settled on withdrawal, so it
// is not derivable from projections alone.
func (qs *QueryService) GetRewardBalance(
	ctx context.Context,
	owner uuid.UUID,
	asset string,
) (*RewardBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rewardPath := fmt.Sprintf("user:%s:reward:%s", owner, asset)

	var lifetime int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM event_log.journal
		WHERE debit_account = $1 AND journal_type = 5
	`, rewardPath).Scan(&lifetime)
	if err != nil {
		return nil, err
	}

	return &RewardBalanceResponse{
		Owner:           owner,
		Asset:           asset,
		LifetimePayouts: lifetime,
		AsOfSequence:    asOfSeq,
	}, nil
}

// GetLiquidationHistory returns liquidation records, optionally filtered by
// position. Supports cursor-based pagination on sequence.
func (qs *QueryService) GetLiquidationHistory(
	ctx context.Context,
	positionID *string,
	limit int,
	afterSequence *int64,
) ([]LiquidationHistoryResponse, error) {
	query := `
		SELECT liquidation_id, position_id, collateral_seized, debt_requested,
		       debt_burnt, sequence, triggered_at
		FROM projections.liquidation_history
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if positionID != nil {
		query += fmt.Sprintf(" AND position_id = $%d", argIdx)
		args = append(args, *positionID)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []LiquidationHistoryResponse
	for rows.Next() {
		var h LiquidationHistoryResponse
		if err := rows.Scan(
			&h.LiquidationID, &h.PositionID, &h.CollateralSeized,
			&h.DebtRequested, &h.DebtBurnt, &h.Sequence, &h.TriggeredAt,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetJournalHistory returns journal entries for a user with pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", userID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE debit_account LIKE $1 OR credit_account LIKE $1
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain and global balance invariants.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence, e1.prev_hash, e2.state_hash
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var prevHash, expectedHash []byte
		if err := rows.Scan(&seq, &prevHash, &expectedHash); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}

	// Check global balance (should sum to zero across all accounts per asset)
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) as total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) getProjectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
