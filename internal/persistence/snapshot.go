package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager handles creating and loading state snapshots for recovery.
// Snapshots contain balances, depositors, stakers, the protocol globals,
// private metadata, custody totals, the sequence counters, and the last
// state hash.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the full in-memory state at a point in time.
type SnapshotData struct {
	Sequence        int64              `json:"sequence"`
	StateHash       []byte             `json:"state_hash"`
	PrevHash        []byte             `json:"prev_hash"`
	Balances        map[string]int64   `json:"balances"` // AccountPath -> balance
	Depositors      []DepositorSnap    `json:"depositors"`
	Stakers         []StakerSnap       `json:"stakers"`
	Globals         GlobalsSnap        `json:"globals"`
	Metadata        []MetadataSnap     `json:"metadata"`
	ReservePool     int64              `json:"reserve_pool"`
	StakePool       int64              `json:"stake_pool"`
	Config          ConfigSnap         `json:"config"`
	SequenceState   map[string]int64   `json:"sequence_state"`   // partition -> next expected seq
	IdempotencyKeys []string           `json:"idempotency_keys"` // Recent keys for LRU warming
	CreatedAt       time.Time          `json:"created_at"`
}

// DepositorSnap is a serializable public position record.
type DepositorSnap struct {
	PositionID   string `json:"position_id"` // hex
	Owner        string `json:"owner"`
	MetadataHash string `json:"metadata_hash"` // hex
	HealthFactor int64  `json:"health_factor"`
	Status       int32  `json:"status"`
	CoinColor    string `json:"coin_color"`
	BorrowLimit  int64  `json:"borrow_limit"`
	Version      int64  `json:"version"`
}

// StakerSnap is a serializable stability pool record.
type StakerSnap struct {
	Owner              string `json:"owner"`
	StakeAmount        int64  `json:"stake_amount"`
	EntryIndex         int64  `json:"entry_index"`
	EntryScalingFactor string `json:"entry_scaling_factor"` // decimal big int
	EffectiveBalance   int64  `json:"effective_balance"`
	StakeReward        int64  `json:"stake_reward"`
	Version            int64  `json:"version"`
}

// GlobalsSnap is a serializable form of the protocol globals.
type GlobalsSnap struct {
	MintCounter   int64  `json:"mint_counter"`
	TotalMint     int64  `json:"total_mint"`
	Nonce         string `json:"nonce"` // hex
	ADAsUSDIndex  int64  `json:"ada_susd_index"`
	ScalingFactor string `json:"scaling_factor"` // decimal big int
}

// MetadataSnap is one private collateral/debt record.
type MetadataSnap struct {
	Owner      string `json:"owner"`
	PositionID string `json:"position_id"` // hex
	Collateral int64  `json:"collateral"`
	Debt       int64  `json:"debt"`
}

// ConfigSnap is the serializable protocol configuration.
type ConfigSnap struct {
	LiquidationThreshold uint8  `json:"liquidation_threshold"`
	LoanToValue          uint8  `json:"loan_to_value"`
	MinCollateralRatio   uint8  `json:"min_collateral_ratio"`
	CollateralAsset      string `json:"collateral_asset"`
	StableAsset          string `json:"stable_asset"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres. Snapshots are taken
// periodically and verified by replaying events from the snapshot sequence
// forward before being trusted for restore.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	sizeBytes := len(data)
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, sizeBytes, snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot. On warm
// restart: load latest snapshot then replay events from snapshot.sequence+1.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No snapshot — cold start
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay: warm restart
// (replay from snapshot) and cold restart (replay all).
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, partition, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.Partition,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil // Empty event log
	}
	return seq.Int64, nil
}
