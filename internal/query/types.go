package query

import "github.com/google/uuid"

// PoolOverviewResponse summarizes the system-level pools.
// Balances come from the projection tables; circulation is reported as a
// positive quantity even though the boundary account runs negative.
type PoolOverviewResponse struct {
	ReservePool   int64 `json:"reserve_pool"`   // locked collateral
	StabilityPool int64 `json:"stability_pool"` // staked pegged tokens
	TotalSupply   int64 `json:"total_supply"`   // outstanding issuance
	Circulation   int64 `json:"circulation"`    // issued minus staked/repaid
	AsOfSequence  int64 `json:"as_of_sequence"`
}

// LiquidationHistoryResponse represents a liquidation record for API queries.
type LiquidationHistoryResponse struct {
	LiquidationID    string `json:"liquidation_id"`
	PositionID       string `json:"position_id"`
	CollateralSeized int64  `json:"collateral_seized"`
	DebtRequested    int64  `json:"debt_requested"`
	DebtBurnt        int64  `json:"debt_burnt"`
	Sequence         int64  `json:"sequence"`
	TriggeredAt      int64  `json:"triggered_at"`
}

// RewardHistoryResponse represents a single reward payout for API queries.
type RewardHistoryResponse struct {
	Owner        uuid.UUID `json:"owner"`
	Asset        string    `json:"asset"`
	Amount       int64     `json:"amount"`
	JournalID    string    `json:"journal_id"`
	Sequence     int64     `json:"sequence"`
	Timestamp    int64     `json:"timestamp"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset with non-zero global balance sum.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
