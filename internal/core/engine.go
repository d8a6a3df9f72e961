package core

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"StableLedger/internal/custody"
	"StableLedger/internal/event"
	"StableLedger/internal/ledger"
	"StableLedger/internal/metadata"
	"StableLedger/internal/observability"
	"StableLedger/internal/risk"
	"StableLedger/internal/state"
)

// DeterministicCore is the single-threaded event processor. It owns the
// protocol state, the zero-sum ledger, and the hash chain; everything else
// in the system feeds it events or consumes its outputs.
type DeterministicCore struct {
	sequence          int64
	hasher            *StateHasher
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	protocol          *state.Protocol
	config            *risk.ConfigManager
	metadata          metadata.Store
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Event      event.Event
	Batch      *ledger.Batch
	StateDelta []byte
}

func NewDeterministicCore(
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metaStore metadata.Store,
	metrics *observability.Metrics,
) *DeterministicCore {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)
	configMgr := risk.NewConfigManager()
	if metaStore == nil {
		metaStore = metadata.NewMemoryStore()
	}
	protocol := state.NewProtocol(configMgr, metaStore)

	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)
	sequenceValidator := NewSequenceValidator()

	return &DeterministicCore{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		balanceTracker:    balanceTracker,
		journalGen:        journalGen,
		validator:         validator,
		protocol:          protocol,
		config:            configMgr,
		metadata:          metaStore,
		idempotency:       idempotencyChecker,
		sequenceValidator: sequenceValidator,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// Protocol exposes the protocol state for queries and tests.
func (c *DeterministicCore) Protocol() *state.Protocol {
	return c.protocol
}

// BalanceTracker exposes the ledger balances for queries and tests.
func (c *DeterministicCore) BalanceTracker() *ledger.BalanceTracker {
	return c.balanceTracker
}

// ProcessEvent is the main processing pipeline
func (c *DeterministicCore) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Sequence validation per source partition
	partition := evt.Partition()
	sourceSequence := evt.SourceSequence()

	if err := c.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Event dispatch. Every handler runs the protocol transition
	// first (all-or-nothing) and only then generates the journal batch, so
	// a rejected transition leaves both the state and the ledger untouched.
	batch, err := c.dispatchEvent(evt)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "rejected").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: Validate and apply the batch. State-only events (reward
	// checks, param updates) produce no journals but still need an envelope
	// in the event log.
	if len(batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}

		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			return fmt.Errorf("apply batch failed: %w", err)
		}
	}

	// Step 5: Compute state digest and extend the hash chain
	stateDigest := c.computeStateDigest(batch)
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Partition:      partition,
		Timestamp:      c.getEventTimestamp(evt),
		SourceSequence: sourceSequence,
		StateHash:      stateHash,
		PrevHash:       c.hasher.GetPrevHash(),
	}

	output := CoreOutput{
		Envelope:   envelope,
		Event:      evt,
		Batch:      batch,
		StateDelta: stateDigest,
	}

	c.sequence++

	// Step 6: Post-checks. An invariant violation here means corrupted
	// state — crash rather than persist it.
	if err := c.postCheckInvariants(evt); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 7: Emit outputs. Persistence uses a BLOCKING send — the core
	// stalls until the persistence worker drains, so no event is lost.
	// Projections use a NON-BLOCKING send with silent drop; workers can
	// rebuild from the event log if they fall behind.
	c.persistChan <- output

	select {
	case c.projectionChan <- output:
	default:
		// Silently dropped — projection will catch up via rebuild
	}

	// Step 8: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	return nil
}

// getEventTimestamp extracts the versioned timestamp from the event. The
// core never calls time.Now() for anything that reaches the hash chain —
// all timestamps are inputs.
func (c *DeterministicCore) getEventTimestamp(evt event.Event) time.Time {
	switch e := evt.(type) {
	case *event.DepositSubmitted:
		return time.UnixMicro(e.Timestamp)
	case *event.MintRequested:
		return time.UnixMicro(e.Timestamp)
	case *event.WithdrawRequested:
		return time.UnixMicro(e.Timestamp)
	case *event.RepaySubmitted:
		return time.UnixMicro(e.Timestamp)
	case *event.StakeSubmitted:
		return time.UnixMicro(e.Timestamp)
	case *event.RewardCheckRequested:
		return time.UnixMicro(e.Timestamp)
	case *event.RewardWithdrawRequested:
		return time.UnixMicro(e.Timestamp)
	case *event.LiquidationRequested:
		return time.UnixMicro(e.Timestamp)
	case *event.ProtocolParamUpdate:
		return time.UnixMicro(e.Timestamp)
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T — deterministic core cannot use wall-clock time", evt))
	}
}

// computeStateDigest creates canonical bytes for the state hash: the
// post-event balances of every account the batch touched, sorted by account
// path, followed by the protocol globals (nonce, counters, dilution
// accumulators). The globals are always included because most events move
// them even when no journal is produced.
func (c *DeterministicCore) computeStateDigest(batch *ledger.Batch) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64+128)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		digest = appendInt64LE(digest, balance)
	}

	digest = append(digest, c.protocol.Globals().CanonicalBytes()...)

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates invariants after batch application
func (c *DeterministicCore) postCheckInvariants(evt event.Event) error {
	cfg := c.config.Current()
	collateralID, _ := ledger.GetAssetID(cfg.CollateralAsset)
	stableID, _ := ledger.GetAssetID(cfg.StableAsset)

	// The ledger pool accounts and the custody totals are written by
	// different code paths; every event that touches either must leave
	// them in agreement.
	switch evt.(type) {
	case *event.DepositSubmitted, *event.WithdrawRequested,
		*event.StakeSubmitted, *event.RewardWithdrawRequested,
		*event.LiquidationRequested:
		if err := c.validator.ValidatePoolBacking(
			collateralID, c.protocol.ReservePool().Value(),
			stableID, c.protocol.StakePool().Value(),
		); err != nil {
			return fmt.Errorf("post-check pool backing: %w", err)
		}
		if err := c.validator.ValidatePoolsNonNegative(collateralID, stableID); err != nil {
			return fmt.Errorf("post-check pool sign: %w", err)
		}
	}

	// Outstanding issuance per the ledger must equal the protocol's
	// totalMint counter: both are debited by mint and credited by repay
	// burns and liquidation burns.
	switch evt.(type) {
	case *event.MintRequested, *event.RepaySubmitted, *event.LiquidationRequested:
		if err := c.validator.ValidateSupplyMatches(stableID, c.protocol.Globals().TotalMint); err != nil {
			return fmt.Errorf("post-check supply: %w", err)
		}
	}

	// Periodic global zero-sum check over every account
	if c.sequence > 0 && c.sequence%1000 == 0 {
		totals := c.balanceTracker.ComputeGlobalBalance()
		for assetID, total := range totals {
			if total != 0 {
				return fmt.Errorf("post-check: global balance non-zero for asset %d: %d (at seq %d)",
					assetID, total, c.sequence)
			}
		}
	}

	return nil
}

// emptyBatch is the envelope-only batch for state-only events.
func (c *DeterministicCore) emptyBatch(eventRef string, timestamp int64) *ledger.Batch {
	return &ledger.Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  c.sequence,
		Timestamp: timestamp,
		Journals:  []ledger.Journal{},
	}
}

func (c *DeterministicCore) handleDepositSubmitted(evt *event.DepositSubmitted) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.CollateralAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.CollateralAsset)
	}

	coin := custody.NewCoin(cfg.CollateralAsset, evt.CoinValue)
	meta := metadata.MintMetadata{Collateral: evt.Collateral}

	if _, err := c.protocol.Deposit(evt.Owner, evt.PositionID, coin, meta); err != nil {
		return nil, err
	}

	// The full coin enters the reserve pool; the declared collateral stays
	// private behind the commitment.
	return c.journalGen.GenerateDeposit(evt.IdempotencyKey(), evt.CoinValue, assetID, evt.Timestamp)
}

func (c *DeterministicCore) handleMintRequested(evt *event.MintRequested) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.StableAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.StableAsset)
	}

	res, err := c.protocol.Mint(evt.Owner, evt.PositionID, evt.Amount)
	if err != nil {
		return nil, err
	}

	// A mint replaces the position's debt, so the supply moves by the
	// delta against the previous private debt.
	delta := res.NewDebt - res.PreviousDebt
	switch {
	case delta > 0:
		return c.journalGen.GenerateMint(evt.IdempotencyKey(), delta, assetID, evt.Timestamp)
	case delta < 0:
		return c.journalGen.GenerateRepayBurn(evt.IdempotencyKey(), -delta, assetID, evt.Timestamp)
	default:
		return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp), nil
	}
}

func (c *DeterministicCore) handleWithdrawRequested(evt *event.WithdrawRequested) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.CollateralAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.CollateralAsset)
	}

	sent, _, err := c.protocol.Withdraw(evt.Owner, evt.PositionID, evt.Amount, evt.OraclePrice)
	if err != nil {
		return nil, err
	}

	return c.journalGen.GenerateWithdrawal(evt.IdempotencyKey(), sent.Value, assetID, evt.Timestamp)
}

func (c *DeterministicCore) handleRepaySubmitted(evt *event.RepaySubmitted) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.StableAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.StableAsset)
	}

	coin := custody.NewCoin(cfg.StableAsset, evt.CoinValue)
	if _, err := c.protocol.Repay(evt.Owner, evt.PositionID, coin, evt.Amount); err != nil {
		return nil, err
	}

	// The whole coin is burned regardless of the declared repayment.
	return c.journalGen.GenerateRepayBurn(evt.IdempotencyKey(), evt.CoinValue, assetID, evt.Timestamp)
}

func (c *DeterministicCore) handleStakeSubmitted(evt *event.StakeSubmitted) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.StableAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.StableAsset)
	}

	coin := custody.NewCoin(cfg.StableAsset, evt.CoinValue)
	if _, err := c.protocol.Stake(evt.Owner, coin); err != nil {
		return nil, err
	}

	return c.journalGen.GenerateStake(evt.IdempotencyKey(), evt.CoinValue, assetID, evt.Timestamp)
}

// handleRewardCheckRequested checkpoints the staker's accrual. State-only:
// no value moves until the reward is withdrawn.
func (c *DeterministicCore) handleRewardCheckRequested(evt *event.RewardCheckRequested) (*ledger.Batch, error) {
	if _, _, err := c.protocol.CheckReward(evt.Owner); err != nil {
		return nil, err
	}

	return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp), nil
}

func (c *DeterministicCore) handleRewardWithdrawRequested(evt *event.RewardWithdrawRequested) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.CollateralAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.CollateralAsset)
	}

	// Rewards are seized collateral, so the payout leaves the reserve pool
	// in the collateral asset.
	sent, _, err := c.protocol.WithdrawReward(evt.Owner, evt.Amount)
	if err != nil {
		return nil, err
	}

	return c.journalGen.GenerateRewardPayout(evt.Owner, evt.IdempotencyKey(), sent.Value, assetID, evt.Timestamp)
}

func (c *DeterministicCore) handleLiquidationRequested(evt *event.LiquidationRequested) (*ledger.Batch, error) {
	cfg := c.config.Current()
	assetID, ok := ledger.GetAssetID(cfg.StableAsset)
	if !ok {
		return nil, fmt.Errorf("unknown asset: %s", cfg.StableAsset)
	}

	res, err := c.protocol.Liquidate(evt.PositionID, evt.CollateralAmt, evt.Debt)
	if err != nil {
		return nil, err
	}

	// The debt burns out of the stability pool; the seized collateral
	// stays in the reserve pool and is claimed later via reward payouts.
	return c.journalGen.GenerateLiquidationBurn(evt.IdempotencyKey(), res.Debt, assetID, evt.Timestamp)
}

// handleProtocolParamUpdate replaces the admin-mutable risk parameters.
// Asset types are fixed after launch and absent from the event. Existing
// positions are not re-checked here — the new parameters bind from the next
// operation on each position.
func (c *DeterministicCore) handleProtocolParamUpdate(evt *event.ProtocolParamUpdate) (*ledger.Batch, error) {
	current := c.config.Current()
	next := risk.ProtocolConfig{
		LiquidationThreshold: evt.LiquidationThreshold,
		LoanToValue:          evt.LoanToValue,
		MinCollateralRatio:   evt.MinCollateralRatio,
		CollateralAsset:      current.CollateralAsset,
		StableAsset:          current.StableAsset,
	}

	if err := c.protocol.UpdateConfig(next); err != nil {
		return nil, fmt.Errorf("param update rejected: %w", err)
	}

	return c.emptyBatch(evt.IdempotencyKey(), evt.Timestamp), nil
}

func (c *DeterministicCore) dispatchEvent(evt event.Event) (*ledger.Batch, error) {
	switch e := evt.(type) {
	case *event.DepositSubmitted:
		return c.handleDepositSubmitted(e)
	case *event.MintRequested:
		return c.handleMintRequested(e)
	case *event.WithdrawRequested:
		return c.handleWithdrawRequested(e)
	case *event.RepaySubmitted:
		return c.handleRepaySubmitted(e)
	case *event.StakeSubmitted:
		return c.handleStakeSubmitted(e)
	case *event.RewardCheckRequested:
		return c.handleRewardCheckRequested(e)
	case *event.RewardWithdrawRequested:
		return c.handleRewardWithdrawRequested(e)
	case *event.LiquidationRequested:
		return c.handleLiquidationRequested(e)
	case *event.ProtocolParamUpdate:
		return c.handleProtocolParamUpdate(e)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// --- Snapshot Restore & Startup Methods ---

// GlobalsSnapshot is the serializable form of the protocol globals.
type GlobalsSnapshot struct {
	MintCounter   int64
	TotalMint     int64
	Nonce         [32]byte
	ADAsUSDIndex  int64
	ScalingFactor *big.Int
}

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	PrevHash        [32]byte
	Balances        map[ledger.AccountKey]int64
	Depositors      []*state.Depositor
	Stakers         []*state.Staker
	Globals         GlobalsSnapshot
	Metadata        []metadata.Entry
	ReservePool     int64
	StakePool       int64
	Config          risk.ProtocolConfig
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state from a snapshot.
// On warm restart: load the latest snapshot, then replay events after it.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	// Next sequence to assign
	c.sequence = snap.Sequence + 1

	// Restore state hash chain
	c.hasher.SetPrevHash(snap.StateHash)

	// Restore balances
	for key, balance := range snap.Balances {
		c.balanceTracker.SetBalance(key, balance)
	}

	// Restore positions and stakers
	for _, dep := range snap.Depositors {
		c.protocol.Positions().Set(dep)
	}
	for _, staker := range snap.Stakers {
		c.protocol.Pool().Set(staker)
	}

	// Restore globals
	g := c.protocol.Globals()
	g.MintCounter = snap.Globals.MintCounter
	g.TotalMint = snap.Globals.TotalMint
	g.Nonce = snap.Globals.Nonce
	g.ADAsUSDIndex = snap.Globals.ADAsUSDIndex
	if snap.Globals.ScalingFactor != nil {
		g.ScalingFactor = new(big.Int).Set(snap.Globals.ScalingFactor)
	}

	// Restore private metadata when the store supports bulk load
	if ms, ok := c.metadata.(*metadata.MemoryStore); ok {
		ms.RestoreEntries(snap.Metadata)
	}

	// Restore custody totals
	c.protocol.ReservePool().SetValue(snap.ReservePool)
	c.protocol.StakePool().SetValue(snap.StakePool)

	// Restore protocol config
	if err := c.config.Update(snap.Config); err != nil {
		panic(fmt.Sprintf("FATAL: snapshot carries invalid config: %v", err))
	}

	// Restore sequence validator state
	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.RestorePartition(partition, nextSeq)
	}

	// Restore journal generator sequence
	c.journalGen.SetSequence(snap.Sequence)
}

// WarmLRU loads recent idempotency keys into the LRU cache so redeliveries
// skip the cold-path DB lookup.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number.
func (c *DeterministicCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	g := c.protocol.Globals()

	var entries []metadata.Entry
	if ms, ok := c.metadata.(*metadata.MemoryStore); ok {
		entries = ms.Entries()
	}

	return &SnapshotState{
		Sequence:   c.sequence - 1, // Last processed sequence
		StateHash:  c.hasher.GetPrevHash(),
		Balances:   c.balanceTracker.Snapshot(),
		Depositors: c.protocol.Positions().All(),
		Stakers:    c.protocol.Pool().All(),
		Globals: GlobalsSnapshot{
			MintCounter:   g.MintCounter,
			TotalMint:     g.TotalMint,
			Nonce:         g.Nonce,
			ADAsUSDIndex:  g.ADAsUSDIndex,
			ScalingFactor: new(big.Int).Set(g.ScalingFactor),
		},
		Metadata:        entries,
		ReservePool:     c.protocol.ReservePool().Value(),
		StakePool:       c.protocol.StakePool().Value(),
		Config:          c.config.Current(),
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
