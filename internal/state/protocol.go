package state

import (
	"fmt"

	"github.com/google/uuid"

	"StableLedger/internal/custody"
	"StableLedger/internal/fault"
	"StableLedger/internal/metadata"
	"StableLedger/internal/risk"
)

// Protocol implements the eight public transitions over the position ledger,
// the stability pool, the pool totals, and the globals. Each method is
// all-or-nothing: every precondition is checked before the first mutation,
// so a failed call leaves no partial writes behind.
type Protocol struct {
	positions   *PositionLedger
	pool        *StabilityPool
	globals     *Globals
	liquidator  *LiquidationEngine
	metadata    metadata.Store
	config      *risk.ConfigManager
	reservePool *custody.PoolTotal
	stakePool   *custody.PoolTotal
}

func NewProtocol(config *risk.ConfigManager, metaStore metadata.Store) *Protocol {
	globals := NewGlobals()
	positions := NewPositionLedger()
	cfg := config.Current()

	return &Protocol{
		positions:   positions,
		pool:        NewStabilityPool(globals),
		globals:     globals,
		liquidator:  NewLiquidationEngine(positions, globals, metaStore),
		metadata:    metaStore,
		config:      config,
		reservePool: custody.NewPoolTotal(cfg.CollateralAsset),
		stakePool:   custody.NewPoolTotal(cfg.StableAsset),
	}
}

// Accessors used by the engine for hashing, snapshots, and post-checks.
func (p *Protocol) Positions() *PositionLedger   { return p.positions }
func (p *Protocol) Pool() *StabilityPool         { return p.pool }
func (p *Protocol) Globals() *Globals            { return p.globals }
func (p *Protocol) ReservePool() *custody.PoolTotal { return p.reservePool }
func (p *Protocol) StakePool() *custody.PoolTotal   { return p.stakePool }
func (p *Protocol) Config() risk.ProtocolConfig  { return p.config.Current() }

// Deposit locks a collateral coin under a fresh position id. The caller's
// private metadata declares the collateral; the coin must cover it, and only
// the commitment goes on the public record.
func (p *Protocol) Deposit(
	owner uuid.UUID,
	positionID [32]byte,
	coin custody.Coin,
	meta metadata.MintMetadata,
) (*Depositor, error) {
	if p.positions.Get(positionID) != nil {
		return nil, fmt.Errorf("%w: position %x already exists", fault.ErrPrecondition, positionID[:4])
	}

	cfg := p.config.Current()
	if coin.Color != cfg.CollateralAsset {
		return nil, fmt.Errorf("%w: deposit accepts %s, got %s",
			fault.ErrPrecondition, cfg.CollateralAsset, coin.Color)
	}
	if meta.Collateral <= 0 {
		return nil, fmt.Errorf("%w: declared collateral %d must be positive",
			fault.ErrPrecondition, meta.Collateral)
	}
	if meta.Debt != 0 {
		return nil, fmt.Errorf("%w: deposit metadata must carry zero debt, got %d",
			fault.ErrPrecondition, meta.Debt)
	}
	if meta.Collateral > coin.Value {
		return nil, fmt.Errorf("%w: coin of %d does not cover declared collateral %d",
			fault.ErrSolvency, coin.Value, meta.Collateral)
	}

	borrowLimit, err := risk.BorrowLimit(meta.Collateral, cfg.LoanToValue)
	if err != nil {
		return nil, err
	}

	if err := p.reservePool.MergeIn(coin); err != nil {
		return nil, err
	}
	if err := p.metadata.Put(owner, positionID, meta); err != nil {
		return nil, err
	}

	return p.positions.Create(positionID, owner, metadata.Commitment(meta, positionID), coin.Color, borrowLimit)
}

// MintResult reports a completed mint, including the debt movement the
// ledger needs to journal.
type MintResult struct {
	Coin         custody.Coin
	Depositor    *Depositor
	PreviousDebt int64
	NewDebt      int64
}

// Mint issues amount pegged tokens against the position's collateral,
// replacing the private debt with amount. The minted coin is handed back to
// the caller.
func (p *Protocol) Mint(owner uuid.UUID, positionID [32]byte, amount int64) (*MintResult, error) {
	dep, err := p.positions.Require(positionID, owner)
	if err != nil {
		return nil, err
	}
	if dep.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot mint against %s position",
			fault.ErrPrecondition, dep.Status)
	}

	meta, err := metadata.Verify(p.metadata, owner, positionID, dep.MetadataHash)
	if err != nil {
		return nil, err
	}

	if amount <= 0 {
		return nil, fmt.Errorf("%w: mint amount %d must be positive",
			fault.ErrPrecondition, amount)
	}
	if amount > dep.BorrowLimit {
		return nil, fmt.Errorf("%w: mint of %d exceeds borrow limit %d",
			fault.ErrSolvency, amount, dep.BorrowLimit)
	}

	cfg := p.config.Current()
	health, err := risk.HealthFactor(meta.Collateral, amount, cfg.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	if health < 1 {
		return nil, fmt.Errorf("%w: health factor %d below 1", fault.ErrSolvency, health)
	}

	previousDebt := meta.Debt
	meta.Debt = amount
	if err := p.metadata.Put(owner, positionID, meta); err != nil {
		return nil, err
	}
	dep.MetadataHash = metadata.Commitment(meta, positionID)
	dep.HealthFactor = health
	if err := p.positions.Transition(dep, PositionStatusActive); err != nil {
		return nil, err
	}
	dep.Version++

	p.globals.RecordMint(positionID, amount, previousDebt)

	return &MintResult{
		Coin:         custody.NewCoin(cfg.StableAsset, amount),
		Depositor:    dep,
		PreviousDebt: previousDebt,
		NewDebt:      amount,
	}, nil
}

// Repay burns a pegged-token coin against the position's debt. The whole
// coin is consumed, so its value must not exceed the declared repayment nor
// the outstanding debt.
func (p *Protocol) Repay(
	owner uuid.UUID,
	positionID [32]byte,
	coin custody.Coin,
	amountToRepay int64,
) (*Depositor, error) {
	dep, err := p.positions.Require(positionID, owner)
	if err != nil {
		return nil, err
	}
	if dep.Status != PositionStatusActive {
		return nil, fmt.Errorf("%w: cannot repay %s position", fault.ErrPrecondition, dep.Status)
	}

	meta, err := metadata.Verify(p.metadata, owner, positionID, dep.MetadataHash)
	if err != nil {
		return nil, err
	}

	cfg := p.config.Current()
	if coin.Color != cfg.StableAsset {
		return nil, fmt.Errorf("%w: repay accepts %s, got %s",
			fault.ErrPrecondition, cfg.StableAsset, coin.Color)
	}
	if amountToRepay <= 0 {
		return nil, fmt.Errorf("%w: repay amount %d must be positive",
			fault.ErrPrecondition, amountToRepay)
	}
	if amountToRepay > meta.Debt {
		return nil, fmt.Errorf("%w: repay of %d exceeds debt %d",
			fault.ErrPrecondition, amountToRepay, meta.Debt)
	}
	if coin.Value > amountToRepay {
		return nil, fmt.Errorf("%w: coin of %d exceeds declared repayment %d",
			fault.ErrPrecondition, coin.Value, amountToRepay)
	}
	if coin.IsZero() {
		return nil, fmt.Errorf("%w: repay coin carries no value", fault.ErrPrecondition)
	}

	// The coin is burned in full; custody discards it outside the core.
	burned := coin.Value
	meta.Debt -= burned
	if err := p.metadata.Put(owner, positionID, meta); err != nil {
		return nil, err
	}
	dep.MetadataHash = metadata.Commitment(meta, positionID)

	if err := p.globals.RecordDebtReduction(burned); err != nil {
		return nil, err
	}

	if meta.Debt == 0 {
		if err := p.positions.Transition(dep, PositionStatusClosed); err != nil {
			return nil, err
		}
	} else {
		dep.Version++
	}

	return dep, nil
}

// Withdraw releases collateral from the position at the supplied oracle
// price, bounded by the minimum collateral ratio. Returns the coin sent back
// to the caller.
func (p *Protocol) Withdraw(
	owner uuid.UUID,
	positionID [32]byte,
	amountToWithdraw int64,
	oraclePrice int64,
) (custody.Coin, *Depositor, error) {
	dep, err := p.positions.Require(positionID, owner)
	if err != nil {
		return custody.Coin{}, nil, err
	}
	if dep.Status == PositionStatusLiquidated {
		return custody.Coin{}, nil, fmt.Errorf("%w: cannot withdraw from liquidated position",
			fault.ErrPrecondition)
	}

	meta, err := metadata.Verify(p.metadata, owner, positionID, dep.MetadataHash)
	if err != nil {
		return custody.Coin{}, nil, err
	}

	if amountToWithdraw <= 0 {
		return custody.Coin{}, nil, fmt.Errorf("%w: withdrawal amount %d must be positive",
			fault.ErrPrecondition, amountToWithdraw)
	}
	if oraclePrice <= 0 {
		return custody.Coin{}, nil, fmt.Errorf("%w: oracle price %d must be positive",
			fault.ErrPrecondition, oraclePrice)
	}

	cfg := p.config.Current()
	withdrawable, err := risk.Withdrawable(meta.Collateral, meta.Debt, oraclePrice, cfg.MinCollateralRatio)
	if err != nil {
		return custody.Coin{}, nil, err
	}
	if amountToWithdraw > withdrawable {
		return custody.Coin{}, nil, fmt.Errorf("%w: withdrawal of %d exceeds withdrawable %d",
			fault.ErrSolvency, amountToWithdraw, withdrawable)
	}

	sent, err := p.reservePool.SendOut(amountToWithdraw)
	if err != nil {
		return custody.Coin{}, nil, err
	}

	meta.Collateral -= amountToWithdraw
	if err := p.metadata.Put(owner, positionID, meta); err != nil {
		return custody.Coin{}, nil, err
	}
	dep.MetadataHash = metadata.Commitment(meta, positionID)

	if dep.Status == PositionStatusInactive {
		if err := p.positions.Transition(dep, PositionStatusClosed); err != nil {
			return custody.Coin{}, nil, err
		}
	} else {
		dep.Version++
	}

	return sent, dep, nil
}

// Stake locks a pegged-token coin into the stability pool.
func (p *Protocol) Stake(owner uuid.UUID, coin custody.Coin) (*Staker, error) {
	if p.pool.Get(owner) != nil {
		return nil, fmt.Errorf("%w: %s already staked", fault.ErrPrecondition, owner)
	}

	cfg := p.config.Current()
	if coin.Color != cfg.StableAsset {
		return nil, fmt.Errorf("%w: stake accepts %s, got %s",
			fault.ErrPrecondition, cfg.StableAsset, coin.Color)
	}
	if coin.IsZero() {
		return nil, fmt.Errorf("%w: stake coin carries no value", fault.ErrPrecondition)
	}

	if err := p.stakePool.MergeIn(coin); err != nil {
		return nil, err
	}
	return p.pool.Stake(owner, coin.Value)
}

// CheckReward checkpoints the caller's reward accrual and effective balance.
func (p *Protocol) CheckReward(owner uuid.UUID) (int64, *Staker, error) {
	return p.pool.CheckReward(owner)
}

// WithdrawReward pays out part of the accrued reward from the reserve pool.
func (p *Protocol) WithdrawReward(owner uuid.UUID, amount int64) (custody.Coin, *Staker, error) {
	// Reward is solvency-checked against the accrual first, then the pool
	// send is the final gate; both fail without touching the other.
	if amount > p.reservePool.Value() {
		return custody.Coin{}, nil, fmt.Errorf("%w: reserve pool %d cannot pay reward %d",
			fault.ErrSolvency, p.reservePool.Value(), amount)
	}

	staker, err := p.pool.WithdrawReward(owner, amount)
	if err != nil {
		return custody.Coin{}, nil, err
	}

	sent, err := p.reservePool.SendOut(amount)
	if err != nil {
		return custody.Coin{}, nil, err
	}
	return sent, staker, nil
}

// Liquidate closes an under-collateralized position out-of-band.
func (p *Protocol) Liquidate(positionID [32]byte, collateralAmt, debt int64) (*LiquidationResult, error) {
	return p.liquidator.Liquidate(positionID, collateralAmt, debt, p.stakePool)
}

// UpdateConfig applies an admin parameter update.
func (p *Protocol) UpdateConfig(next risk.ProtocolConfig) error {
	current := p.config.Current()
	if next.CollateralAsset != current.CollateralAsset || next.StableAsset != current.StableAsset {
		return fmt.Errorf("%w: asset types are fixed after launch", fault.ErrPrecondition)
	}
	return p.config.Update(next)
}
