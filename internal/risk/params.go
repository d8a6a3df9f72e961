package risk

import (
	"fmt"

	"StableLedger/internal/fault"
)

// ProtocolConfig holds the admin-mutable risk parameters.
// All percentage fields are whole percents.
type ProtocolConfig struct {
	LiquidationThreshold uint8 // collateral fraction counted toward solvency
	LoanToValue          uint8 // LVT: debt cap per unit collateral
	MinCollateralRatio   uint8 // MCR: floor collateral value per unit debt
	CollateralAsset      string
	StableAsset          string
}

// DefaultConfig returns the launch parameters.
var DefaultConfig = ProtocolConfig{
	LiquidationThreshold: 80,
	LoanToValue:          50,
	MinCollateralRatio:   100,
	CollateralAsset:      "ADA",
	StableAsset:          "sUSD",
}

// Validate bounds every percent field to (0, 100]. The bound is enforced
// here rather than at use sites so a bad admin update is rejected before it
// can influence any position.
func (c ProtocolConfig) Validate() error {
	if err := checkPercent("liquidation_threshold", c.LiquidationThreshold); err != nil {
		return err
	}
	if err := checkPercent("loan_to_value", c.LoanToValue); err != nil {
		return err
	}
	if err := checkPercent("min_collateral_ratio", c.MinCollateralRatio); err != nil {
		return err
	}
	if c.CollateralAsset == "" || c.StableAsset == "" {
		return fmt.Errorf("%w: asset types must be set", fault.ErrPrecondition)
	}
	if c.CollateralAsset == c.StableAsset {
		return fmt.Errorf("%w: collateral and stable asset must differ", fault.ErrPrecondition)
	}
	return nil
}

func checkPercent(name string, v uint8) error {
	if v == 0 || v > 100 {
		return fmt.Errorf("%w: %s must be in (0, 100], got %d", fault.ErrPrecondition, name, v)
	}
	return nil
}

// ConfigManager holds the current protocol configuration.
// Not thread-safe — only accessed from the single-threaded core.
type ConfigManager struct {
	current ProtocolConfig
}

func NewConfigManager() *ConfigManager {
	return &ConfigManager{current: DefaultConfig}
}

func (cm *ConfigManager) Current() ProtocolConfig {
	return cm.current
}

// Update replaces the configuration after validation.
func (cm *ConfigManager) Update(next ProtocolConfig) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("config update rejected: %w", err)
	}
	cm.current = next
	return nil
}
