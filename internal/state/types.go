package state

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
	fpmath "MintVault/internal/math"
)

var (
	// MinCollateralRatioFloor is the protocol-wide lower bound for a
	// registered asset's minimum collateral ratio.
	MinCollateralRatioFloor = fpmath.MustParse("1.1")

	ErrFeeRateTooHigh = errors.New("protocol_fee_rate must be smaller than 1")
	ErrRatioBelowFloor = fmt.Errorf(
		"min_collateral_ratio must be bigger or equal than %s", MinCollateralRatioFloor.String())
)

// Config is the singleton protocol configuration. It is loaded from the
// store at the start of an operation and saved back only by the owner-gated
// update path; there is no ambient global.
type Config struct {
	Owner            string          `json:"owner"`
	Oracle           string          `json:"oracle"`
	Collector        string          `json:"collector"`
	CollateralOracle string          `json:"collateral_oracle"`
	Staking          string          `json:"staking"`
	Factory          string          `json:"factory"`
	BaseDenom        string          `json:"base_denom"`
	TokenCodeID      uint64          `json:"token_code_id"`
	ProtocolFeeRate  decimal.Decimal `json:"protocol_fee_rate"`
}

// Validate enforces the economic invariants on the configuration.
func (c *Config) Validate() error {
	if c.ProtocolFeeRate.IsNegative() || c.ProtocolFeeRate.GreaterThanOrEqual(fpmath.One) {
		return ErrFeeRateTooHigh
	}
	return nil
}

// ConfigUpdate is a partial update: nil fields are left untouched.
type ConfigUpdate struct {
	Owner            *string          `json:"owner,omitempty"`
	Oracle           *string          `json:"oracle,omitempty"`
	Collector        *string          `json:"collector,omitempty"`
	CollateralOracle *string          `json:"collateral_oracle,omitempty"`
	Staking          *string          `json:"staking,omitempty"`
	Factory          *string          `json:"factory,omitempty"`
	BaseDenom        *string          `json:"base_denom,omitempty"`
	TokenCodeID      *uint64          `json:"token_code_id,omitempty"`
	ProtocolFeeRate  *decimal.Decimal `json:"protocol_fee_rate,omitempty"`
}

// Apply copies each present field onto the config, validating invariants
// before any mutation so a rejected update leaves the config unchanged.
func (u ConfigUpdate) Apply(c *Config) error {
	if u.ProtocolFeeRate != nil {
		if u.ProtocolFeeRate.IsNegative() || u.ProtocolFeeRate.GreaterThanOrEqual(fpmath.One) {
			return ErrFeeRateTooHigh
		}
	}
	if u.Owner != nil {
		c.Owner = *u.Owner
	}
	if u.Oracle != nil {
		c.Oracle = *u.Oracle
	}
	if u.Collector != nil {
		c.Collector = *u.Collector
	}
	if u.CollateralOracle != nil {
		c.CollateralOracle = *u.CollateralOracle
	}
	if u.Staking != nil {
		c.Staking = *u.Staking
	}
	if u.Factory != nil {
		c.Factory = *u.Factory
	}
	if u.BaseDenom != nil {
		c.BaseDenom = *u.BaseDenom
	}
	if u.TokenCodeID != nil {
		c.TokenCodeID = *u.TokenCodeID
	}
	if u.ProtocolFeeRate != nil {
		c.ProtocolFeeRate = *u.ProtocolFeeRate
	}
	return nil
}

// AssetConfig holds the per-synthetic-asset parameters. EndPrice being set
// marks the asset as migrated: its exchange price is frozen and ratio-raising
// operations against it are rejected.
type AssetConfig struct {
	Token              string           `json:"token"`
	MinCollateralRatio decimal.Decimal  `json:"min_collateral_ratio"`
	EndPrice           *decimal.Decimal `json:"end_price,omitempty"`
}

// Migrated reports whether the asset has been deprecated.
func (a *AssetConfig) Migrated() bool { return a.EndPrice != nil }

// ValidateRatio checks the protocol MCR floor.
func ValidateRatio(minCollateralRatio decimal.Decimal) error {
	if minCollateralRatio.LessThan(MinCollateralRatioFloor) {
		return ErrRatioBelowFloor
	}
	return nil
}

// Position is one open CDP. Collateral and asset identities are fixed at
// open time and never swapped; amounts shrink to zero rather than the record
// being deleted.
type Position struct {
	Idx        uint64      `json:"idx"`
	Owner      string      `json:"owner"`
	Collateral asset.Asset `json:"collateral"`
	Asset      asset.Asset `json:"asset"`
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's record.
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}
