package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
	"MintVault/internal/effect"
	fpmath "MintVault/internal/math"
	"MintVault/internal/state"
)

// RegisterAsset adds a synthetic asset to the registry. Registration also
// instructs the collateral oracle to start tracking the new asset as
// collateral with a multiplier of 1.0. A duplicate registration fails and
// leaves the first registration untouched.
func (e *Engine) RegisterAsset(ctx context.Context, token string, minCollateralRatio decimal.Decimal) (*Result, error) {
	start := time.Now()
	res, err := e.registerAsset(ctx, token, minCollateralRatio)
	e.observe("register_asset", start, err)
	return res, err
}

func (e *Engine) registerAsset(_ context.Context, token string, minCollateralRatio decimal.Decimal) (*Result, error) {
	if err := state.ValidateRatio(minCollateralRatio); err != nil {
		return nil, err
	}

	cfg, err := e.store.Config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if _, err := e.store.AssetConfig(token); err == nil {
		return nil, state.ErrAlreadyRegistered
	} else if !errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("load asset config: %w", err)
	}

	if err := e.store.PutAssetConfig(&state.AssetConfig{
		Token:              token,
		MinCollateralRatio: minCollateralRatio,
	}); err != nil {
		return nil, fmt.Errorf("store asset config: %w", err)
	}

	e.log.Info().
		Str("asset", token).
		Str("min_collateral_ratio", minCollateralRatio.String()).
		Msg("asset registered")

	res := &Result{Effects: []effect.Instruction{
		effect.RegisterCollateral{
			ID:         uuid.New(),
			Asset:      asset.Token(token),
			Multiplier: fpmath.One,
			Oracle:     cfg.CollateralOracle,
		},
	}}
	res.add("action", "register_asset")
	res.add("asset", token)
	return res, nil
}

// UpdateAsset changes the minimum collateral ratio of a registered asset.
// The floor still applies; migrated assets cannot be updated.
func (e *Engine) UpdateAsset(ctx context.Context, token string, minCollateralRatio decimal.Decimal) (*Result, error) {
	start := time.Now()
	res, err := e.updateAsset(ctx, token, minCollateralRatio)
	e.observe("update_asset", start, err)
	return res, err
}

func (e *Engine) updateAsset(_ context.Context, token string, minCollateralRatio decimal.Decimal) (*Result, error) {
	if err := state.ValidateRatio(minCollateralRatio); err != nil {
		return nil, err
	}

	assetCfg, err := e.store.AssetConfig(token)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotRegistered, token)
		}
		return nil, fmt.Errorf("load asset config: %w", err)
	}
	if assetCfg.Migrated() {
		return nil, ErrAssetMigrated
	}

	assetCfg.MinCollateralRatio = minCollateralRatio
	if err := e.store.PutAssetConfig(assetCfg); err != nil {
		return nil, fmt.Errorf("store asset config: %w", err)
	}

	e.log.Info().
		Str("asset", token).
		Str("min_collateral_ratio", minCollateralRatio.String()).
		Msg("asset updated")

	res := &Result{}
	res.add("action", "update_asset")
	res.add("asset", token)
	return res, nil
}

// RegisterMigration deprecates an asset at a fixed end price. The minimum
// collateral ratio drops to 1.0 so holders can unwind, and the collateral
// oracle is instructed to revoke the asset as collateral. Migration is
// one-way.
func (e *Engine) RegisterMigration(ctx context.Context, token string, endPrice decimal.Decimal) (*Result, error) {
	start := time.Now()
	res, err := e.registerMigration(ctx, token, endPrice)
	e.observe("register_migration", start, err)
	return res, err
}

func (e *Engine) registerMigration(_ context.Context, token string, endPrice decimal.Decimal) (*Result, error) {
	if !endPrice.IsPositive() {
		return nil, fmt.Errorf("end_price must be positive, got %s", endPrice)
	}

	assetCfg, err := e.store.AssetConfig(token)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotRegistered, token)
		}
		return nil, fmt.Errorf("load asset config: %w", err)
	}
	if assetCfg.Migrated() {
		return nil, ErrAssetMigrated
	}

	assetCfg.EndPrice = &endPrice
	assetCfg.MinCollateralRatio = fpmath.One
	if err := e.store.PutAssetConfig(assetCfg); err != nil {
		return nil, fmt.Errorf("store asset config: %w", err)
	}

	e.log.Info().
		Str("asset", token).
		Str("end_price", endPrice.String()).
		Msg("asset migrated")

	res := &Result{Effects: []effect.Instruction{
		effect.RevokeCollateral{ID: uuid.New(), Asset: asset.Token(token)},
	}}
	res.add("action", "migrate_asset")
	res.add("asset", token)
	res.add("end_price", endPrice.String())
	return res, nil
}

// UpdateConfig applies a partial config update. Validation runs before any
// field is written, so a rejected update leaves the config untouched.
func (e *Engine) UpdateConfig(ctx context.Context, update state.ConfigUpdate) (*Result, error) {
	start := time.Now()
	res, err := e.updateConfig(ctx, update)
	e.observe("update_config", start, err)
	return res, err
}

func (e *Engine) updateConfig(_ context.Context, update state.ConfigUpdate) (*Result, error) {
	cfg, err := e.store.Config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := update.Apply(cfg); err != nil {
		return nil, err
	}
	if err := e.store.PutConfig(cfg); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}

	e.log.Info().Msg("config updated")

	res := &Result{}
	res.add("action", "update_config")
	return res, nil
}
