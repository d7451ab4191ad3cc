// Package engine implements the minting core: positions are opened against
// priced collateral, synthetic assets are minted and burned against them,
// and every mutating operation re-checks the minimum collateral ratio with
// fresh oracle prices. The engine itself is not safe for concurrent use;
// the dispatch layer serializes calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
	"MintVault/internal/effect"
	fpmath "MintVault/internal/math"
	"MintVault/internal/observability"
	"MintVault/internal/oracle"
	"MintVault/internal/state"
)

// Attribute is one observable key/value pair of an operation result.
// Amounts are rendered with their identity suffix, e.g. "666666asset0000".
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result carries the attributes and outbound effect instructions of one
// successful operation. Effects are emitted only after all state writes
// succeeded; a failed operation produces neither.
type Result struct {
	Attributes []Attribute          `json:"attributes"`
	Effects    []effect.Instruction `json:"-"`
}

func (r *Result) add(key, value string) {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
}

// Engine executes minting operations against a Store, pricing everything
// through the two oracles. Prices are fetched fresh per call and never
// cached.
type Engine struct {
	store       state.Store
	prices      oracle.PriceOracle
	collaterals oracle.CollateralOracle
	log         zerolog.Logger
	metrics     *observability.Metrics
}

// New wires an Engine. The metrics handle must be non-nil.
func New(store state.Store, prices oracle.PriceOracle, collaterals oracle.CollateralOracle, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:       store,
		prices:      prices,
		collaterals: collaterals,
		log:         observability.NewLogger("engine"),
		metrics:     metrics,
	}
}

// pricing is the oracle view an operation runs under. It is resolved once,
// up front, so an oracle failure aborts before any state write.
type pricing struct {
	assetPrice decimal.Decimal
	collateral oracle.CollateralInfo
	minRatio   decimal.Decimal
}

// loadPricing resolves the asset price, collateral quote and effective
// minimum collateral ratio. A migrated asset prices at its end price with
// the ratio floor relaxed to 1.0 (set at migration time).
func (e *Engine) loadPricing(ctx context.Context, cfg *state.Config, assetCfg *state.AssetConfig, collateral asset.Info) (pricing, error) {
	var p pricing
	p.minRatio = assetCfg.MinCollateralRatio

	if assetCfg.Migrated() {
		p.assetPrice = *assetCfg.EndPrice
	} else {
		price, err := e.prices.Price(ctx, assetCfg.Token)
		if err != nil {
			return pricing{}, fmt.Errorf("price %s: %w", assetCfg.Token, err)
		}
		p.assetPrice = price
	}

	if collateral.IsNative() && collateral.Denom == cfg.BaseDenom {
		// The base currency is the unit of account.
		p.collateral = oracle.CollateralInfo{Price: fpmath.One, Multiplier: fpmath.One}
		return p, nil
	}

	info, err := e.collaterals.Collateral(ctx, collateral.ID())
	if err != nil {
		return pricing{}, fmt.Errorf("collateral %s: %w", collateral.ID(), err)
	}
	p.collateral = info
	return p, nil
}

// collateralValue is collateral.amount x price x multiplier.
func (p pricing) collateralValue(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.collateral.Price).Mul(p.collateral.Multiplier)
}

// ratioSatisfied checks assetValue x minRatio <= collateralValue without
// dividing, so the exact boundary passes and zero minted is always safe.
func (p pricing) ratioSatisfied(collateralAmount, assetAmount decimal.Decimal) bool {
	if assetAmount.IsZero() {
		return true
	}
	required := assetAmount.Mul(p.assetPrice).Mul(p.minRatio)
	return required.LessThanOrEqual(p.collateralValue(collateralAmount))
}

// OpenPosition locks collateral and mints the synthetic asset at the
// requested collateral ratio. The minted amount is truncated toward zero;
// the remainder stays with the position as extra collateral headroom.
func (e *Engine) OpenPosition(ctx context.Context, sender string, collateral asset.Asset, assetToken string, ratio decimal.Decimal) (*Result, error) {
	start := time.Now()
	res, err := e.openPosition(ctx, sender, collateral, assetToken, ratio)
	e.observe("open_position", start, err)
	return res, err
}

func (e *Engine) openPosition(ctx context.Context, sender string, collateral asset.Asset, assetToken string, ratio decimal.Decimal) (*Result, error) {
	if err := collateral.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongCollateral, err)
	}
	if collateral.IsZero() {
		return nil, ErrWrongCollateral
	}

	cfg, err := e.store.Config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	assetCfg, err := e.store.AssetConfig(assetToken)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotRegistered, assetToken)
		}
		return nil, fmt.Errorf("load asset config: %w", err)
	}
	if assetCfg.Migrated() {
		return nil, ErrAssetMigrated
	}

	if ratio.LessThan(assetCfg.MinCollateralRatio) {
		return nil, ErrOpenBelowFloor
	}

	p, err := e.loadPricing(ctx, cfg, assetCfg, collateral.Info)
	if err != nil {
		return nil, err
	}
	if p.collateral.Revoked {
		return nil, ErrCollateralRevoked
	}

	// mint = trunc(collateral value / (asset price x requested ratio))
	mintAmount, err := fpmath.DivTruncate(p.collateralValue(collateral.Amount), p.assetPrice.Mul(ratio))
	if err != nil {
		return nil, fmt.Errorf("compute mint amount: %w", err)
	}
	if mintAmount.IsZero() {
		return nil, ErrZeroMint
	}

	idx, err := e.store.AllocatePositionIdx()
	if err != nil {
		return nil, fmt.Errorf("allocate position idx: %w", err)
	}

	minted := asset.Asset{Info: asset.Token(assetToken), Amount: mintAmount}
	pos := &state.Position{
		Idx:        idx,
		Owner:      sender,
		Collateral: collateral,
		Asset:      minted,
	}
	if err := e.store.PutPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	e.metrics.OpenPositions.Inc()
	e.metrics.MintedTotal.WithLabelValues(assetToken).Add(toFloat(mintAmount))
	e.log.Info().
		Uint64("idx", idx).
		Str("owner", sender).
		Str("collateral", collateral.String()).
		Str("minted", minted.String()).
		Msg("position opened")

	res := &Result{Effects: []effect.Instruction{
		effect.MintToken{ID: uuid.New(), Token: assetToken, Recipient: sender, Amount: mintAmount},
	}}
	res.add("action", "open_position")
	res.add("position_idx", fmt.Sprintf("%d", idx))
	res.add("mint_amount", minted.String())
	res.add("collateral_amount", collateral.String())
	return res, nil
}

// Deposit adds collateral to an existing position. Any caller may deposit;
// identity checks are the dispatch layer's job, funds checks included. No
// oracle query runs since adding collateral can only raise the ratio.
func (e *Engine) Deposit(ctx context.Context, idx uint64, collateral asset.Asset) (*Result, error) {
	start := time.Now()
	res, err := e.deposit(ctx, idx, collateral)
	e.observe("deposit", start, err)
	return res, err
}

func (e *Engine) deposit(_ context.Context, idx uint64, collateral asset.Asset) (*Result, error) {
	if err := collateral.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongCollateral, err)
	}

	pos, err := e.store.Position(idx)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", idx, err)
	}

	if !collateral.Info.Equal(pos.Collateral.Info) || collateral.IsZero() {
		return nil, ErrWrongCollateral
	}

	assetCfg, err := e.store.AssetConfig(pos.Asset.Info.Token)
	if err != nil {
		return nil, fmt.Errorf("load asset config: %w", err)
	}
	if assetCfg.Migrated() {
		return nil, ErrAssetMigrated
	}

	pos.Collateral.Amount = pos.Collateral.Amount.Add(collateral.Amount)
	if err := e.store.PutPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	e.log.Info().
		Uint64("idx", idx).
		Str("deposit", collateral.String()).
		Msg("collateral deposited")

	res := &Result{}
	res.add("action", "deposit")
	res.add("position_idx", fmt.Sprintf("%d", idx))
	res.add("deposit_amount", collateral.String())
	return res, nil
}

// Withdraw releases collateral from a position back to its owner. With an
// explicit amount the post-withdraw ratio must still satisfy the minimum;
// the exact boundary is allowed. With a nil amount the maximum safe amount
// is computed in closed form: the position must retain
// ceil(asset value x minRatio / (collateral price x multiplier)) units.
func (e *Engine) Withdraw(ctx context.Context, sender string, idx uint64, collateral *asset.Asset) (*Result, error) {
	start := time.Now()
	res, err := e.withdraw(ctx, sender, idx, collateral)
	e.observe("withdraw", start, err)
	return res, err
}

func (e *Engine) withdraw(ctx context.Context, sender string, idx uint64, collateral *asset.Asset) (*Result, error) {
	pos, err := e.store.Position(idx)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", idx, err)
	}
	if pos.Owner != sender {
		return nil, ErrUnauthorized
	}

	if collateral != nil {
		if err := collateral.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWrongCollateral, err)
		}
		if !collateral.Info.Equal(pos.Collateral.Info) {
			return nil, ErrWrongCollateral
		}
		if collateral.Amount.GreaterThan(pos.Collateral.Amount) {
			return nil, ErrWithdrawTooMuch
		}
	}

	cfg, err := e.store.Config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	assetCfg, err := e.store.AssetConfig(pos.Asset.Info.Token)
	if err != nil {
		return nil, fmt.Errorf("load asset config: %w", err)
	}

	p, err := e.loadPricing(ctx, cfg, assetCfg, pos.Collateral.Info)
	if err != nil {
		return nil, err
	}

	var amount decimal.Decimal
	if collateral != nil {
		amount = collateral.Amount
		remaining := pos.Collateral.Amount.Sub(amount)
		if !p.ratioSatisfied(remaining, pos.Asset.Amount) {
			return nil, ErrWithdrawOverLimit
		}
	} else {
		required, err := fpmath.DivCeil(
			pos.Asset.Amount.Mul(p.assetPrice).Mul(p.minRatio),
			p.collateral.Price.Mul(p.collateral.Multiplier),
		)
		if err != nil {
			return nil, fmt.Errorf("compute required collateral: %w", err)
		}
		if required.GreaterThanOrEqual(pos.Collateral.Amount) {
			return nil, ErrWithdrawOverLimit
		}
		amount = pos.Collateral.Amount.Sub(required)
	}
	if amount.IsZero() {
		return nil, ErrWithdrawOverLimit
	}

	pos.Collateral.Amount = pos.Collateral.Amount.Sub(amount)
	if err := e.store.PutPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	withdrawn := asset.Asset{Info: pos.Collateral.Info, Amount: amount}
	e.log.Info().
		Uint64("idx", idx).
		Str("owner", sender).
		Str("withdrawn", withdrawn.String()).
		Msg("collateral withdrawn")

	res := &Result{Effects: []effect.Instruction{effect.Transfer(withdrawn, sender)}}
	res.add("action", "withdraw")
	res.add("position_idx", fmt.Sprintf("%d", idx))
	res.add("withdraw_amount", withdrawn.String())
	return res, nil
}

// Mint issues additional synthetic units against an existing position. The
// post-mint ratio must still satisfy the minimum; migrated assets reject.
func (e *Engine) Mint(ctx context.Context, sender string, idx uint64, mint asset.Asset) (*Result, error) {
	start := time.Now()
	res, err := e.mint(ctx, sender, idx, mint)
	e.observe("mint", start, err)
	return res, err
}

func (e *Engine) mint(ctx context.Context, sender string, idx uint64, mint asset.Asset) (*Result, error) {
	if err := mint.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongAsset, err)
	}

	pos, err := e.store.Position(idx)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", idx, err)
	}
	if pos.Owner != sender {
		return nil, ErrUnauthorized
	}
	if !mint.Info.Equal(pos.Asset.Info) || mint.IsZero() {
		return nil, ErrWrongAsset
	}

	cfg, err := e.store.Config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	assetCfg, err := e.store.AssetConfig(pos.Asset.Info.Token)
	if err != nil {
		return nil, fmt.Errorf("load asset config: %w", err)
	}
	if assetCfg.Migrated() {
		return nil, ErrAssetMigrated
	}

	p, err := e.loadPricing(ctx, cfg, assetCfg, pos.Collateral.Info)
	if err != nil {
		return nil, err
	}
	if p.collateral.Revoked {
		return nil, ErrCollateralRevoked
	}

	newAmount := pos.Asset.Amount.Add(mint.Amount)
	if !p.ratioSatisfied(pos.Collateral.Amount, newAmount) {
		return nil, ErrMintOverLimit
	}

	pos.Asset.Amount = newAmount
	if err := e.store.PutPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	e.metrics.MintedTotal.WithLabelValues(pos.Asset.Info.Token).Add(toFloat(mint.Amount))
	e.log.Info().
		Uint64("idx", idx).
		Str("owner", sender).
		Str("minted", mint.String()).
		Msg("asset minted")

	res := &Result{Effects: []effect.Instruction{
		effect.MintToken{ID: uuid.New(), Token: pos.Asset.Info.Token, Recipient: sender, Amount: mint.Amount},
	}}
	res.add("action", "mint")
	res.add("position_idx", fmt.Sprintf("%d", idx))
	res.add("mint_amount", mint.String())
	return res, nil
}

// Burn retires synthetic units against a position and charges the protocol
// fee in collateral. The burned amount is the token amount actually
// received through the transfer callback; the caller must be the position
// owner. Burn never releases principal, it only reduces debt. Migrated
// assets burn at their end price.
func (e *Engine) Burn(ctx context.Context, sender string, idx uint64, burn asset.Asset) (*Result, error) {
	start := time.Now()
	res, err := e.burn(ctx, sender, idx, burn)
	e.observe("burn", start, err)
	return res, err
}

func (e *Engine) burn(ctx context.Context, sender string, idx uint64, burn asset.Asset) (*Result, error) {
	if err := burn.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongAsset, err)
	}

	pos, err := e.store.Position(idx)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", idx, err)
	}
	if pos.Owner != sender {
		return nil, ErrUnauthorized
	}
	if !burn.Info.Equal(pos.Asset.Info) || burn.IsZero() {
		return nil, ErrWrongAsset
	}
	if burn.Amount.GreaterThan(pos.Asset.Amount) {
		return nil, ErrBurnOverMinted
	}

	cfg, err := e.store.Config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	assetCfg, err := e.store.AssetConfig(pos.Asset.Info.Token)
	if err != nil {
		return nil, fmt.Errorf("load asset config: %w", err)
	}

	p, err := e.loadPricing(ctx, cfg, assetCfg, pos.Collateral.Info)
	if err != nil {
		return nil, err
	}

	// fee = trunc(burned value x fee rate / collateral price), capped at the
	// collateral actually held. The multiplier never applies to fees.
	fee, err := fpmath.DivTruncate(
		burn.Amount.Mul(p.assetPrice).Mul(cfg.ProtocolFeeRate),
		p.collateral.Price,
	)
	if err != nil {
		return nil, fmt.Errorf("compute protocol fee: %w", err)
	}
	if fee.GreaterThan(pos.Collateral.Amount) {
		fee = pos.Collateral.Amount
	}

	pos.Asset.Amount = pos.Asset.Amount.Sub(burn.Amount)
	pos.Collateral.Amount = pos.Collateral.Amount.Sub(fee)
	if err := e.store.PutPosition(pos); err != nil {
		return nil, fmt.Errorf("store position: %w", err)
	}

	feeAsset := asset.Asset{Info: pos.Collateral.Info, Amount: fee}
	effects := []effect.Instruction{
		effect.BurnToken{ID: uuid.New(), Token: pos.Asset.Info.Token, Amount: burn.Amount},
	}
	if !fee.IsZero() {
		effects = append(effects, effect.Transfer(feeAsset, cfg.Collector))
		e.metrics.FeesCollected.WithLabelValues(pos.Collateral.Info.ID()).Add(toFloat(fee))
	}

	e.metrics.BurnedTotal.WithLabelValues(pos.Asset.Info.Token).Add(toFloat(burn.Amount))
	e.log.Info().
		Uint64("idx", idx).
		Str("owner", sender).
		Str("burned", burn.String()).
		Str("protocol_fee", feeAsset.String()).
		Msg("asset burned")

	res := &Result{Effects: effects}
	res.add("action", "burn")
	res.add("position_idx", fmt.Sprintf("%d", idx))
	res.add("burn_amount", burn.String())
	res.add("protocol_fee", feeAsset.String())
	return res, nil
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if err != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
		e.log.Debug().Str("op", op).Err(err).Msg("operation rejected")
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, state.ErrNotFound):
		return "not_found"
	case errors.Is(err, oracle.ErrUnavailable) || errors.Is(err, oracle.ErrUnknownAsset):
		return "oracle"
	case errors.Is(err, fpmath.ErrDivideByZero):
		return "arithmetic"
	case errors.Is(err, ErrOpenBelowFloor) || errors.Is(err, ErrMintOverLimit) || errors.Is(err, ErrWithdrawOverLimit):
		return "ratio"
	default:
		return "validation"
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
