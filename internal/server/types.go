package server

import (
	"fmt"

	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
	"MintVault/internal/effect"
	"MintVault/internal/engine"
	"MintVault/internal/state"
)

// coin is the wire form of an attached native fund.
type coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

// wireAsset is the wire form of an asset identity plus amount.
type wireAsset struct {
	Info   asset.Info      `json:"info"`
	Amount decimal.Decimal `json:"amount"`
}

func (w wireAsset) toAsset() asset.Asset {
	return asset.Asset{Info: w.Info, Amount: w.Amount}
}

type openPositionRequest struct {
	Collateral      wireAsset       `json:"collateral"`
	AssetToken      string          `json:"asset_token"`
	CollateralRatio decimal.Decimal `json:"collateral_ratio"`
	Funds           []coin          `json:"funds"`
}

type depositRequest struct {
	Collateral wireAsset `json:"collateral"`
	Funds      []coin    `json:"funds"`
}

type withdrawRequest struct {
	Collateral *wireAsset `json:"collateral,omitempty"`
}

type mintRequest struct {
	Asset wireAsset `json:"asset"`
}

// tokenReceiveRequest is the token-transfer callback. The token contract is
// the authenticated sender of the request itself; Sender here is the user
// whose tokens were moved, and Amount is the amount actually received.
type tokenReceiveRequest struct {
	Sender string          `json:"sender"`
	Amount decimal.Decimal `json:"amount"`
	Msg    tokenHook       `json:"msg"`
}

// tokenHook selects what the received tokens are for. Exactly one branch
// is set.
type tokenHook struct {
	OpenPosition *openHook    `json:"open_position,omitempty"`
	Deposit      *depositHook `json:"deposit,omitempty"`
	Burn         *burnHook    `json:"burn,omitempty"`
}

type openHook struct {
	AssetToken      string          `json:"asset_token"`
	CollateralRatio decimal.Decimal `json:"collateral_ratio"`
}

type depositHook struct {
	PositionIdx uint64 `json:"position_idx"`
}

type burnHook struct {
	PositionIdx uint64 `json:"position_idx"`
}

type updateConfigRequest struct {
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

func (u updateConfigRequest) toUpdate() state.ConfigUpdate {
	return state.ConfigUpdate{
		Owner:            u.Owner,
		Oracle:           u.Oracle,
		Collector:        u.Collector,
		CollateralOracle: u.CollateralOracle,
		Staking:          u.Staking,
		Factory:          u.Factory,
		BaseDenom:        u.BaseDenom,
		TokenCodeID:      u.TokenCodeID,
		ProtocolFeeRate:  u.ProtocolFeeRate,
	}
}

type registerAssetRequest struct {
	Token              string          `json:"token"`
	MinCollateralRatio decimal.Decimal `json:"min_collateral_ratio"`
}

type updateAssetRequest struct {
	MinCollateralRatio decimal.Decimal `json:"min_collateral_ratio"`
}

type migrateAssetRequest struct {
	EndPrice decimal.Decimal `json:"end_price"`
}

type operationResponse struct {
	Attributes []engine.Attribute `json:"attributes"`
	Effects    []effectEnvelope   `json:"effects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// effectEnvelope wraps an instruction with its kind discriminator for the
// wire.
type effectEnvelope struct {
	Kind        effect.Kind        `json:"kind"`
	Instruction effect.Instruction `json:"instruction"`
}

func encodeEffects(instructions []effect.Instruction) []effectEnvelope {
	out := make([]effectEnvelope, 0, len(instructions))
	for _, inst := range instructions {
		out = append(out, effectEnvelope{Kind: inst.Kind(), Instruction: inst})
	}
	return out
}

// verifyNativeFunds checks that the declared native collateral matches the
// attached funds exactly: same denom, same amount, nothing extra.
func verifyNativeFunds(collateral asset.Asset, funds []coin) error {
	if !collateral.Info.IsNative() {
		return fmt.Errorf("%w: token collateral must arrive through the token transfer callback", engine.ErrUnauthorized)
	}
	if len(funds) != 1 {
		return fmt.Errorf("%w: expected exactly one attached fund", engine.ErrWrongCollateral)
	}
	if funds[0].Denom != collateral.Info.Denom || !funds[0].Amount.Equal(collateral.Amount) {
		return fmt.Errorf("%w: attached funds %s%s do not match declared collateral %s",
			engine.ErrWrongCollateral, funds[0].Amount, funds[0].Denom, collateral.String())
	}
	return nil
}
