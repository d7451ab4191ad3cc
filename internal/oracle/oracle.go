// Package oracle provides price lookups for synthetic assets and collateral.
// Prices are quoted in the base currency and fetched fresh on every
// operation; nothing here caches across calls.
package oracle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable wraps transport failures talking to an oracle.
	ErrUnavailable = errors.New("oracle: unavailable")
	// ErrUnknownAsset is returned when the oracle has no price for the asset.
	ErrUnknownAsset = errors.New("oracle: unknown asset")
)

// PriceOracle quotes synthetic-asset prices in base-currency units.
type PriceOracle interface {
	// Price returns the current price of the given synthetic token.
	Price(ctx context.Context, token string) (decimal.Decimal, error)
}

// CollateralInfo is the collateral oracle's view of one collateral asset.
type CollateralInfo struct {
	Price      decimal.Decimal
	Multiplier decimal.Decimal
	Revoked    bool
}

// CollateralOracle quotes collateral prices together with the collateral
// multiplier and the revocation flag.
type CollateralOracle interface {
	// Collateral returns pricing info for the collateral asset with the
	// given identity (denom or token contract).
	Collateral(ctx context.Context, id string) (CollateralInfo, error)
}
