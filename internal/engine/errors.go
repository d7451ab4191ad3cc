package engine

import "errors"

// Rejection taxonomy. The dispatch layer maps these onto HTTP status codes;
// anything not listed here is treated as an internal failure.
var (
	// ErrUnauthorized rejects a caller who is not the position owner (or,
	// for admin operations, not the configured owner).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrWrongCollateral rejects a collateral whose identity does not match
	// the position, or whose amount is zero.
	ErrWrongCollateral = errors.New("wrong collateral")

	// ErrWrongAsset rejects an asset whose identity does not match the
	// position.
	ErrWrongAsset = errors.New("wrong asset")

	// ErrAssetMigrated rejects ratio-raising operations on a migrated asset.
	ErrAssetMigrated = errors.New("operation is not allowed for the deprecated asset")

	// ErrCollateralRevoked rejects new exposure against collateral the
	// collateral oracle has revoked.
	ErrCollateralRevoked = errors.New("the collateral asset provided is no longer valid")

	// ErrOpenBelowFloor rejects an open whose requested ratio is under the
	// asset's minimum collateral ratio.
	ErrOpenBelowFloor = errors.New("can not open a position with low collateral ratio than minimum")

	// ErrMintOverLimit rejects a mint that would drop the position under the
	// minimum collateral ratio.
	ErrMintOverLimit = errors.New("cannot mint asset over than min collateral ratio")

	// ErrWithdrawOverLimit rejects a withdraw that would drop the position
	// under the minimum collateral ratio.
	ErrWithdrawOverLimit = errors.New("cannot withdraw collateral over than minimum collateral ratio")

	// ErrWithdrawTooMuch rejects withdrawing more collateral than the
	// position holds.
	ErrWithdrawTooMuch = errors.New("cannot withdraw more collateral than locked")

	// ErrBurnOverMinted rejects burning more than the position minted.
	ErrBurnOverMinted = errors.New("cannot burn asset more than you mint")

	// ErrZeroMint rejects an open whose collateral is too small to mint a
	// single asset unit.
	ErrZeroMint = errors.New("cannot mint zero amount")

	// ErrAssetNotRegistered rejects operations against an unknown synthetic
	// asset.
	ErrAssetNotRegistered = errors.New("asset is not registered")
)
