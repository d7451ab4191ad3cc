// Package asset models the two collateral/synthetic asset kinds handled by
// the minting engine: a chain-native currency identified by denom, and a
// fungible-token balance identified by its token contract address.
package asset

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrMalformedInfo = errors.New("asset: exactly one of denom or token must be set")

// Info identifies an asset. Exactly one of Denom (native currency) or Token
// (token contract address) is non-empty.
type Info struct {
	Denom string `json:"denom,omitempty"`
	Token string `json:"token,omitempty"`
}

// Native returns an Info for a chain-native currency.
func Native(denom string) Info { return Info{Denom: denom} }

// Token returns an Info for a fungible-token contract.
func Token(contract string) Info { return Info{Token: contract} }

// IsNative reports whether the asset is a chain-native currency.
func (i Info) IsNative() bool { return i.Denom != "" }

// Equal reports identity equality between two asset infos.
func (i Info) Equal(other Info) bool {
	return i.Denom == other.Denom && i.Token == other.Token
}

// ID returns the string identity used as a storage and oracle lookup key.
func (i Info) ID() string {
	if i.IsNative() {
		return i.Denom
	}
	return i.Token
}

// Validate checks that exactly one identity field is set.
func (i Info) Validate() error {
	if (i.Denom == "") == (i.Token == "") {
		return ErrMalformedInfo
	}
	return nil
}

func (i Info) String() string { return i.ID() }

// Asset pairs an identity with an integer amount of token units.
type Asset struct {
	Info   Info            `json:"info"`
	Amount decimal.Decimal `json:"amount"`
}

// New builds an Asset from an identity and a whole-unit amount.
func New(info Info, amount int64) Asset {
	return Asset{Info: info, Amount: decimal.NewFromInt(amount)}
}

// IsZero reports whether the amount is zero.
func (a Asset) IsZero() bool { return a.Amount.IsZero() }

// String renders the amount with its identity suffix, e.g. "1000000uusd"
// or "666666asset0000". This is the attribute format surfaced in operation
// results.
func (a Asset) String() string {
	return fmt.Sprintf("%s%s", a.Amount.String(), a.Info.ID())
}

// Validate checks the identity shape and that the amount is a non-negative
// whole number of units.
func (a Asset) Validate() error {
	if err := a.Info.Validate(); err != nil {
		return err
	}
	if a.Amount.IsNegative() {
		return fmt.Errorf("asset %s: negative amount", a.Info.ID())
	}
	if !a.Amount.Equal(a.Amount.Truncate(0)) {
		return fmt.Errorf("asset %s: amount must be a whole number of units", a.Info.ID())
	}
	return nil
}
