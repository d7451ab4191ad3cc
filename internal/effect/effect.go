// Package effect defines the outbound instructions a successful operation
// produces. The engine never executes them: they are handed to the dispatch
// layer, which publishes them for the host's effect-execution layer.
package effect

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
)

// Kind discriminator for effect instructions.
type Kind string

const (
	KindMintToken          Kind = "mint_token"
	KindBurnToken          Kind = "burn_token"
	KindTransferToken      Kind = "transfer_token"
	KindSendNative         Kind = "send_native"
	KindRegisterCollateral Kind = "register_collateral"
	KindRevokeCollateral   Kind = "revoke_collateral"
)

// Instruction is the interface all outbound effects implement.
type Instruction interface {
	Kind() Kind
	InstructionID() uuid.UUID
}

// MintToken instructs the synthetic token contract to mint to a recipient.
type MintToken struct {
	ID        uuid.UUID       `json:"id"`
	Token     string          `json:"token"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (m MintToken) Kind() Kind               { return KindMintToken }
func (m MintToken) InstructionID() uuid.UUID { return m.ID }

// BurnToken instructs the synthetic token contract to burn units it holds.
type BurnToken struct {
	ID     uuid.UUID       `json:"id"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

func (b BurnToken) Kind() Kind               { return KindBurnToken }
func (b BurnToken) InstructionID() uuid.UUID { return b.ID }

// TransferToken moves a token-contract balance to a recipient.
type TransferToken struct {
	ID        uuid.UUID       `json:"id"`
	Token     string          `json:"token"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (t TransferToken) Kind() Kind               { return KindTransferToken }
func (t TransferToken) InstructionID() uuid.UUID { return t.ID }

// SendNative moves native currency to a recipient.
type SendNative struct {
	ID        uuid.UUID       `json:"id"`
	Denom     string          `json:"denom"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (s SendNative) Kind() Kind               { return KindSendNative }
func (s SendNative) InstructionID() uuid.UUID { return s.ID }

// RegisterCollateral tells the collateral oracle to start tracking a newly
// registered synthetic asset with a default multiplier.
type RegisterCollateral struct {
	ID         uuid.UUID       `json:"id"`
	Asset      asset.Info      `json:"asset"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Oracle     string          `json:"oracle"`
}

func (r RegisterCollateral) Kind() Kind               { return KindRegisterCollateral }
func (r RegisterCollateral) InstructionID() uuid.UUID { return r.ID }

// RevokeCollateral flags a migrated asset as no longer valid collateral.
type RevokeCollateral struct {
	ID    uuid.UUID  `json:"id"`
	Asset asset.Info `json:"asset"`
}

func (r RevokeCollateral) Kind() Kind               { return KindRevokeCollateral }
func (r RevokeCollateral) InstructionID() uuid.UUID { return r.ID }

// Transfer builds the instruction that moves an asset amount to a recipient,
// picking the native or token form as appropriate.
func Transfer(a asset.Asset, recipient string) Instruction {
	if a.Info.IsNative() {
		return SendNative{ID: uuid.New(), Denom: a.Info.Denom, Recipient: recipient, Amount: a.Amount}
	}
	return TransferToken{ID: uuid.New(), Token: a.Info.Token, Recipient: recipient, Amount: a.Amount}
}
