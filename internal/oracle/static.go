package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Static is a fixed-price oracle for tests and oracle-less dev runs. It
// serves both oracle interfaces from in-memory tables.
type Static struct {
	mu          sync.RWMutex
	prices      map[string]decimal.Decimal
	collaterals map[string]CollateralInfo
}

// NewStatic creates an empty static oracle.
func NewStatic() *Static {
	return &Static{
		prices:      make(map[string]decimal.Decimal),
		collaterals: make(map[string]CollateralInfo),
	}
}

// SetPrice sets the price quote for a synthetic token.
func (s *Static) SetPrice(token string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[token] = price
}

// SetCollateral sets the collateral quote for an asset identity.
func (s *Static) SetCollateral(id string, info CollateralInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collaterals[id] = info
}

// Revoke flips the revocation flag on a registered collateral.
func (s *Static) Revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.collaterals[id]
	info.Revoked = true
	s.collaterals[id] = info
}

func (s *Static) Price(_ context.Context, token string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[token]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownAsset, token)
	}
	return price, nil
}

func (s *Static) Collateral(_ context.Context, id string) (CollateralInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.collaterals[id]
	if !ok {
		return CollateralInfo{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return info, nil
}
