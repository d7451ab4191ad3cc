package engine

import (
	"context"
	"fmt"

	"MintVault/internal/state"
)

// Config returns the current config.
func (e *Engine) Config(_ context.Context) (*state.Config, error) {
	return e.store.Config()
}

// Asset returns the registry entry for one synthetic asset.
func (e *Engine) Asset(_ context.Context, token string) (*state.AssetConfig, error) {
	return e.store.AssetConfig(token)
}

// Position returns one position by idx.
func (e *Engine) Position(_ context.Context, idx uint64) (*state.Position, error) {
	pos, err := e.store.Position(idx)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", idx, err)
	}
	return pos, nil
}

// Positions lists positions matching the filter, paginated by idx.
func (e *Engine) Positions(_ context.Context, f state.PositionFilter) ([]*state.Position, error) {
	return e.store.Positions(f)
}

// NextPositionIdx returns the idx the next opened position will receive.
func (e *Engine) NextPositionIdx(_ context.Context) (uint64, error) {
	return e.store.NextPositionIdx()
}
