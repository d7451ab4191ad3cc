package state

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyRegistered = errors.New("asset was already registered")
)

// Pagination bounds for position enumeration.
const (
	DefaultPositionLimit = 10
	MaxPositionLimit     = 30
)

// PositionFilter narrows and pages a position enumeration. Owner and
// AssetToken may be combined. StartAfter resumes strictly after (ascending)
// or strictly before (descending) the given index.
type PositionFilter struct {
	Owner      string
	AssetToken string
	StartAfter *uint64
	Limit      int
	Descending bool
}

// BoundedLimit applies the default and maximum page size.
func (f PositionFilter) BoundedLimit() int {
	if f.Limit <= 0 {
		return DefaultPositionLimit
	}
	if f.Limit > MaxPositionLimit {
		return MaxPositionLimit
	}
	return f.Limit
}

// Store is the persistence boundary the engine operates against. The
// surrounding call is serialized by the dispatch layer, so implementations
// only need to be safe for concurrent reads.
type Store interface {
	// Config singleton.
	Config() (*Config, error)
	PutConfig(cfg *Config) error

	// AssetConfig registry, keyed by synthetic token identity.
	AssetConfig(token string) (*AssetConfig, error)
	PutAssetConfig(cfg *AssetConfig) error

	// Position records plus owner/asset secondary indices, maintained
	// together on every put.
	Position(idx uint64) (*Position, error)
	PutPosition(p *Position) error
	Positions(f PositionFilter) ([]*Position, error)

	// Monotonic next-position-index counter. AllocatePositionIdx returns
	// the index to assign and advances the counter; indices are never
	// reused even if a position is later emptied.
	NextPositionIdx() (uint64, error)
	AllocatePositionIdx() (uint64, error)
}
