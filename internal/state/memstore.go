package state

import (
	"sort"
	"sync"
)

// MemStore is the in-memory Store used by unit tests and database-less runs.
// Secondary indices mirror the Postgres implementation so pagination
// semantics are identical across backends.
type MemStore struct {
	mu sync.RWMutex

	config       *Config
	assetConfigs map[string]*AssetConfig

	positions map[uint64]*Position
	byOwner   map[string]map[uint64]struct{}
	byAsset   map[string]map[uint64]struct{}

	nextIdx uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		assetConfigs: make(map[string]*AssetConfig),
		positions:    make(map[uint64]*Position),
		byOwner:      make(map[string]map[uint64]struct{}),
		byAsset:      make(map[string]map[uint64]struct{}),
		nextIdx:      1,
	}
}

func (s *MemStore) Config() (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, ErrNotFound
	}
	cp := *s.config
	return &cp, nil
}

func (s *MemStore) PutConfig(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.config = &cp
	return nil
}

func (s *MemStore) AssetConfig(token string) (*AssetConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.assetConfigs[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	if cfg.EndPrice != nil {
		ep := *cfg.EndPrice
		cp.EndPrice = &ep
	}
	return &cp, nil
}

func (s *MemStore) PutAssetConfig(cfg *AssetConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	if cfg.EndPrice != nil {
		ep := *cfg.EndPrice
		cp.EndPrice = &ep
	}
	s.assetConfigs[cfg.Token] = &cp
	return nil
}

func (s *MemStore) Position(idx uint64) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[idx]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemStore) PutPosition(p *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p.Clone()
	s.positions[cp.Idx] = cp

	if s.byOwner[cp.Owner] == nil {
		s.byOwner[cp.Owner] = make(map[uint64]struct{})
	}
	s.byOwner[cp.Owner][cp.Idx] = struct{}{}

	token := cp.Asset.Info.ID()
	if s.byAsset[token] == nil {
		s.byAsset[token] = make(map[uint64]struct{})
	}
	s.byAsset[token][cp.Idx] = struct{}{}

	return nil
}

func (s *MemStore) Positions(f PositionFilter) ([]*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates map[uint64]struct{}
	switch {
	case f.Owner != "":
		candidates = s.byOwner[f.Owner]
	case f.AssetToken != "":
		candidates = s.byAsset[f.AssetToken]
	}

	idxs := make([]uint64, 0, len(s.positions))
	if f.Owner != "" || f.AssetToken != "" {
		for idx := range candidates {
			idxs = append(idxs, idx)
		}
	} else {
		for idx := range s.positions {
			idxs = append(idxs, idx)
		}
	}

	sort.Slice(idxs, func(i, j int) bool {
		if f.Descending {
			return idxs[i] > idxs[j]
		}
		return idxs[i] < idxs[j]
	})

	limit := f.BoundedLimit()
	out := make([]*Position, 0, limit)
	for _, idx := range idxs {
		if f.StartAfter != nil {
			if f.Descending && idx >= *f.StartAfter {
				continue
			}
			if !f.Descending && idx <= *f.StartAfter {
				continue
			}
		}
		p := s.positions[idx]
		if f.Owner != "" && p.Owner != f.Owner {
			continue
		}
		if f.AssetToken != "" && p.Asset.Info.ID() != f.AssetToken {
			continue
		}
		out = append(out, p.Clone())
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) NextPositionIdx() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextIdx, nil
}

func (s *MemStore) AllocatePositionIdx() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.nextIdx
	s.nextIdx++
	return idx, nil
}
