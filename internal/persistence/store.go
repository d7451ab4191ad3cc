// Package persistence backs the state.Store interface with Postgres. The
// schema lives under migrations/ and is applied with the Migrator.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
	"MintVault/internal/observability"
	"MintVault/internal/state"
)

// PGStore implements state.Store on Postgres. All accesses run with a
// bounded per-query timeout; callers serialize mutating operations, so no
// row locking is needed beyond the idx-allocation update.
type PGStore struct {
	db      *sql.DB
	timeout time.Duration
	metrics *observability.Metrics
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB, metrics *observability.Metrics) *PGStore {
	return &PGStore{
		db:      db,
		timeout: 5 * time.Second,
		metrics: metrics,
	}
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *PGStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *PGStore) observe(record, kind string, start time.Time, err error) {
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues(record).Inc()
		return
	}
	if kind == "write" {
		s.metrics.StoreWrites.WithLabelValues(record).Inc()
	}
	s.metrics.StoreDuration.WithLabelValues(record, kind).Observe(time.Since(start).Seconds())
}

func (s *PGStore) Config() (*state.Config, error) {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	var cfg state.Config
	var feeRate string
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, oracle, collector, collateral_oracle, staking, factory,
		       base_denom, token_code_id, protocol_fee_rate
		FROM mint.config WHERE id = 1
	`).Scan(
		&cfg.Owner, &cfg.Oracle, &cfg.Collector, &cfg.CollateralOracle,
		&cfg.Staking, &cfg.Factory, &cfg.BaseDenom, &cfg.TokenCodeID, &feeRate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe("config", "read", start, nil)
		return nil, state.ErrNotFound
	}
	if err != nil {
		s.observe("config", "read", start, err)
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.ProtocolFeeRate, err = decimal.NewFromString(feeRate)
	if err != nil {
		return nil, fmt.Errorf("parse protocol_fee_rate %q: %w", feeRate, err)
	}
	s.observe("config", "read", start, nil)
	return &cfg, nil
}

func (s *PGStore) PutConfig(cfg *state.Config) error {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mint.config
			(id, owner, oracle, collector, collateral_oracle, staking, factory,
			 base_denom, token_code_id, protocol_fee_rate)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			oracle = EXCLUDED.oracle,
			collector = EXCLUDED.collector,
			collateral_oracle = EXCLUDED.collateral_oracle,
			staking = EXCLUDED.staking,
			factory = EXCLUDED.factory,
			base_denom = EXCLUDED.base_denom,
			token_code_id = EXCLUDED.token_code_id,
			protocol_fee_rate = EXCLUDED.protocol_fee_rate
	`,
		cfg.Owner, cfg.Oracle, cfg.Collector, cfg.CollateralOracle,
		cfg.Staking, cfg.Factory, cfg.BaseDenom, cfg.TokenCodeID,
		cfg.ProtocolFeeRate.String(),
	)
	s.observe("config", "write", start, err)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (s *PGStore) AssetConfig(token string) (*state.AssetConfig, error) {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	var cfg state.AssetConfig
	var minRatio string
	var endPrice sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT token, min_collateral_ratio, end_price
		FROM mint.asset_configs WHERE token = $1
	`, token).Scan(&cfg.Token, &minRatio, &endPrice)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe("asset_config", "read", start, nil)
		return nil, state.ErrNotFound
	}
	if err != nil {
		s.observe("asset_config", "read", start, err)
		return nil, fmt.Errorf("read asset config %s: %w", token, err)
	}

	cfg.MinCollateralRatio, err = decimal.NewFromString(minRatio)
	if err != nil {
		return nil, fmt.Errorf("parse min_collateral_ratio %q: %w", minRatio, err)
	}
	if endPrice.Valid {
		p, err := decimal.NewFromString(endPrice.String)
		if err != nil {
			return nil, fmt.Errorf("parse end_price %q: %w", endPrice.String, err)
		}
		cfg.EndPrice = &p
	}
	s.observe("asset_config", "read", start, nil)
	return &cfg, nil
}

func (s *PGStore) PutAssetConfig(cfg *state.AssetConfig) error {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	var endPrice interface{}
	if cfg.EndPrice != nil {
		endPrice = cfg.EndPrice.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mint.asset_configs (token, min_collateral_ratio, end_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET
			min_collateral_ratio = EXCLUDED.min_collateral_ratio,
			end_price = EXCLUDED.end_price
	`, cfg.Token, cfg.MinCollateralRatio.String(), endPrice)
	s.observe("asset_config", "write", start, err)
	if err != nil {
		return fmt.Errorf("write asset config %s: %w", cfg.Token, err)
	}
	return nil
}

func (s *PGStore) Position(idx uint64) (*state.Position, error) {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	pos, err := scanPosition(s.db.QueryRowContext(ctx, `
		SELECT idx, owner, collateral_denom, collateral_token, collateral_amount,
		       asset_token, asset_amount
		FROM mint.positions WHERE idx = $1
	`, int64(idx)))
	if errors.Is(err, sql.ErrNoRows) {
		s.observe("position", "read", start, nil)
		return nil, state.ErrNotFound
	}
	if err != nil {
		s.observe("position", "read", start, err)
		return nil, fmt.Errorf("read position %d: %w", idx, err)
	}
	s.observe("position", "read", start, nil)
	return pos, nil
}

func (s *PGStore) PutPosition(p *state.Position) error {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	var denom, token sql.NullString
	if p.Collateral.Info.IsNative() {
		denom = sql.NullString{String: p.Collateral.Info.Denom, Valid: true}
	} else {
		token = sql.NullString{String: p.Collateral.Info.Token, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mint.positions
			(idx, owner, collateral_denom, collateral_token, collateral_amount,
			 asset_token, asset_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idx) DO UPDATE SET
			collateral_amount = EXCLUDED.collateral_amount,
			asset_amount = EXCLUDED.asset_amount
	`,
		int64(p.Idx), p.Owner, denom, token,
		p.Collateral.Amount.String(), p.Asset.Info.Token, p.Asset.Amount.String(),
	)
	s.observe("position", "write", start, err)
	if err != nil {
		return fmt.Errorf("write position %d: %w", p.Idx, err)
	}
	return nil
}

func (s *PGStore) Positions(f state.PositionFilter) ([]*state.Position, error) {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Owner != "" {
		conds = append(conds, "owner = "+arg(f.Owner))
	}
	if f.AssetToken != "" {
		conds = append(conds, "asset_token = "+arg(f.AssetToken))
	}
	if f.StartAfter != nil {
		if f.Descending {
			conds = append(conds, "idx < "+arg(int64(*f.StartAfter)))
		} else {
			conds = append(conds, "idx > "+arg(int64(*f.StartAfter)))
		}
	}

	query := `
		SELECT idx, owner, collateral_denom, collateral_token, collateral_amount,
		       asset_token, asset_amount
		FROM mint.positions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Descending {
		query += " ORDER BY idx DESC"
	} else {
		query += " ORDER BY idx ASC"
	}
	query += " LIMIT " + arg(f.BoundedLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.observe("positions", "read", start, err)
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []*state.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			s.observe("positions", "read", start, err)
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		s.observe("positions", "read", start, err)
		return nil, err
	}
	s.observe("positions", "read", start, nil)
	return out, nil
}

func (s *PGStore) NextPositionIdx() (uint64, error) {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT next_idx FROM mint.position_idx WHERE id = 1`,
	).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		s.observe("position_idx", "read", start, nil)
		return 1, nil
	}
	if err != nil {
		s.observe("position_idx", "read", start, err)
		return 0, fmt.Errorf("read next idx: %w", err)
	}
	s.observe("position_idx", "read", start, nil)
	return uint64(next), nil
}

func (s *PGStore) AllocatePositionIdx() (uint64, error) {
	start := time.Now()
	ctx, cancel := s.ctx()
	defer cancel()

	// Single-statement allocate: the row update is atomic, so the idx is
	// never handed out twice even across processes.
	var allocated int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO mint.position_idx (id, next_idx) VALUES (1, 2)
		ON CONFLICT (id) DO UPDATE SET next_idx = mint.position_idx.next_idx + 1
		RETURNING next_idx - 1
	`).Scan(&allocated)
	s.observe("position_idx", "write", start, err)
	if err != nil {
		return 0, fmt.Errorf("allocate position idx: %w", err)
	}
	return uint64(allocated), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*state.Position, error) {
	var pos state.Position
	var idx int64
	var denom, token sql.NullString
	var collAmount, assetToken, assetAmount string

	err := row.Scan(&idx, &pos.Owner, &denom, &token, &collAmount, &assetToken, &assetAmount)
	if err != nil {
		return nil, err
	}
	pos.Idx = uint64(idx)

	if denom.Valid {
		pos.Collateral.Info = asset.Native(denom.String)
	} else {
		pos.Collateral.Info = asset.Token(token.String)
	}
	pos.Collateral.Amount, err = decimal.NewFromString(collAmount)
	if err != nil {
		return nil, fmt.Errorf("parse collateral amount %q: %w", collAmount, err)
	}

	pos.Asset.Info = asset.Token(assetToken)
	pos.Asset.Amount, err = decimal.NewFromString(assetAmount)
	if err != nil {
		return nil, fmt.Errorf("parse asset amount %q: %w", assetAmount, err)
	}
	return &pos, nil
}
