package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
)

// PoolConfig sizes the Postgres connection pool.
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
}

// PostgresRecorder persists signals to Postgres through a pgx pool.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	now    func() time.Time
}

// NewPostgresRecorder connects, pings and migrates.
func NewPostgresRecorder(ctx context.Context, databaseURL string, cfg PoolConfig, logger zerolog.Logger) (*PostgresRecorder, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRecorder{pool: pool, logger: logger.With().Str("component", "recorder").Logger(), now: time.Now}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.logger.Info().Msg("postgres recorder opened")
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		`create table if not exists divergences (
			id          bigserial primary key,
			symbol      text not null,
			timeframe   text not null,
			type        text not null,
			kind        text not null,
			direction   text not null,
			price       double precision not null,
			rsi         double precision not null,
			strength    double precision not null,
			label       text not null default '',
			confirmed   boolean not null default false,
			detected_at timestamptz not null,
			alerted     boolean not null default false,
			alerted_at  timestamptz
		)`,
		`create index if not exists idx_symbol_time on divergences(symbol, timeframe, detected_at)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *PostgresRecorder) IsDuplicate(ctx context.Context, symbol, timeframe, signalType string, cooldown time.Duration) (bool, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `select count(*) from divergences
		where symbol = $1 and timeframe = $2 and type = $3 and alerted and alerted_at > $4`,
		symbol, timeframe, signalType, r.now().Add(-cooldown),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresRecorder) Save(ctx context.Context, sig *model.Signal) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `insert into divergences
		(symbol, timeframe, type, kind, direction, price, rsi, strength, label, confirmed, detected_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) returning id`,
		sig.Symbol, sig.Timeframe, sig.DedupKey(), string(sig.Kind), string(sig.Direction),
		sig.CurrentPrice, sig.CurrentRSI, sig.Strength, sig.Label, confirmedFlag(sig), r.now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return id, nil
}

func (r *PostgresRecorder) MarkAlerted(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `update divergences set alerted = true, alerted_at = $1 where id = $2`, r.now(), id)
	return err
}

func (r *PostgresRecorder) RecentSignals(ctx context.Context, since time.Duration) ([]StoredSignal, error) {
	rows, err := r.pool.Query(ctx, `select
		id, symbol, timeframe, type, kind, direction, price, rsi, strength,
		label, confirmed, detected_at, alerted, alerted_at
		from divergences where detected_at > $1 order by detected_at desc, id desc`,
		r.now().Add(-since))
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []StoredSignal
	for rows.Next() {
		var s StoredSignal
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Timeframe, &s.Type, &s.Kind, &s.Direction,
			&s.Price, &s.RSI, &s.Strength, &s.Label, &s.Confirmed, &s.DetectedAt, &s.Alerted, &s.AlertedAt); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRecorder) Statistics(ctx context.Context) (*Stats, error) {
	var st Stats
	err := r.pool.QueryRow(ctx, `select
		count(*),
		count(*) filter (where direction = $1),
		count(*) filter (where direction = $2),
		count(*) filter (where kind = $3),
		count(*) filter (where kind = $4),
		count(*) filter (where alerted),
		count(*) filter (where detected_at > $5)
		from divergences`,
		string(model.Bullish), string(model.Bearish),
		string(model.KindDivergence), string(model.KindReversal),
		r.now().Add(-24*time.Hour),
	).Scan(&st.Total, &st.Bullish, &st.Bearish, &st.Divergences, &st.Reversals, &st.Alerted, &st.Last24h)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return &st, nil
}

func (r *PostgresRecorder) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `delete from divergences where detected_at < $1`, r.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRecorder) Close() error {
	r.pool.Close()
	return nil
}
