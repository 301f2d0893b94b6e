package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"RSISentinel/internal/model"
)

// SQLiteRecorder persists signals to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
	now    func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while the scanner writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With().Str("component", "recorder").Logger(), now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS divergences (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			type        TEXT NOT NULL,
			kind        TEXT NOT NULL,
			direction   TEXT NOT NULL,
			price       REAL NOT NULL,
			rsi         REAL NOT NULL,
			strength    REAL NOT NULL,
			label       TEXT,
			confirmed   INTEGER NOT NULL DEFAULT 0,
			detected_at INTEGER NOT NULL,
			alerted     INTEGER NOT NULL DEFAULT 0,
			alerted_at  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_time ON divergences(symbol, timeframe, detected_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) IsDuplicate(ctx context.Context, symbol, timeframe, signalType string, cooldown time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-cooldown).Unix()
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM divergences
		WHERE symbol = ? AND timeframe = ? AND type = ? AND alerted = 1 AND alerted_at > ?`,
		symbol, timeframe, signalType, cutoff,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteRecorder) Save(ctx context.Context, sig *model.Signal) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `INSERT INTO divergences
		(symbol, timeframe, type, kind, direction, price, rsi, strength, label, confirmed, detected_at, alerted)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,0)`,
		sig.Symbol, sig.Timeframe, sig.DedupKey(), string(sig.Kind), string(sig.Direction),
		sig.CurrentPrice, sig.CurrentRSI, sig.Strength, sig.Label, confirmedFlag(sig), r.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRecorder) MarkAlerted(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `UPDATE divergences SET alerted = 1, alerted_at = ? WHERE id = ?`,
		r.now().Unix(), id)
	return err
}

func (r *SQLiteRecorder) RecentSignals(ctx context.Context, since time.Duration) ([]StoredSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT
		id, symbol, timeframe, type, kind, direction, price, rsi, strength,
		COALESCE(label, ''), confirmed, detected_at, alerted, alerted_at
		FROM divergences WHERE detected_at > ? ORDER BY detected_at DESC, id DESC`,
		r.now().Add(-since).Unix())
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []StoredSignal
	for rows.Next() {
		var s StoredSignal
		var detected int64
		var alertedAt sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Timeframe, &s.Type, &s.Kind, &s.Direction,
			&s.Price, &s.RSI, &s.Strength, &s.Label, &s.Confirmed, &detected, &s.Alerted, &alertedAt); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		s.DetectedAt = time.Unix(detected, 0).UTC()
		if alertedAt.Valid {
			t := time.Unix(alertedAt.Int64, 0).UTC()
			s.AlertedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Statistics(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st Stats
	err := r.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN alerted = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN detected_at > ? THEN 1 ELSE 0 END), 0)
		FROM divergences`,
		string(model.Bullish), string(model.Bearish),
		string(model.KindDivergence), string(model.KindReversal),
		r.now().Add(-24*time.Hour).Unix(),
	).Scan(&st.Total, &st.Bullish, &st.Bearish, &st.Divergences, &st.Reversals, &st.Alerted, &st.Last24h)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return &st, nil
}

func (r *SQLiteRecorder) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM divergences WHERE detected_at < ?`,
		r.now().Add(-olderThan).Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
