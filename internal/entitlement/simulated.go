package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	_ "modernc.org/sqlite"
)

// SimulatedSource computes snapshots locally: the trial starts on the first
// fetch for an identity and messages are counted per UTC day. Nothing is
// checked against the backend, so it is only suitable for offline demos.
type SimulatedSource struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// NewSimulatedSource opens (or creates) the simulator database in dir.
func NewSimulatedSource(dir string, now func() time.Time, logger *slog.Logger) (*SimulatedSource, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create simulator dir: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := filepath.Join(dir, "simulated-usage.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(5000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open simulator db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SimulatedSource{db: db, now: now, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SimulatedSource) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trials (
		identity   TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS usage (
		identity TEXT NOT NULL,
		day      TEXT NOT NULL,
		count    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (identity, day)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init simulator schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SimulatedSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Fetch implements Source. Store errors are reported as connectivity
// failures since the store plays the backend's role.
func (s *SimulatedSource) Fetch(ctx context.Context, req Request) Outcome {
	if req.Identity == "" {
		return AuthFailure{Err: ErrNoCredential}
	}
	now := s.now().UTC()

	started, err := s.trialStart(ctx, req.Identity, now)
	if err != nil {
		return ConnectivityFailure{Err: err}
	}

	var used int
	err = s.db.QueryRowContext(ctx,
		`SELECT count FROM usage WHERE identity = ? AND day = ?`,
		req.Identity, dayKey(now),
	).Scan(&used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ConnectivityFailure{Err: fmt.Errorf("read simulated usage: %w", err)}
	}

	return Success{Record: domain.UsageRecord{
		Plan:               domain.PlanStarter,
		ChatsUsedToday:     used,
		DailyLimit:         domain.DefaultDailyChats,
		TrialDaysRemaining: max(0, domain.DefaultTrialDays-domain.DaysBetween(started, now)),
		IsActive:           true,
		FetchedAt:          now,
	}}
}

func (s *SimulatedSource) trialStart(ctx context.Context, identity string, now time.Time) (time.Time, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO trials (identity, started_at) VALUES (?, ?)`,
		identity, now.Unix(),
	); err != nil {
		return time.Time{}, fmt.Errorf("start simulated trial: %w", err)
	}

	var startedAt int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM trials WHERE identity = ?`, identity,
	).Scan(&startedAt); err != nil {
		return time.Time{}, fmt.Errorf("read simulated trial: %w", err)
	}
	return time.Unix(startedAt, 0).UTC(), nil
}

// RecordMessage implements MessageRecorder.
func (s *SimulatedSource) RecordMessage(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrNoCredential
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (identity, day, count) VALUES (?, ?, 1)
		ON CONFLICT (identity, day) DO UPDATE SET count = count + 1`,
		identity, dayKey(s.now()),
	)
	if err != nil {
		return fmt.Errorf("record simulated message: %w", err)
	}
	s.logger.Debug("recorded simulated message", "identity", identity)
	return nil
}

func dayKey(t time.Time) string {
	return domain.UsageDay(t).Format(time.DateOnly)
}
