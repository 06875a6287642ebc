package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to Postgres with the configured pool limits and pings it.
func Open(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository.Open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Migrate applies the embedded *.sql files in lexical order. Applied files are
// tracked in schema_migrations, so each runs once.
func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("repository.Migrate: create tracker: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("repository.Migrate: read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		var applied bool
		if err := db.GetContext(ctx, &applied,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, e.Name()); err != nil {
			return fmt.Errorf("repository.Migrate: check %s: %w", e.Name(), err)
		}
		if applied {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("repository.Migrate: read %s: %w", e.Name(), err)
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("repository.Migrate: begin %s: %w", e.Name(), err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("repository.Migrate: exec %s: %w", e.Name(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, e.Name()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("repository.Migrate: record %s: %w", e.Name(), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("repository.Migrate: commit %s: %w", e.Name(), err)
		}
		logger.Info("migration applied", "file", e.Name())
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Session-scoped transaction
// ──────────────────────────────────────────────────────────────────────────────

// Tx is the set of writes the bet lifecycle performs inside one local
// transaction. Nothing written through it is visible to other sessions until
// the surrounding WithTransaction returns nil.
type Tx interface {
	LockTradable(ctx context.Context, marketID uuid.UUID, now time.Time) (*domain.Market, error)
	InsertTrade(ctx context.Context, t *domain.Trade) error
	MarkResolved(ctx context.Context, req domain.ResolveRequest, at time.Time) (*domain.Market, error)
	MarkCanceled(ctx context.Context, req domain.CancelRequest, at time.Time) (*domain.Market, error)
	CloseTrades(ctx context.Context, userID, marketID uuid.UUID, outcomeIndex int, status domain.TradeStatus) (int64, error)
	CloseOpenTrades(ctx context.Context, marketID uuid.UUID, status domain.TradeStatus) ([]uuid.UUID, error)
}

// Store opens Tx sessions over the market and trade repositories.
type Store struct {
	db      *sqlx.DB
	markets *MarketRepository
	trades  *TradeRepository
}

// NewStore creates a new Store.
func NewStore(db *sqlx.DB, markets *MarketRepository, trades *TradeRepository) *Store {
	return &Store{db: db, markets: markets, trades: trades}
}

// WithTransaction runs fn inside a database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.WithTransaction: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx, markets: s.markets, trades: s.trades}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("store.WithTransaction: commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx      *sqlx.Tx
	markets *MarketRepository
	trades  *TradeRepository
}

func (t *pgTx) LockTradable(ctx context.Context, marketID uuid.UUID, now time.Time) (*domain.Market, error) {
	return t.markets.LockTradable(ctx, t.tx, marketID, now)
}

func (t *pgTx) InsertTrade(ctx context.Context, trade *domain.Trade) error {
	return t.trades.Insert(ctx, t.tx, trade)
}

func (t *pgTx) MarkResolved(ctx context.Context, req domain.ResolveRequest, at time.Time) (*domain.Market, error) {
	return t.markets.MarkResolved(ctx, t.tx, req, at)
}

func (t *pgTx) MarkCanceled(ctx context.Context, req domain.CancelRequest, at time.Time) (*domain.Market, error) {
	return t.markets.MarkCanceled(ctx, t.tx, req, at)
}

func (t *pgTx) CloseTrades(ctx context.Context, userID, marketID uuid.UUID, outcomeIndex int, status domain.TradeStatus) (int64, error) {
	return t.trades.CloseTrades(ctx, t.tx, userID, marketID, outcomeIndex, status)
}

func (t *pgTx) CloseOpenTrades(ctx context.Context, marketID uuid.UUID, status domain.TradeStatus) ([]uuid.UUID, error) {
	return t.trades.CloseOpenTrades(ctx, t.tx, marketID, status)
}
