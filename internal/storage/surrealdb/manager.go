// Package surrealdb persists the ledger in SurrealDB
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// Tables holding the ledger.
const (
	tablePortfolio     = "portfolio"
	tableAsset         = "asset"
	tableTransaction   = "ledger_tx"
	tableSequence      = "ledger_seq"
	tableLedgerVersion = "ledger_version"
)

var ledgerTables = []string{tablePortfolio, tableAsset, tableTransaction, tableSequence, tableLedgerVersion}

// Manager owns the SurrealDB connection and the stores built on it.
type Manager struct {
	db          *surrealdb.DB
	logger      *common.Logger
	ledgerStore *LedgerStore
}

// NewManager connects to SurrealDB, selects the namespace and database, and
// makes sure the ledger tables exist.
func NewManager(ctx context.Context, logger *common.Logger, cfg common.StorageConfig) (*Manager, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	m := &Manager{
		db:          db,
		logger:      logger,
		ledgerStore: NewLedgerStore(db, logger),
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB ledger store initialized")

	return m, nil
}

// defineTables creates the ledger tables (SurrealDB v3 errors on querying
// tables that do not exist).
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range ledgerTables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
}

// LedgerStore returns the ledger store.
func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledgerStore
}

// Close closes the connection.
func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
