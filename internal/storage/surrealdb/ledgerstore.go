package surrealdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const writeAttempts = 3

// LedgerStore implements interfaces.LedgerStore using SurrealDB.
type LedgerStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewLedgerStore creates a ledger store on an open connection.
func NewLedgerStore(db *surrealdb.DB, logger *common.Logger) *LedgerStore {
	return &LedgerStore{
		db:     db,
		logger: logger,
	}
}

type portfolioRow struct {
	PortfolioID string    `json:"portfolio_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r portfolioRow) model() models.Portfolio {
	return models.Portfolio{
		ID:          r.PortfolioID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type assetRow struct {
	AssetID      string    `json:"asset_id"`
	PortfolioID  string    `json:"portfolio_id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	CurrentPrice *float64  `json:"current_price"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r assetRow) model() models.Asset {
	return models.Asset{
		ID:           r.AssetID,
		PortfolioID:  r.PortfolioID,
		Symbol:       r.Symbol,
		Name:         r.Name,
		Type:         models.AssetType(r.Type),
		CurrentPrice: r.CurrentPrice,
		Currency:     r.Currency,
		CreatedAt:    r.CreatedAt,
	}
}

// txRow is the flattened transaction, as in models.TransactionRecord.
type txRow struct {
	TxID     string    `json:"tx_id"`
	AssetID  string    `json:"asset_id"`
	Seq      int64     `json:"seq"`
	Kind     string    `json:"kind"`
	Date     time.Time `json:"date"`
	Quantity *float64  `json:"quantity"`
	Price    *float64  `json:"price"`
	Fees     float64   `json:"fees"`
}

func newTxRow(tx models.Transaction) txRow {
	rec := tx.Record()
	return txRow{
		TxID:     rec.ID,
		AssetID:  rec.AssetID,
		Seq:      rec.Seq,
		Kind:     rec.Kind,
		Date:     rec.Date.UTC(),
		Quantity: rec.Quantity,
		Price:    rec.Price,
		Fees:     rec.Fees,
	}
}

func (r txRow) model() (models.Transaction, error) {
	return models.TransactionRecord{
		ID:       r.TxID,
		AssetID:  r.AssetID,
		Seq:      r.Seq,
		Kind:     r.Kind,
		Date:     r.Date.UTC(),
		Quantity: r.Quantity,
		Price:    r.Price,
		Fees:     r.Fees,
	}.Decode()
}

type counterRow struct {
	N int64 `json:"n"`
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, common.ErrNotFound)
}

// query runs sql and returns the rows of its first statement.
func query[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// upsert writes data to table:id, retrying transient failures.
func (s *LedgerStore) upsert(ctx context.Context, table, id string, data any) error {
	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(table, id), "data": data}

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("failed to write %s %s after retries: %w", table, id, lastErr)
}

// increment atomically bumps the counter at table:id and returns its new value.
func (s *LedgerStore) increment(ctx context.Context, table, id string, fields map[string]any) (int64, error) {
	sql := "UPSERT $rid SET n = (n ?? 0) + 1"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(table, id)}
	for k, v := range fields {
		sql += fmt.Sprintf(", %s = $%s", k, k)
		vars[k] = v
	}
	sql += " RETURN n"

	rows, err := query[counterRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("counter %s %s returned no value", table, id)
	}
	return rows[0].N, nil
}

func (s *LedgerStore) exec(ctx context.Context, sql string, vars map[string]any) error {
	_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	return err
}

func (s *LedgerStore) ListPortfolios(ctx context.Context, userID string) ([]models.Portfolio, error) {
	rows, err := query[portfolioRow](ctx, s.db, "SELECT * FROM portfolio WHERE user_id = $user_id", map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	out := make([]models.Portfolio, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *LedgerStore) GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	rows, err := query[portfolioRow](ctx, s.db, "SELECT * FROM $rid", map[string]any{
		"rid": surrealmodels.NewRecordID(tablePortfolio, portfolioID),
	})
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if len(rows) == 0 {
		return nil, notFound("portfolio", portfolioID)
	}
	p := rows[0].model()
	return &p, nil
}

func (s *LedgerStore) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	return s.upsert(ctx, tablePortfolio, p.ID, portfolioRow{
		PortfolioID: p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	})
}

func (s *LedgerStore) DeletePortfolio(ctx context.Context, portfolioID string) error {
	if _, err := s.GetPortfolio(ctx, portfolioID); err != nil {
		return err
	}
	vars := map[string]any{
		"portfolio_id": portfolioID,
		"rid":          surrealmodels.NewRecordID(tablePortfolio, portfolioID),
		"vid":          surrealmodels.NewRecordID(tableLedgerVersion, portfolioID),
	}
	statements := []string{
		"DELETE ledger_tx WHERE asset_id IN (SELECT VALUE asset_id FROM asset WHERE portfolio_id = $portfolio_id)",
		"DELETE ledger_seq WHERE asset_id IN (SELECT VALUE asset_id FROM asset WHERE portfolio_id = $portfolio_id)",
		"DELETE asset WHERE portfolio_id = $portfolio_id",
		"DELETE $vid",
		"DELETE $rid",
	}
	for _, sql := range statements {
		if err := s.exec(ctx, sql, vars); err != nil {
			return fmt.Errorf("failed to delete portfolio %s: %w", portfolioID, err)
		}
	}
	return nil
}

func (s *LedgerStore) ListAssets(ctx context.Context, portfolioID string) ([]models.Asset, error) {
	rows, err := query[assetRow](ctx, s.db, "SELECT * FROM asset WHERE portfolio_id = $portfolio_id", map[string]any{"portfolio_id": portfolioID})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	out := make([]models.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *LedgerStore) GetAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	rows, err := query[assetRow](ctx, s.db, "SELECT * FROM $rid", map[string]any{
		"rid": surrealmodels.NewRecordID(tableAsset, assetID),
	})
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if len(rows) == 0 {
		return nil, notFound("asset", assetID)
	}
	a := rows[0].model()
	return &a, nil
}

func (s *LedgerStore) SaveAsset(ctx context.Context, a *models.Asset) error {
	return s.upsert(ctx, tableAsset, a.ID, assetRow{
		AssetID:      a.ID,
		PortfolioID:  a.PortfolioID,
		Symbol:       a.Symbol,
		Name:         a.Name,
		Type:         string(a.Type),
		CurrentPrice: a.CurrentPrice,
		Currency:     a.Currency,
		CreatedAt:    a.CreatedAt.UTC(),
	})
}

func (s *LedgerStore) DeleteAsset(ctx context.Context, assetID string) error {
	if _, err := s.GetAsset(ctx, assetID); err != nil {
		return err
	}
	vars := map[string]any{
		"asset_id": assetID,
		"rid":      surrealmodels.NewRecordID(tableAsset, assetID),
		"sid":      surrealmodels.NewRecordID(tableSequence, assetID),
	}
	for _, sql := range []string{"DELETE ledger_tx WHERE asset_id = $asset_id", "DELETE $sid", "DELETE $rid"} {
		if err := s.exec(ctx, sql, vars); err != nil {
			return fmt.Errorf("failed to delete asset %s: %w", assetID, err)
		}
	}
	return nil
}

// ListTransactions returns the asset's ledger in insertion order.
func (s *LedgerStore) ListTransactions(ctx context.Context, assetID string) ([]models.Transaction, error) {
	if _, err := s.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	rows, err := query[txRow](ctx, s.db, "SELECT * FROM ledger_tx WHERE asset_id = $asset_id", map[string]any{"asset_id": assetID})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	out := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.model()
		if err != nil {
			// written through validation, so this only happens on manual edits
			s.logger.Warn().Err(err).Str("asset", assetID).Str("id", r.TxID).Msg("Skipping malformed stored transaction")
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *LedgerStore) getTransaction(ctx context.Context, txID string) (*txRow, error) {
	rows, err := query[txRow](ctx, s.db, "SELECT * FROM $rid", map[string]any{
		"rid": surrealmodels.NewRecordID(tableTransaction, txID),
	})
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, notFound("transaction", txID)
	}
	return &rows[0], nil
}

// AppendTransaction assigns the next per-asset sequence number and stores tx.
func (s *LedgerStore) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if _, err := s.GetAsset(ctx, tx.AssetID); err != nil {
		return err
	}
	seq, err := s.increment(ctx, tableSequence, tx.AssetID, map[string]any{"asset_id": tx.AssetID})
	if err != nil {
		return fmt.Errorf("failed to assign sequence for asset %s: %w", tx.AssetID, err)
	}
	tx.Seq = seq
	return s.upsert(ctx, tableTransaction, tx.ID, newTxRow(*tx))
}

// UpdateTransaction replaces an entry, keeping its sequence number.
func (s *LedgerStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	existing, err := s.getTransaction(ctx, tx.ID)
	if err != nil {
		return err
	}
	if existing.AssetID != tx.AssetID {
		return notFound("transaction", tx.ID)
	}
	tx.Seq = existing.Seq
	return s.upsert(ctx, tableTransaction, tx.ID, newTxRow(*tx))
}

func (s *LedgerStore) DeleteTransaction(ctx context.Context, assetID, txID string) error {
	existing, err := s.getTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if existing.AssetID != assetID {
		return notFound("transaction", txID)
	}
	if err := s.exec(ctx, "DELETE $rid", map[string]any{"rid": surrealmodels.NewRecordID(tableTransaction, txID)}); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", txID, err)
	}
	return nil
}

// LedgerVersion returns the portfolio's current ledger version (0 before any write).
func (s *LedgerStore) LedgerVersion(ctx context.Context, portfolioID string) (int64, error) {
	rows, err := query[counterRow](ctx, s.db, "SELECT n FROM $rid", map[string]any{
		"rid": surrealmodels.NewRecordID(tableLedgerVersion, portfolioID),
	})
	if err != nil && !isNotFoundError(err) {
		return 0, fmt.Errorf("failed to read ledger version: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].N, nil
}

// BumpLedgerVersion increments and returns the portfolio's ledger version.
func (s *LedgerStore) BumpLedgerVersion(ctx context.Context, portfolioID string) (int64, error) {
	v, err := s.increment(ctx, tableLedgerVersion, portfolioID, map[string]any{"portfolio_id": portfolioID})
	if err != nil {
		return 0, fmt.Errorf("failed to bump ledger version: %w", err)
	}
	return v, nil
}

func (s *LedgerStore) Close() error {
	return nil
}

// Compile-time check
var _ interfaces.LedgerStore = (*LedgerStore)(nil)
