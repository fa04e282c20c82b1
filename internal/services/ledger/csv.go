package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

/*
CSV layout

date,kind,quantity,price,fees
2024-01-15,buy,10,185.20,1.50
2024-03-01,dividend,,2.40,
2024-06-10,sell,4,201.10,1.50

- date = "2006-01-02"
- dividend rows carry the cash amount in price and leave quantity empty
- fees is optional and defaults to 0
- columns may appear in any order; the header row is required
*/

const csvDateLayout = "2006-01-02"

var requiredColumns = []string{"date", "kind", "quantity", "price"}

// RowError reports the first invalid row of an import. Line is 1-based and
// counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseCSV reads ledger rows for assetID. Any invalid row fails the whole file.
func ParseCSV(r io.Reader, assetID string) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed("csv is empty")
	}
	if err != nil {
		return nil, malformed("csv header: %v", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, malformed("csv header is missing column %q", c)
		}
	}

	var txs []models.Transaction
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &RowError{Line: perr.Line, Err: malformed("%v", perr.Err)}
			}
			return nil, malformed("csv: %v", err)
		}
		line, _ := reader.FieldPos(0)
		if blankRow(row) {
			continue
		}

		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		rec.AssetID = assetID
		tx, err := validateTransaction(rec)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func blankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseAmount reads a decimal column. Empty means absent.
func parseAmount(row []string, cols map[string]int, name string) (*float64, error) {
	raw := strings.ReplaceAll(field(row, cols, name), ",", "")
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, malformed("invalid %s %q", name, raw)
	}
	v := d.InexactFloat64()
	return &v, nil
}

func parseRow(row []string, cols map[string]int) (models.TransactionRecord, error) {
	var rec models.TransactionRecord

	date, err := time.Parse(csvDateLayout, field(row, cols, "date"))
	if err != nil {
		return rec, malformed("invalid date %q", field(row, cols, "date"))
	}
	rec.Date = date
	rec.Kind = field(row, cols, "kind")

	if rec.Quantity, err = parseAmount(row, cols, "quantity"); err != nil {
		return rec, err
	}
	if rec.Price, err = parseAmount(row, cols, "price"); err != nil {
		return rec, err
	}
	fees, err := parseAmount(row, cols, "fees")
	if err != nil {
		return rec, err
	}
	if fees != nil {
		rec.Fees = *fees
	}
	return rec, nil
}

// ImportCSV appends every row of r to the asset's ledger, or none of them.
// Rows are validated before anything is written; if the store fails part
// way or the ledger version cannot be bumped, the appended entries are
// removed again.
func (s *Service) ImportCSV(ctx context.Context, portfolioID, assetID string, r io.Reader) ([]models.TransactionRecord, error) {
	if _, err := s.assetInPortfolio(ctx, portfolioID, assetID); err != nil {
		return nil, err
	}
	txs, err := ParseCSV(r, assetID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []models.TransactionRecord{}, nil
	}

	appended := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		tx := txs[i]
		tx.ID = newID()
		if err := s.store.AppendTransaction(ctx, &tx); err != nil {
			s.rollback(ctx, assetID, appended)
			return nil, fmt.Errorf("failed to import row %d: %w", i+1, err)
		}
		appended = append(appended, tx)
	}
	if err := s.ledgerChanged(ctx, portfolioID); err != nil {
		s.rollback(ctx, assetID, appended)
		return nil, err
	}

	s.logger.Info().Str("portfolio", portfolioID).Str("asset", assetID).
		Int("rows", len(appended)).Msg("Ledger CSV imported")
	return records(appended), nil
}

func (s *Service) rollback(ctx context.Context, assetID string, appended []models.Transaction) {
	for _, tx := range appended {
		if err := s.store.DeleteTransaction(ctx, assetID, tx.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn().Err(err).Str("asset", assetID).Str("id", tx.ID).Msg("Ledger rollback failed")
		}
	}
}
