// Package common provides shared test infrastructure
package common

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// MockLedgerStore is an in-memory LedgerStore
type MockLedgerStore struct {
	mu           sync.Mutex
	Portfolios   map[string]models.Portfolio
	Assets       map[string]models.Asset
	Transactions map[string][]models.Transaction // by asset id, insertion order
	Versions     map[string]int64
	nextSeq      map[string]int64

	ListTransactionsCalls int
	Err                   error // returned by every call when set

	// BumpErr fails BumpLedgerVersion. With BumpFailures > 0 only that many
	// calls fail and later ones succeed.
	BumpErr      error
	BumpFailures int
	BumpCalls    int
}

// NewMockLedgerStore creates an empty in-memory store
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{
		Portfolios:   make(map[string]models.Portfolio),
		Assets:       make(map[string]models.Asset),
		Transactions: make(map[string][]models.Transaction),
		Versions:     make(map[string]int64),
		nextSeq:      make(map[string]int64),
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, common.ErrNotFound)
}

func (m *MockLedgerStore) ListTransactions(_ context.Context, assetID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListTransactionsCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.Assets[assetID]; !ok {
		return nil, notFound("asset", assetID)
	}
	out := make([]models.Transaction, len(m.Transactions[assetID]))
	copy(out, m.Transactions[assetID])
	return out, nil
}

func (m *MockLedgerStore) ListAssets(_ context.Context, portfolioID string) ([]models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Asset
	for _, a := range m.Assets {
		if a.PortfolioID == portfolioID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockLedgerStore) ListPortfolios(_ context.Context, userID string) ([]models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Portfolio
	for _, p := range m.Portfolios {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockLedgerStore) GetPortfolio(_ context.Context, portfolioID string) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Portfolios[portfolioID]
	if !ok {
		return nil, notFound("portfolio", portfolioID)
	}
	return &p, nil
}

func (m *MockLedgerStore) GetAsset(_ context.Context, assetID string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.Assets[assetID]
	if !ok {
		return nil, notFound("asset", assetID)
	}
	return &a, nil
}

func (m *MockLedgerStore) SavePortfolio(_ context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Portfolios[p.ID] = *p
	return nil
}

func (m *MockLedgerStore) SaveAsset(_ context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Assets[a.ID] = *a
	return nil
}

func (m *MockLedgerStore) AppendTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Assets[tx.AssetID]; !ok {
		return notFound("asset", tx.AssetID)
	}
	m.nextSeq[tx.AssetID]++
	tx.Seq = m.nextSeq[tx.AssetID]
	m.Transactions[tx.AssetID] = append(m.Transactions[tx.AssetID], *tx)
	return nil
}

func (m *MockLedgerStore) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	txs := m.Transactions[tx.AssetID]
	for i := range txs {
		if txs[i].ID == tx.ID {
			tx.Seq = txs[i].Seq
			txs[i] = *tx
			return nil
		}
	}
	return notFound("transaction", tx.ID)
}

func (m *MockLedgerStore) DeleteTransaction(_ context.Context, assetID, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	txs := m.Transactions[assetID]
	for i := range txs {
		if txs[i].ID == txID {
			m.Transactions[assetID] = append(txs[:i:i], txs[i+1:]...)
			return nil
		}
	}
	return notFound("transaction", txID)
}

func (m *MockLedgerStore) DeleteAsset(_ context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Assets[assetID]; !ok {
		return notFound("asset", assetID)
	}
	delete(m.Assets, assetID)
	delete(m.Transactions, assetID)
	return nil
}

func (m *MockLedgerStore) DeletePortfolio(_ context.Context, portfolioID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Portfolios[portfolioID]; !ok {
		return notFound("portfolio", portfolioID)
	}
	for id, a := range m.Assets {
		if a.PortfolioID == portfolioID {
			delete(m.Assets, id)
			delete(m.Transactions, id)
		}
	}
	delete(m.Portfolios, portfolioID)
	delete(m.Versions, portfolioID)
	return nil
}

func (m *MockLedgerStore) LedgerVersion(_ context.Context, portfolioID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Versions[portfolioID], nil
}

func (m *MockLedgerStore) BumpLedgerVersion(_ context.Context, portfolioID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.BumpCalls++
	if m.BumpErr != nil && (m.BumpFailures == 0 || m.BumpCalls <= m.BumpFailures) {
		return 0, m.BumpErr
	}
	m.Versions[portfolioID]++
	return m.Versions[portfolioID], nil
}

func (m *MockLedgerStore) Close() error { return nil }

// MockPriceFeed serves canned quotes and price series
type MockPriceFeed struct {
	mu         sync.Mutex
	Quotes     map[string]models.Quote
	Series     map[string][]models.PricePoint // ascending
	Benchmarks map[string][]models.PricePoint // ascending
	QuoteErr   error                          // returned for every quote when set
	SeriesErr  error                          // returned for every history request when set

	CurrentPriceCalls int
	SeriesCalls       int
}

// NewMockPriceFeed creates an empty price feed
func NewMockPriceFeed() *MockPriceFeed {
	return &MockPriceFeed{
		Quotes:     make(map[string]models.Quote),
		Series:     make(map[string][]models.PricePoint),
		Benchmarks: make(map[string][]models.PricePoint),
	}
}

// SetPrice registers a quote stamped at ts
func (m *MockPriceFeed) SetPrice(symbol string, price float64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[strings.ToUpper(symbol)] = models.Quote{Symbol: strings.ToUpper(symbol), Price: price, Timestamp: ts, Source: "mock"}
}

func (m *MockPriceFeed) CurrentPrice(_ context.Context, symbol string) (models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentPriceCalls++
	if m.QuoteErr != nil {
		return models.Quote{}, m.QuoteErr
	}
	q, ok := m.Quotes[strings.ToUpper(symbol)]
	if !ok {
		return models.Quote{}, fmt.Errorf("%s: %w", symbol, common.ErrPriceUnavailable)
	}
	return q, nil
}

func (m *MockPriceFeed) HistoricalSeries(_ context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeriesCalls++
	if m.SeriesErr != nil {
		return nil, m.SeriesErr
	}
	return clip(m.Series[strings.ToUpper(symbol)], start, end), nil
}

func (m *MockPriceFeed) BenchmarkSeries(_ context.Context, benchmarkID string, start, end time.Time) ([]models.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clip(m.Benchmarks[strings.ToUpper(benchmarkID)], start, end), nil
}

func clip(points []models.PricePoint, start, end time.Time) []models.PricePoint {
	var out []models.PricePoint
	for _, p := range points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// DailySeries builds an ascending close series, one point per calendar day.
func DailySeries(start time.Time, closes ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

// MockNarrativeGenerator records prompts and returns a fixed response
type MockNarrativeGenerator struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockNarrativeGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

var (
	_ interfaces.LedgerStore        = (*MockLedgerStore)(nil)
	_ interfaces.PriceFeed          = (*MockPriceFeed)(nil)
	_ interfaces.NarrativeGenerator = (*MockNarrativeGenerator)(nil)
)
