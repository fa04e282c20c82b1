package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	tcommon "github.com/bobmcallan/folio/test/common"
)

// seed creates a portfolio holding 10 AAPL bought 20 days ago, with ten days
// of daily closes ending today.
func seed(t *testing.T, f *fixture, headers ...string) (portfolioID, assetID string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/portfolios", map[string]string{"name": "Main"}, headers...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	portfolioID = decode[models.Portfolio](t, rec).ID

	rec = f.do(t, http.MethodPost, "/api/portfolios/"+portfolioID+"/assets",
		map[string]interface{}{"symbol": "aapl", "type": "equity"}, headers...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assetID = decode[models.Asset](t, rec).ID

	rec = f.do(t, http.MethodPost, "/api/portfolios/"+portfolioID+"/assets/"+assetID+"/transactions",
		map[string]interface{}{
			"kind":     "buy",
			"date":     today().AddDate(0, 0, -20),
			"quantity": 10,
			"price":    100,
		}, headers...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	f.feed.SetPrice("AAPL", 110, today())
	f.feed.Series["AAPL"] = tcommon.DailySeries(today().AddDate(0, 0, -9),
		100, 101, 102, 103, 104, 105, 106, 107, 108, 110)
	return portfolioID, assetID
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.Version, decode[common.VersionInfo](t, rec).Version)

	rec = f.do(t, http.MethodPost, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPortfolioValuation(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, _ := seed(t, f)

	rec := f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v := decode[models.PortfolioValuation](t, rec)
	assert.Equal(t, "Main", v.Name)
	assert.InDelta(t, 1000, v.CostBasis, 1e-9)
	assert.InDelta(t, 1100, v.CurrentValue, 1e-9)
	require.Len(t, v.Positions, 1)
	assert.InDelta(t, 100, v.Positions[0].Allocation, 1e-9)

	rec = f.do(t, http.MethodGet, "/api/portfolios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Portfolios []models.PortfolioValuation `json:"portfolios"`
	}](t, rec)
	require.Len(t, list.Portfolios, 1)
	assert.Equal(t, portfolioID, list.Portfolios[0].ID)
}

func TestCreatePortfolio_Invalid(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/portfolios", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeInvalidInput, decode[ErrorResponse](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/portfolios", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioNotFound(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/portfolios/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decode[ErrorResponse](t, rec).Code)

	rec = f.do(t, http.MethodGet, "/api/portfolios/missing/analytics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioOwnership(t *testing.T) {
	f := newFixture(t, func(c *common.Config) { c.Auth.Enabled = true })
	alice := bearer(t, "alice")
	portfolioID, _ := seed(t, f, "Authorization", alice)

	rec := f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID, nil, "Authorization", alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID, nil, "Authorization", bearer(t, "mallory"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/portfolios", nil, "Authorization", bearer(t, "mallory"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"portfolios":[]`)

	rec = f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, assetID := seed(t, f)
	base := "/api/portfolios/" + portfolioID + "/assets/" + assetID + "/transactions"

	rec := f.do(t, http.MethodPost, base, map[string]interface{}{
		"kind": "sell", "date": today().AddDate(0, 0, -5), "quantity": 4, "price": 105,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sell := decode[models.TransactionRecord](t, rec)
	assert.NotEmpty(t, sell.ID)

	rec = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Transactions []models.TransactionRecord `json:"transactions"`
	}](t, rec)
	require.Len(t, list.Transactions, 2)
	assert.Equal(t, "buy", list.Transactions[0].Kind)
	assert.Equal(t, "sell", list.Transactions[1].Kind)

	rec = f.do(t, http.MethodPut, base+"/"+sell.ID, map[string]interface{}{
		"kind": "sell", "date": today().AddDate(0, 0, -5), "quantity": 2, "price": 105,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.TransactionRecord](t, rec)
	assert.Equal(t, sell.ID, updated.ID)
	require.NotNil(t, updated.Quantity)
	assert.Equal(t, 2.0, *updated.Quantity)

	rec = f.do(t, http.MethodDelete, base+"/"+sell.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, base+"/"+sell.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendTransaction_Malformed(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, assetID := seed(t, f)
	base := "/api/portfolios/" + portfolioID + "/assets/" + assetID + "/transactions"

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown kind", map[string]interface{}{"kind": "split", "date": today(), "quantity": 1, "price": 1}},
		{"buy without price", map[string]interface{}{"kind": "buy", "date": today(), "quantity": 1}},
		{"dividend without amount", map[string]interface{}{"kind": "dividend", "date": today()}},
		{"missing date", map[string]interface{}{"kind": "buy", "quantity": 1, "price": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, base, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, codeMalformed, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, assetID := seed(t, f)
	path := "/api/portfolios/" + portfolioID + "/assets/" + assetID + "/import"

	good := "date,kind,quantity,price,fees\n" +
		"2025-01-02,buy,5,90,1\n" +
		"2025-03-01,dividend,,12.5,\n"
	rec := f.do(t, http.MethodPost, path, good, "Content-Type", "text/csv")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode[map[string]interface{}](t, rec)["imported"])

	bad := "date,kind,quantity,price\n" +
		"2025-01-02,buy,5,90\n" +
		"2025-01-03,buy,,90\n"
	rec = f.do(t, http.MethodPost, path, bad, "Content-Type", "text/csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "line 3")

	txs, err := f.store.ListTransactions(t.Context(), assetID)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestDeleteAssetAndPortfolio(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, assetID := seed(t, f)

	rec := f.do(t, http.MethodDelete, "/api/portfolios/"+portfolioID+"/assets/"+assetID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/portfolios/"+portfolioID+"/assets/"+assetID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/portfolios/"+portfolioID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, _ := seed(t, f)

	rec := f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID+"/analytics?range=1M&benchmark=none.indx", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[models.AnalyticsReport](t, rec)
	assert.Equal(t, "1M", report.Range)
	assert.Equal(t, 10, report.DataPoints)
	assert.False(t, report.Insufficient)
	assert.False(t, report.HasBenchmarkData)
	require.NotNil(t, report.PerformanceMetrics.TotalReturn)
	assert.InDelta(t, 0.10, *report.PerformanceMetrics.TotalReturn, 1e-9)
}

func TestAnalyticsChart(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, _ := seed(t, f)

	rec := f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID+"/analytics/chart?range=1M", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	f.feed.Series["AAPL"] = nil
	f.app.AnalyticsService.InvalidatePortfolio(portfolioID)
	rec = f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID+"/analytics/chart?range=1M", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeInsufficient, decode[ErrorResponse](t, rec).Code)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestAnalyticsChart_WriteFailureLogged(t *testing.T) {
	logs := &syncBuffer{}
	f := newFixtureWithLogger(t, nil, common.NewLoggerWithOutput("warn", logs))
	portfolioID, _ := seed(t, f)

	w := failingWriter{httptest.NewRecorder()}
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/portfolios/"+portfolioID+"/analytics/chart?range=1M", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, logs.String(), "Failed to write chart")
	assert.Contains(t, logs.String(), portfolioID)
}

func TestAnalyticsSummary(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, _ := seed(t, f)

	rec := f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID+"/analytics/summary?range=1M", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Steady quarter.", decode[map[string]string](t, rec)["summary"])
	require.Len(t, f.narrator.Prompts, 1)

	f.narrator.Err = errors.New("quota exceeded")
	rec = f.do(t, http.MethodGet, "/api/portfolios/"+portfolioID+"/analytics/summary?range=1M", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode[ErrorResponse](t, rec).Error)
}

func TestUnknownRoutes(t *testing.T) {
	f := newFixture(t, nil)
	portfolioID, assetID := seed(t, f)

	for _, path := range []string{
		"/api/portfolios/" + portfolioID + "/unknown",
		"/api/portfolios/" + portfolioID + "/analytics/unknown",
		"/api/portfolios/" + portfolioID + "/assets/" + assetID + "/unknown",
	} {
		rec := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := f.do(t, http.MethodPatch, "/api/portfolios/"+portfolioID, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
