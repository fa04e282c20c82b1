package api

// End-to-end flow over HTTP against a real SurrealDB ledger store.
// Prices come from the in-memory feed so results are deterministic.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/server"
	"github.com/bobmcallan/folio/internal/storage/surrealdb"
	mocks "github.com/bobmcallan/folio/test/common"
	tcommon "github.com/bobmcallan/folio/tests/common"
)

type env struct {
	url  string
	feed *mocks.MockPriceFeed
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sc := tcommon.StartSurrealDB(t)

	cfg := common.NewDefaultConfig()
	cfg.Storage.Address = sc.Address()
	cfg.Storage.Namespace = "folio_test"
	cfg.Storage.Database = fmt.Sprintf("api_%d", time.Now().UnixNano()%1000000)
	cfg.Scheduler.PriceRefresh = ""

	logger := common.NewSilentLogger()
	manager, err := surrealdb.NewManager(context.Background(), logger, cfg.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	feed := mocks.NewMockPriceFeed()
	a := app.Build(cfg, logger, manager.LedgerStore(), feed, nil)
	t.Cleanup(a.Close)

	ts := httptest.NewServer(server.NewServer(a).Handler())
	t.Cleanup(ts.Close)

	return &env{url: ts.URL, feed: feed}
}

func (e *env) call(t *testing.T, method, path, contentType, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.url+path, reader)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *env) postJSON(t *testing.T, path string, v interface{}) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return e.call(t, http.MethodPost, path, "application/json", buf.String())
}

func TestLedgerToAnalyticsFlow(t *testing.T) {
	e := newEnv(t)
	today := models.CalendarDate(time.Now())

	status, body := e.postJSON(t, "/api/portfolios", map[string]string{"name": "Retirement"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var portfolio models.Portfolio
	require.NoError(t, json.Unmarshal(body, &portfolio))

	status, body = e.postJSON(t, "/api/portfolios/"+portfolio.ID+"/assets",
		map[string]string{"symbol": "msft", "type": "equity"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var asset models.Asset
	require.NoError(t, json.Unmarshal(body, &asset))
	assert.Equal(t, "MSFT", asset.Symbol)

	csv := fmt.Sprintf("date,kind,quantity,price,fees\n%s,buy,20,50,0\n%s,dividend,,8,0\n",
		today.AddDate(0, 0, -30).Format("2006-01-02"),
		today.AddDate(0, 0, -2).Format("2006-01-02"))
	status, body = e.call(t, http.MethodPost, "/api/portfolios/"+portfolio.ID+"/assets/"+asset.ID+"/import", "text/csv", csv)
	require.Equal(t, http.StatusCreated, status, string(body))

	e.feed.SetPrice("MSFT", 55, today)
	e.feed.Series["MSFT"] = mocks.DailySeries(today.AddDate(0, 0, -4), 50, 51, 53, 52, 55)

	status, body = e.call(t, http.MethodGet, "/api/portfolios/"+portfolio.ID, "", "")
	require.Equal(t, http.StatusOK, status, string(body))
	var valuation models.PortfolioValuation
	require.NoError(t, json.Unmarshal(body, &valuation))
	assert.InDelta(t, 1000, valuation.CostBasis, 1e-9)
	assert.InDelta(t, 1100, valuation.CurrentValue, 1e-9)
	assert.InDelta(t, 8, valuation.TotalDividends, 1e-9)

	status, body = e.call(t, http.MethodGet, "/api/portfolios/"+portfolio.ID+"/analytics?range=1M", "", "")
	require.Equal(t, http.StatusOK, status, string(body))
	var report models.AnalyticsReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 5, report.DataPoints)
	require.NotNil(t, report.PerformanceMetrics.TotalReturn)
	assert.InDelta(t, 0.10, *report.PerformanceMetrics.TotalReturn, 1e-9)

	status, body = e.call(t, http.MethodGet, "/api/portfolios/"+portfolio.ID+"/assets/"+asset.ID+"/transactions", "", "")
	require.Equal(t, http.StatusOK, status, string(body))
	var list struct {
		Transactions []models.TransactionRecord `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Transactions, 2)
	assert.Equal(t, int64(1), list.Transactions[0].Seq)
	assert.Equal(t, int64(2), list.Transactions[1].Seq)

	status, _ = e.call(t, http.MethodDelete, "/api/portfolios/"+portfolio.ID, "", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = e.call(t, http.MethodGet, "/api/portfolios/"+portfolio.ID+"/analytics", "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestImportRejectsWholeFile(t *testing.T) {
	e := newEnv(t)

	status, body := e.postJSON(t, "/api/portfolios", map[string]string{"name": "Main"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var portfolio models.Portfolio
	require.NoError(t, json.Unmarshal(body, &portfolio))

	status, body = e.postJSON(t, "/api/portfolios/"+portfolio.ID+"/assets",
		map[string]string{"symbol": "VTI", "type": "equity"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var asset models.Asset
	require.NoError(t, json.Unmarshal(body, &asset))

	csv := "date,kind,quantity,price\n2025-01-02,buy,5,90\n2025-01-03,sell,,95\n"
	status, body = e.call(t, http.MethodPost, "/api/portfolios/"+portfolio.ID+"/assets/"+asset.ID+"/import", "text/csv", csv)
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = e.call(t, http.MethodGet, "/api/portfolios/"+portfolio.ID+"/assets/"+asset.ID+"/transactions", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"transactions":[]`)
}
