package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Portfolios
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolios)
}

// routePortfolios dispatches /api/portfolios/{id}/... to the appropriate handler:
//
//	{id}
//	{id}/analytics, {id}/analytics/chart, {id}/analytics/summary
//	{id}/assets
//	{id}/assets/{assetId}
//	{id}/assets/{assetId}/import
//	{id}/assets/{assetId}/transactions
//	{id}/assets/{assetId}/transactions/{txId}
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/portfolios/"))
	if len(parts) == 0 {
		s.handlePortfolios(w, r)
		return
	}

	id := parts[0]
	if !s.authorizePortfolio(w, r, id) {
		return
	}

	switch {
	case len(parts) == 1:
		s.handlePortfolio(w, r, id)
	case parts[1] == "analytics" && len(parts) == 2:
		s.handleAnalytics(w, r, id)
	case parts[1] == "analytics" && len(parts) == 3 && parts[2] == "chart":
		s.handleAnalyticsChart(w, r, id)
	case parts[1] == "analytics" && len(parts) == 3 && parts[2] == "summary":
		s.handleAnalyticsSummary(w, r, id)
	case parts[1] == "assets":
		s.routeAssets(w, r, id, parts[2:])
	default:
		WriteErrorWithCode(w, http.StatusNotFound, "Not found", codeNotFound)
	}
}

func (s *Server) routeAssets(w http.ResponseWriter, r *http.Request, portfolioID string, parts []string) {
	switch {
	case len(parts) == 0:
		s.handleAssetCreate(w, r, portfolioID)
	case len(parts) == 1:
		s.handleAsset(w, r, portfolioID, parts[0])
	case len(parts) == 2 && parts[1] == "import":
		s.handleTransactionImport(w, r, portfolioID, parts[0])
	case len(parts) == 2 && parts[1] == "transactions":
		s.handleTransactions(w, r, portfolioID, parts[0])
	case len(parts) == 3 && parts[1] == "transactions":
		s.handleTransaction(w, r, portfolioID, parts[0], parts[2])
	default:
		WriteErrorWithCode(w, http.StatusNotFound, "Not found", codeNotFound)
	}
}

// authorizePortfolio checks the portfolio exists and belongs to the caller.
// Portfolios of other users are reported as not found.
func (s *Server) authorizePortfolio(w http.ResponseWriter, r *http.Request, portfolioID string) bool {
	p, err := s.app.Store.GetPortfolio(r.Context(), portfolioID)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return false
	}
	if p.UserID != common.ResolveUserID(r.Context()) {
		WriteErrorWithCode(w, http.StatusNotFound, "portfolio "+portfolioID+": not found", codeNotFound)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
