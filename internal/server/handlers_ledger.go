package server

import (
	"net/http"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// maxImportBytes caps a CSV import body.
const maxImportBytes = 5 << 20

type createPortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handlePortfolios serves GET (the caller's portfolios with totals) and POST (create).
func (s *Server) handlePortfolios(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ctx := r.Context()
	userID := common.ResolveUserID(ctx)

	if r.Method == http.MethodGet {
		valuations, err := s.app.ValuationService.ValueUserPortfolios(ctx, userID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"portfolios": valuations})
		return
	}

	var req createPortfolioRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	p, err := s.app.LedgerService.CreatePortfolio(ctx, userID, req.Name, req.Description)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// handlePortfolio serves GET (valuation) and DELETE for one portfolio.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.LedgerService.DeletePortfolio(r.Context(), portfolioID); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	valuation, err := s.app.ValuationService.ValuePortfolio(r.Context(), portfolioID)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, valuation)
}

func (s *Server) handleAssetCreate(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.Asset
	if !DecodeJSON(w, r, &req) {
		return
	}
	asset, err := s.app.LedgerService.CreateAsset(r.Context(), portfolioID, req)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request, portfolioID, assetID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if err := s.app.LedgerService.DeleteAsset(r.Context(), portfolioID, assetID); err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTransactions serves GET (ledger in replay order) and POST (append).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, portfolioID, assetID string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodGet {
		records, err := s.app.LedgerService.ListTransactions(ctx, portfolioID, assetID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"transactions": records})
		return
	}

	var rec models.TransactionRecord
	if !DecodeJSON(w, r, &rec) {
		return
	}
	created, err := s.app.LedgerService.AppendTransaction(ctx, portfolioID, assetID, rec)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleTransaction serves PUT (replace) and DELETE for one ledger entry.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request, portfolioID, assetID, txID string) {
	if !RequireMethod(w, r, http.MethodPut, http.MethodDelete) {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodDelete {
		if err := s.app.LedgerService.DeleteTransaction(ctx, portfolioID, assetID, txID); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var rec models.TransactionRecord
	if !DecodeJSON(w, r, &rec) {
		return
	}
	rec.ID = txID
	updated, err := s.app.LedgerService.UpdateTransaction(ctx, portfolioID, assetID, rec)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// handleTransactionImport appends every row of a CSV body, or none of them.
func (s *Server) handleTransactionImport(w http.ResponseWriter, r *http.Request, portfolioID, assetID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if r.Body == nil || r.Body == http.NoBody {
		WriteErrorWithCode(w, http.StatusBadRequest, "CSV body is required", codeInvalidInput)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	records, err := s.app.LedgerService.ImportCSV(r.Context(), portfolioID, assetID, body)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"imported":     len(records),
		"transactions": records,
	})
}
