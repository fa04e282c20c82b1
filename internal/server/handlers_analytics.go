package server

import (
	"net/http"
	"strconv"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// analyticsParams reads ?range= and ?benchmark=. An empty range uses the
// configured default.
func analyticsParams(r *http.Request) (string, interfaces.AnalyticsRequest) {
	q := r.URL.Query()
	return q.Get("range"), interfaces.AnalyticsRequest{Benchmark: q.Get("benchmark")}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rangeToken, req := analyticsParams(r)

	report, err := s.app.AnalyticsService.GetAnalytics(r.Context(), portfolioID, rangeToken, req)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsChart(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rangeToken, req := analyticsParams(r)

	png, err := s.app.AnalyticsService.RenderChart(r.Context(), portfolioID, rangeToken, req)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		s.logger.Warn().Err(err).
			Str("portfolio", portfolioID).
			Str("request_id", common.ResolveRequestID(r.Context())).
			Msg("Failed to write chart")
	}
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rangeToken, req := analyticsParams(r)

	summary, err := s.app.AnalyticsService.Summarize(r.Context(), portfolioID, rangeToken, req)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
