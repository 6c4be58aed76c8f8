package http

import (
	"net/http"
	"strings"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, owner string) {
	month, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "analyzing transactions")
		return
	}

	summary, err := s.svc.Insights.Analyze(r.Context(), owner, month)
	if err != nil {
		writeError(w, r, err, "analyzing transactions")
		return
	}

	NewJSONResponse().
		Message("AI analysis completed successfully.").
		Data(summary).
		Write(w)
}

// handleAnalyzeAsync queues the analysis for the worker and returns at once.
func (s *Server) handleAnalyzeAsync(w http.ResponseWriter, r *http.Request, owner string) {
	month, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "queueing analysis")
		return
	}

	if err := s.svc.Insights.RequestAnalysis(r.Context(), owner, month); err != nil {
		writeError(w, r, err, "queueing analysis")
		return
	}

	NewJSONResponse().
		Status(http.StatusAccepted).
		Message("AI analysis queued.").
		Data(map[string]any{"month": month}).
		Write(w)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request, owner string) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	summaries, err := s.svc.Insights.Summaries(r.Context(), owner, month)
	if err != nil {
		writeError(w, r, err, "fetching AI summaries")
		return
	}
	NewJSONResponse().Data(map[string]any{"summaries": summaries}).Write(w)
}
