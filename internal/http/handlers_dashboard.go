package http

import (
	"net/http"
)

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request, owner string) {
	month, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "fetching dashboard summary")
		return
	}

	summary, err := s.svc.Dashboard.Summary(r.Context(), owner, month)
	if err != nil {
		writeError(w, r, err, "fetching dashboard summary")
		return
	}
	NewJSONResponse().Data(summary).Write(w)
}

func (s *Server) handleDashboardYearly(w http.ResponseWriter, r *http.Request, owner string) {
	year, err := ParseYearQuery(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err, "fetching yearly overview")
		return
	}

	overview, err := s.svc.Dashboard.Yearly(r.Context(), owner, year)
	if err != nil {
		writeError(w, r, err, "fetching yearly overview")
		return
	}
	NewJSONResponse().Data(overview).Write(w)
}
