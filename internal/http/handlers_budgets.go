package http

import (
	"net/http"

	"finsight/internal/services"
)

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request, owner string) {
	var in services.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err, "setting budget")
		return
	}

	budget, err := s.svc.Budgets.Upsert(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err, "setting budget")
		return
	}

	NewJSONResponse().
		Message("Budget set successfully.").
		Data(map[string]any{"budget": budget}).
		Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, owner string) {
	month, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "fetching budget")
		return
	}

	budget, err := s.svc.Budgets.Get(r.Context(), owner, month)
	if err != nil {
		writeError(w, r, err, "fetching budget")
		return
	}
	NewJSONResponse().Data(map[string]any{"budget": budget}).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, owner string) {
	budgets, err := s.svc.Budgets.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err, "fetching budgets")
		return
	}
	NewJSONResponse().Data(map[string]any{"budgets": budgets}).Write(w)
}
