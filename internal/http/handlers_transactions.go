package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/services"
	"finsight/internal/storage"
)

type uploadResponse struct {
	Imported     int                `json:"imported"`
	Errors       []core.RowError    `json:"errors,omitempty"`
	Transactions []core.Transaction `json:"transactions"`
}

type transactionListResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Pagination   pagination         `json:"pagination"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (s *Server) handleUploadTransactions(w http.ResponseWriter, r *http.Request, owner string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(fmt.Sprintf("File exceeds the %d byte upload limit.", tooLarge.Limit)).Write(w)
			return
		}
		BadRequestError("No file uploaded. Please upload a CSV file.").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("No file uploaded. Please upload a CSV file.").Write(w)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		BadRequestError("Only CSV files are allowed.").Write(w)
		return
	}

	res, err := s.svc.Transactions.Import(r.Context(), owner, file)
	if err != nil {
		if services.IsNoValidRows(err) && res != nil {
			BadRequestError("No valid transactions found in CSV file.").Errors(res.Errors).Write(w)
			return
		}
		writeError(w, r, err, "processing CSV file")
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Message(fmt.Sprintf("Successfully imported %d transactions.", res.Imported)).
		Data(uploadResponse{Imported: res.Imported, Errors: res.Errors, Transactions: res.Transactions}).
		Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	var in services.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err, "creating transaction")
		return
	}
	in.Description = sanitizeInput(in.Description)

	txn, err := s.svc.Transactions.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err, "creating transaction")
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Transaction created successfully.").
		Data(map[string]any{"transaction": txn}).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, owner string) {
	filter, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "fetching transactions")
		return
	}

	page, err := s.svc.Transactions.List(r.Context(), owner, filter)
	if err != nil {
		writeError(w, r, err, "fetching transactions")
		return
	}

	NewJSONResponse().Data(transactionListResponse{
		Transactions: page.Transactions,
		Pagination:   newPagination(page),
	}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")

	var in services.TransactionUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err, "updating transaction")
		return
	}
	if in.Description != nil {
		d := sanitizeInput(*in.Description)
		in.Description = &d
	}

	txn, err := s.svc.Transactions.Update(r.Context(), owner, id, in)
	if err != nil {
		writeError(w, r, err, "updating transaction")
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Transaction updated", log.FieldTransaction, id)
	NewJSONResponse().
		Message("Transaction updated successfully.").
		Data(map[string]any{"transaction": txn}).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Transactions.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, r, err, "deleting transaction")
		return
	}
	NewJSONResponse().Message("Transaction deleted successfully.").Write(w)
}

func newPagination(p storage.TransactionPage) pagination {
	return pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages()}
}
