package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
	"finsight/internal/ingest"
	"finsight/internal/log"
	"finsight/internal/storage"
)

// Invalidator drops cached views derived from an owner's data.
type Invalidator interface {
	Invalidate(owner string)
}

// TransactionInput is a manual entry as received from a client.
type TransactionInput struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category,omitempty"`
}

// TransactionUpdate carries the fields of a partial update as strings so
// they can be normalised the same way manual entries are.
type TransactionUpdate struct {
	Date        *string  `json:"date,omitempty"`
	Description *string  `json:"description,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Category    *string  `json:"category,omitempty"`
}

type ImportResult struct {
	Imported     int                `json:"imported"`
	Errors       []core.RowError    `json:"errors"`
	Transactions []core.Transaction `json:"transactions"`
}

// TransactionService handles manual entry, CSV import and edits.
type TransactionService struct {
	store       storage.TransactionStore
	parser      *ingest.Parser
	invalidator Invalidator
	now         func() time.Time
	newID       func() string
}

func NewTransactionService(store storage.TransactionStore, invalidator Invalidator) *TransactionService {
	return &TransactionService{
		store:       store,
		parser:      ingest.NewParser(),
		invalidator: invalidator,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Create stores a manual transaction. A blank category is derived from the
// description.
func (s *TransactionService) Create(ctx context.Context, owner string, in TransactionInput) (core.Transaction, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Description) == "" || in.Amount == nil {
		return core.Transaction{}, core.NewValidationError("", "Please provide date, description, and amount.")
	}

	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	desc := core.NormalizeDescription(in.Description)
	category := core.Classify(desc)
	if strings.TrimSpace(in.Category) != "" {
		if category, err = core.ParseCategory(in.Category); err != nil {
			return core.Transaction{}, err
		}
	}

	now := s.now()
	t := core.Transaction{
		ID:          s.newID(),
		Owner:       owner,
		Date:        date,
		Description: desc,
		Amount:      *in.Amount,
		Category:    category,
		Source:      core.SourceManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.InsertTransactions(ctx, []core.Transaction{t}); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(owner)

	log.FromContext(ctx).WithComponent(log.ComponentTransaction).InfoContext(ctx, "Transaction created",
		log.FieldOwner, owner,
		log.FieldTransaction, t.ID,
		log.FieldCategory, string(t.Category),
		log.FieldAmount, t.Amount)
	return t, nil
}

// Import parses a CSV upload and stores every valid row. Row defects are
// reported in the result; when no row survives the result still carries
// the row errors and the error is ingest.ErrNoValidRows.
func (s *TransactionService) Import(ctx context.Context, owner string, r io.Reader) (*ImportResult, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, core.NewValidationError("userId", "owner is required")
	}

	parsed, err := s.parser.Parse(r)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Errors: parsed.Errors, Transactions: []core.Transaction{}}
	if res.Errors == nil {
		res.Errors = []core.RowError{}
	}
	if err := parsed.Validate(); err != nil {
		return res, err
	}

	now := s.now()
	txns := parsed.Transactions(owner)
	for i := range txns {
		txns[i].ID = s.newID()
		txns[i].CreatedAt = now
		txns[i].UpdatedAt = now
		if err := txns[i].Validate(); err != nil {
			return res, fmt.Errorf("row %d: %w", parsed.Rows[i].Line, err)
		}
	}

	if err := s.store.InsertTransactions(ctx, txns); err != nil {
		return res, fmt.Errorf("save imported transactions: %w", err)
	}
	s.invalidate(owner)

	res.Imported = len(txns)
	res.Transactions = txns
	log.NewStructuredLogger(log.FromContext(ctx)).LogImport(ctx, owner, res.Imported, len(res.Errors))
	return res, nil
}

func (s *TransactionService) List(ctx context.Context, owner string, f storage.TransactionFilter) (storage.TransactionPage, error) {
	if f.Category != "" && !f.Category.IsValid() {
		return storage.TransactionPage{}, core.NewValidationError("category", "unknown category "+string(f.Category))
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return storage.TransactionPage{}, core.NewValidationError("endDate", "endDate is before startDate")
	}
	return s.store.ListTransactions(ctx, owner, f)
}

// Update applies the supplied fields to an existing transaction.
func (s *TransactionService) Update(ctx context.Context, owner, id string, in TransactionUpdate) (core.Transaction, error) {
	patch, err := in.patch()
	if err != nil {
		return core.Transaction{}, err
	}
	if patch.IsEmpty() {
		return core.Transaction{}, core.NewValidationError("", "no fields to update")
	}

	t, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Apply(patch)
	t.UpdatedAt = s.now()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	s.invalidate(owner)
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteTransaction(ctx, owner, id); err != nil {
		return err
	}
	s.invalidate(owner)

	log.FromContext(ctx).WithComponent(log.ComponentTransaction).InfoContext(ctx, "Transaction deleted",
		log.FieldOwner, owner,
		log.FieldTransaction, id)
	return nil
}

func (s *TransactionService) invalidate(owner string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(owner)
	}
}

func (u TransactionUpdate) patch() (core.TransactionPatch, error) {
	var p core.TransactionPatch
	if u.Date != nil {
		d, err := core.ParseDate(*u.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if u.Description != nil {
		desc := core.NormalizeDescription(*u.Description)
		p.Description = &desc
	}
	p.Amount = u.Amount
	if u.Category != nil {
		c, err := core.ParseCategory(*u.Category)
		if err != nil {
			return p, err
		}
		p.Category = &c
	}
	return p, nil
}

// IsNoValidRows reports whether err means an import produced nothing.
func IsNoValidRows(err error) bool {
	return errors.Is(err, ingest.ErrNoValidRows)
}
