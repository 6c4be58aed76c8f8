package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finsight/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, owner, date, description, amount, category, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Owner, core.FormatDate(t.Date), t.Description, t.Amount,
			string(t.Category), string(t.Source),
			t.CreatedAt.UTC().Format(timestampLayout), t.UpdatedAt.UTC().Format(timestampLayout),
		); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}

	slog.DebugContext(ctx, "Transactions saved to SQLite", "owner", txns[0].Owner, "count", len(txns))
	return nil
}

const transactionColumns = `id, owner, date, description, amount, category, source, created_at, updated_at`

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner = ? AND id = ?`, owner, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string, f TransactionFilter) (TransactionPage, error) {
	f = f.Normalize()
	where, args := transactionWhere(owner, f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return TransactionPage{}, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY date DESC, created_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns, err := collectTransactions(rows)
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{Transactions: txns, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

func (r *SQLiteRepository) TransactionsBetween(ctx context.Context, owner string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE owner = ? AND date >= ? AND date < ?
		 ORDER BY date ASC, created_at ASC, id ASC`,
		owner, core.FormatDate(from), core.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query transactions between: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, description = ?, amount = ?, category = ?, updated_at = ?
		WHERE owner = ? AND id = ?`,
		core.FormatDate(t.Date), t.Description, t.Amount, string(t.Category),
		t.UpdatedAt.UTC().Format(timestampLayout), t.Owner, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectAffected(res, "transaction", t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectAffected(res, "transaction", id)
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	cb, err := json.Marshal(b.CategoryBudgets.Fill())
	if err != nil {
		return fmt.Errorf("encode category budgets: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO budgets (owner, month, total_budget, category_budgets, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner, month) DO UPDATE SET
			total_budget = excluded.total_budget,
			category_budgets = excluded.category_budgets,
			updated_at = excluded.updated_at`,
		b.Owner, b.Month, b.TotalBudget, string(cb), b.UpdatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, owner, month string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT owner, month, total_budget, category_budgets, updated_at
		FROM budgets WHERE owner = ? AND month = ?`, owner, month)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, NotFound("budget", month)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner, month, total_budget, category_budgets, updated_at
		FROM budgets WHERE owner = ? ORDER BY month DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertSummary(ctx context.Context, s core.MonthlySummary) error {
	byCat, err := json.Marshal(s.ByCategory.Fill())
	if err != nil {
		return fmt.Errorf("encode category totals: %w", err)
	}
	ins, err := json.Marshal(s.Insight)
	if err != nil {
		return fmt.Errorf("encode insight: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO monthly_summaries (owner, month, total_spending, by_category, summary, insight, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, month) DO UPDATE SET
			total_spending = excluded.total_spending,
			by_category = excluded.by_category,
			summary = excluded.summary,
			insight = excluded.insight,
			updated_at = excluded.updated_at`,
		s.Owner, s.Month, s.TotalSpending, string(byCat), s.Summary, string(ins),
		s.UpdatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListSummaries(ctx context.Context, owner, month string) ([]core.MonthlySummary, error) {
	query := `SELECT owner, month, total_spending, by_category, summary, insight, updated_at
		FROM monthly_summaries WHERE owner = ?`
	args := []any{owner}
	if month != "" {
		query += ` AND month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY month DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlySummary{}
	for rows.Next() {
		var (
			s                   core.MonthlySummary
			byCat, ins, updated string
		)
		if err := rows.Scan(&s.Owner, &s.Month, &s.TotalSpending, &byCat, &s.Summary, &ins, &updated); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal([]byte(byCat), &s.ByCategory); err != nil {
			return nil, fmt.Errorf("decode category totals: %w", err)
		}
		if err := json.Unmarshal([]byte(ins), &s.Insight); err != nil {
			return nil, fmt.Errorf("decode insight: %w", err)
		}
		s.ByCategory = s.ByCategory.Fill()
		s.UpdatedAt, _ = time.Parse(timestampLayout, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                      core.Transaction
		date, created, updated string
		category, source       string
	)
	if err := row.Scan(&t.ID, &t.Owner, &date, &t.Description, &t.Amount, &category, &source, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	d, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Date = d
	t.Category = core.Category(category)
	t.Source = core.Source(source)
	t.CreatedAt, _ = time.Parse(timestampLayout, created)
	t.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b           core.Budget
		cb, updated string
	)
	if err := row.Scan(&b.Owner, &b.Month, &b.TotalBudget, &cb, &updated); err != nil {
		return core.Budget{}, err
	}
	if err := json.Unmarshal([]byte(cb), &b.CategoryBudgets); err != nil {
		return core.Budget{}, fmt.Errorf("decode category budgets: %w", err)
	}
	b.CategoryBudgets = b.CategoryBudgets.Fill()
	b.UpdatedAt, _ = time.Parse(timestampLayout, updated)
	return b, nil
}

func transactionWhere(owner string, f TransactionFilter) (string, []any) {
	clauses := []string{"owner = ?"}
	args := []any{owner}
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, core.FormatDate(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date < ?")
		args = append(args, core.FormatDate(f.To))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func expectAffected(res sql.Result, resource, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return NotFound(resource, key)
	}
	return nil
}
