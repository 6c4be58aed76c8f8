// Package postgres stores transactions, budgets and summaries in
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"finsight/internal/core"
	"finsight/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Repository)(nil)

// New connects, verifies the connection and applies migrations.
func New(ctx context.Context, url string) (*Repository, error) {
	if err := RunMigrations(url); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// RunMigrations applies the embedded schema using the pgx/v5 migrate driver.
func RunMigrations(url string) error {
	return storage.ApplyMigrations("postgres", migrationsFS, "migrations", func(src source.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithSourceInstance("iofs", src, migrateURL(url))
	})
}

// migrateURL rewrites a libpq style URL to the scheme the pgx/v5 driver
// registers with golang-migrate.
func migrateURL(url string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx5://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

var transactionColumns = []string{
	"id", "owner", "date", "description", "amount", "category", "source", "created_at", "updated_at",
}

func (r *Repository) InsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		transactionColumns,
		pgx.CopyFromSlice(len(txns), func(i int) ([]any, error) {
			t := txns[i]
			return []any{
				t.ID, t.Owner, t.Date, t.Description, t.Amount,
				string(t.Category), string(t.Source), t.CreatedAt, t.UpdatedAt,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy transactions: %w", err)
	}
	return nil
}

const selectTransactions = `SELECT id, owner, date, description, amount, category, source, created_at, updated_at FROM transactions`

func (r *Repository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, selectTransactions+` WHERE owner = $1 AND id = $2`, owner, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, storage.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, owner string, f storage.TransactionFilter) (storage.TransactionPage, error) {
	f = f.Normalize()
	where, args := transactionWhere(owner, f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return storage.TransactionPage{}, fmt.Errorf("count transactions: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("%s%s ORDER BY date DESC, created_at DESC, id ASC LIMIT $%d OFFSET $%d",
		selectTransactions, where, n+1, n+2)
	rows, err := r.pool.Query(ctx, query, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return storage.TransactionPage{}, err
	}
	return storage.TransactionPage{Transactions: txns, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

func (r *Repository) TransactionsBetween(ctx context.Context, owner string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		selectTransactions+` WHERE owner = $1 AND date >= $2 AND date < $3 ORDER BY date ASC, created_at ASC, id ASC`,
		owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("query transactions between: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET date = $1, description = $2, amount = $3, category = $4, updated_at = $5
		WHERE owner = $6 AND id = $7`,
		t.Date, t.Description, t.Amount, string(t.Category), t.UpdatedAt, t.Owner, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectAffected(tag, "transaction", t.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, owner, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectAffected(tag, "transaction", id)
}

func (r *Repository) UpsertBudget(ctx context.Context, b core.Budget) error {
	cb, err := json.Marshal(b.CategoryBudgets.Fill())
	if err != nil {
		return fmt.Errorf("encode category budgets: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO budgets (owner, month, total_budget, category_budgets, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, month) DO UPDATE SET
			total_budget = EXCLUDED.total_budget,
			category_budgets = EXCLUDED.category_budgets,
			updated_at = EXCLUDED.updated_at`,
		b.Owner, b.Month, b.TotalBudget, cb, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

const selectBudgets = `SELECT owner, month, total_budget, category_budgets, updated_at FROM budgets`

func (r *Repository) GetBudget(ctx context.Context, owner, month string) (core.Budget, error) {
	b, err := scanBudget(r.pool.QueryRow(ctx, selectBudgets+` WHERE owner = $1 AND month = $2`, owner, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, storage.NotFound("budget", month)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *Repository) ListBudgets(ctx context.Context, owner string) ([]core.Budget, error) {
	rows, err := r.pool.Query(ctx, selectBudgets+` WHERE owner = $1 ORDER BY month DESC`, owner)
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

func (r *Repository) UpsertSummary(ctx context.Context, s core.MonthlySummary) error {
	byCat, err := json.Marshal(s.ByCategory.Fill())
	if err != nil {
		return fmt.Errorf("encode category totals: %w", err)
	}
	ins, err := json.Marshal(s.Insight)
	if err != nil {
		return fmt.Errorf("encode insight: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO monthly_summaries (owner, month, total_spending, by_category, summary, insight, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner, month) DO UPDATE SET
			total_spending = EXCLUDED.total_spending,
			by_category = EXCLUDED.by_category,
			summary = EXCLUDED.summary,
			insight = EXCLUDED.insight,
			updated_at = EXCLUDED.updated_at`,
		s.Owner, s.Month, s.TotalSpending, byCat, s.Summary, ins, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (r *Repository) ListSummaries(ctx context.Context, owner, month string) ([]core.MonthlySummary, error) {
	query := `SELECT owner, month, total_spending, by_category, summary, insight, updated_at
		FROM monthly_summaries WHERE owner = $1`
	args := []any{owner}
	if month != "" {
		query += ` AND month = $2`
		args = append(args, month)
	}
	query += ` ORDER BY month DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlySummary{}
	for rows.Next() {
		var (
			s          core.MonthlySummary
			byCat, ins []byte
		)
		if err := rows.Scan(&s.Owner, &s.Month, &s.TotalSpending, &byCat, &s.Summary, &ins, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal(byCat, &s.ByCategory); err != nil {
			return nil, fmt.Errorf("decode category totals: %w", err)
		}
		if err := json.Unmarshal(ins, &s.Insight); err != nil {
			return nil, fmt.Errorf("decode insight: %w", err)
		}
		s.ByCategory = s.ByCategory.Fill()
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t                core.Transaction
		category, source string
	)
	if err := row.Scan(&t.ID, &t.Owner, &t.Date, &t.Description, &t.Amount, &category, &source, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return core.Transaction{}, err
	}
	t.Date = t.Date.UTC()
	t.Category = core.Category(category)
	t.Source = core.Source(source)
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]core.Transaction, error) {
	defer rows.Close()
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

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b  core.Budget
		cb []byte
	)
	if err := row.Scan(&b.Owner, &b.Month, &b.TotalBudget, &cb, &b.UpdatedAt); err != nil {
		return core.Budget{}, err
	}
	if err := json.Unmarshal(cb, &b.CategoryBudgets); err != nil {
		return core.Budget{}, fmt.Errorf("decode category budgets: %w", err)
	}
	b.CategoryBudgets = b.CategoryBudgets.Fill()
	return b, nil
}

func transactionWhere(owner string, f storage.TransactionFilter) (string, []any) {
	clauses := []string{"owner = $1"}
	args := []any{owner}
	if !f.From.IsZero() {
		args = append(args, f.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		clauses = append(clauses, fmt.Sprintf("date < $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, string(f.Category))
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func expectAffected(tag pgconn.CommandTag, resource, key string) error {
	if tag.RowsAffected() == 0 {
		return storage.NotFound(resource, key)
	}
	return nil
}
