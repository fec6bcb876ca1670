package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budget-tracker-backend/internal/dateparse"
	"budget-tracker-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// NormalizeDatabaseURL rewrites postgresql:// to postgres:// and defaults
// sslmode to disable.
func NormalizeDatabaseURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql:") {
		databaseURL = "postgres" + databaseURL[len("postgresql"):]
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL = databaseURL + separator + "sslmode=disable"
	}
	return databaseURL
}

// OpenPostgres connects to databaseURL, retrying while the server comes up.
func OpenPostgres(ctx context.Context, databaseURL string, maxRetries int, retryDelay time.Duration) (*sql.DB, error) {
	config, err := pgx.ParseConfig(NormalizeDatabaseURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		db := stdlib.OpenDB(*config)
		err := db.PingContext(ctx)
		if err == nil {
			slog.Info("database connection established")
			return db, nil
		}
		db.Close()
		if i == maxRetries-1 {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}
		slog.Warn("database not ready, retrying", "attempt", i+1, "max_attempts", maxRetries, "retry_in", retryDelay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, errors.New("unreachable")
}

// PostgresRepository is the relational Repository. Foreign keys cascade
// project deletion; month_key and date_score mirror the key-value indexes.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) CreateProject(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, models.Invalidf("project name is required")
	}
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO projects (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var created, updated time.Time
	if err := row.Scan(&p.ID, &p.Name, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = created.UTC().Format(timestampLayout)
	p.UpdatedAt = updated.UTC().Format(timestampLayout)
	return &p, nil
}

func (r *PostgresRepository) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM projects WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) requireProject(ctx context.Context, id int64) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check project %d: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteProject(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM projects WHERE id = $1`, id)
}

func (r *PostgresRepository) deleteByID(ctx context.Context, query string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AddCategory(ctx context.Context, projectID int64, name string, t models.TxType) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, models.Invalidf("category name is required")
	}
	if !t.Valid() {
		return 0, models.Invalidf("invalid category type %q", t)
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (project_id, name, type) VALUES ($1, $2, $3) RETURNING id`,
		projectID, name, string(t),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListCategories(ctx context.Context, projectID int64, t models.TxType) ([]models.Category, error) {
	if t != "" && !t.Valid() {
		return nil, models.Invalidf("invalid category type %q", t)
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	query := `SELECT id, project_id, name, type FROM categories WHERE project_id = $1`
	args := []any{projectID}
	if t != "" {
		query += ` AND type = $2`
		args = append(args, string(t))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = models.TxType(typ)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *PostgresRepository) DeleteCategory(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM categories WHERE id = $1`, id)
}

const insertTransactionSQL = `
	INSERT INTO transactions (project_id, date, type, category, amount, description, month_key, date_score)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresRepository) insertTransaction(ctx context.Context, q queryRower, tx models.NewTransaction) (int64, error) {
	month, score := dateparse.IndexPosition(tx.Date, r.now().UTC())
	var id int64
	if err := q.QueryRowContext(ctx, insertTransactionSQL,
		tx.ProjectID, tx.Date, string(tx.Type), tx.Category, tx.Amount, tx.Description, month, score,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) AddTransaction(ctx context.Context, tx models.NewTransaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	if err := r.requireProject(ctx, tx.ProjectID); err != nil {
		return 0, err
	}
	return r.insertTransaction(ctx, r.db, tx)
}

// AddTransactionsBatch inserts every item in one SQL transaction.
func (r *PostgresRepository) AddTransactionsBatch(ctx context.Context, projectID int64, txs []models.NewTransaction) ([]int64, error) {
	if err := validateBatch(projectID, txs); err != nil {
		return nil, err
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		id, err := r.insertTransaction(ctx, sqlTx, tx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return ids, nil
}

const transactionColumns = `id, project_id, date, type, category, amount, description, month_key, created_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var typ string
	var created time.Time
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Date, &typ, &t.Category, &t.Amount, &t.Description, &t.MonthKey, &created); err != nil {
		return nil, err
	}
	t.Type = models.TxType(typ)
	t.CreatedAt = created.UTC().Format(timestampLayout)
	return &t, nil
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, projectID int64, month string) ([]models.Transaction, error) {
	if month != "" {
		if err := validateMonth(month); err != nil {
			return nil, err
		}
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	if month == "" {
		return r.queryTransactions(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE project_id = $1 ORDER BY date_score DESC, id DESC`,
			projectID)
	}
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE project_id = $1 AND month_key = $2`,
		projectID, month)
	if err != nil {
		return nil, err
	}
	sortByDateDesc(txs)
	return txs, nil
}

// UpdateTransaction writes the patch and the recomputed index columns in a
// single statement.
func (r *PostgresRepository) UpdateTransaction(ctx context.Context, id int64, patch models.TransactionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Date != nil {
		month, score := dateparse.IndexPosition(*patch.Date, r.now().UTC())
		add("date", *patch.Date)
		add("month_key", month)
		add("date_score", score)
	}
	if patch.Type != nil {
		add("type", string(*patch.Type))
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE transactions SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM transactions WHERE id = $1`, id)
}

func (r *PostgresRepository) MonthlySummary(ctx context.Context, projectID int64) (map[string]models.MonthTotals, error) {
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, err
	}
	return summarize(txs), nil
}

func (r *PostgresRepository) CategoryBreakdown(ctx context.Context, projectID int64, month string, t models.TxType) (map[string]float64, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, models.Invalidf("invalid type %q", t)
	}
	if err := r.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE project_id = $1 AND month_key = $2 AND type = $3`,
		projectID, month, string(t))
	if err != nil {
		return nil, err
	}
	return breakdown(txs, t), nil
}
