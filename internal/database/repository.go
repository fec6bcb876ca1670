// Package database is the persistence layer for projects, categories and
// transactions. Two implementations share the Repository contract: a
// key-value one that maintains its secondary indexes by hand, and a
// Postgres one for the relational deployment.
package database

import (
	"context"
	"errors"
	"fmt"

	"budget-tracker-backend/internal/models"
)

// ErrNotFound is returned when the referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Repository is implemented by every storage backend.
type Repository interface {
	Ping(ctx context.Context) error

	CreateProject(ctx context.Context, name string) (int64, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	// DeleteProject removes the project with all its categories and
	// transactions.
	DeleteProject(ctx context.Context, id int64) error

	AddCategory(ctx context.Context, projectID int64, name string, t models.TxType) (int64, error)
	// ListCategories returns every category of the project, or only those
	// of type t when t is non-empty.
	ListCategories(ctx context.Context, projectID int64, t models.TxType) ([]models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	AddTransaction(ctx context.Context, tx models.NewTransaction) (int64, error)
	AddTransactionsBatch(ctx context.Context, projectID int64, txs []models.NewTransaction) ([]int64, error)
	// ListTransactions returns the project's transactions newest first,
	// restricted to the MM/YYYY bucket when month is non-empty.
	ListTransactions(ctx context.Context, projectID int64, month string) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch models.TransactionPatch) error
	DeleteTransaction(ctx context.Context, id int64) error

	MonthlySummary(ctx context.Context, projectID int64) (map[string]models.MonthTotals, error)
	CategoryBreakdown(ctx context.Context, projectID int64, month string, t models.TxType) (map[string]float64, error)
}

// BatchError reports a batch insert that stopped part way. IDs holds the
// transactions written before the failure.
type BatchError struct {
	IDs   []int64
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch stopped at item %d after %d inserts: %v", e.Index, len(e.IDs), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

func validateBatch(projectID int64, txs []models.NewTransaction) error {
	if len(txs) == 0 {
		return models.Invalidf("no transactions provided")
	}
	for i := range txs {
		txs[i].ProjectID = projectID
		if err := txs[i].Validate(); err != nil {
			return models.Invalidf("transaction %d: %v", i, err)
		}
	}
	return nil
}
