package database

import (
	"context"
	"fmt"
	"log/slog"

	"budget-tracker-backend/internal/models"
)

var defaultCategories = []struct {
	Name string
	Type models.TxType
}{
	{"Salary", models.Income},
	{"Freelance", models.Income},
	{"Groceries", models.Expenses},
	{"Rent", models.Expenses},
	{"Utilities", models.Expenses},
	{"Transportation", models.Expenses},
	{"Entertainment", models.Expenses},
	{"Emergency Fund", models.Savings},
	{"Retirement", models.Savings},
}

// SeedDemo creates a demo project with the default categories and a few
// sample transactions, returning the new project ID.
func SeedDemo(ctx context.Context, repo Repository) (int64, error) {
	projectID, err := repo.CreateProject(ctx, "Demo Budget")
	if err != nil {
		return 0, fmt.Errorf("failed to seed project: %w", err)
	}
	for _, c := range defaultCategories {
		if _, err := repo.AddCategory(ctx, projectID, c.Name, c.Type); err != nil {
			return 0, fmt.Errorf("failed to seed category %q: %w", c.Name, err)
		}
	}

	sample := []models.NewTransaction{
		{Date: "2024-03-01", Type: models.Income, Category: "Salary", Amount: 3200, Description: "March salary"},
		{Date: "2024-03-03", Type: models.Expenses, Category: "Rent", Amount: 1200, Description: "Apartment rent"},
		{Date: "2024-03-09", Type: models.Expenses, Category: "Groceries", Amount: 86.45, Description: "Weekly shop"},
		{Date: "2024-03-15", Type: models.Savings, Category: "Emergency Fund", Amount: 300, Description: "Monthly transfer"},
		{Date: "2024-04-01", Type: models.Income, Category: "Salary", Amount: 3200, Description: "April salary"},
		{Date: "2024-04-04", Type: models.Expenses, Category: "Utilities", Amount: 140.2, Description: "Electricity and water"},
	}
	ids, err := repo.AddTransactionsBatch(ctx, projectID, sample)
	if err != nil {
		return 0, fmt.Errorf("failed to seed transactions: %w", err)
	}

	slog.InfoContext(ctx, "demo data seeded", "project_id", projectID, "categories", len(defaultCategories), "transactions", len(ids))
	return projectID, nil
}
