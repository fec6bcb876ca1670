package database

import (
	"sort"
	"strings"
	"time"

	"budget-tracker-backend/internal/dateparse"
	"budget-tracker-backend/internal/models"

	"github.com/shopspring/decimal"
)

const uncategorized = "Uncategorized"

// summarize buckets transactions by the month of their parsed date and
// totals each type. Transactions with unparseable dates are left out.
func summarize(txs []models.Transaction) map[string]models.MonthTotals {
	type totals struct{ income, expenses, savings decimal.Decimal }
	acc := map[string]*totals{}

	for _, t := range txs {
		dt, ok := dateparse.Parse(t.Date)
		if !ok {
			continue
		}
		key := dateparse.MonthKey(dt)
		m, ok := acc[key]
		if !ok {
			m = &totals{}
			acc[key] = m
		}
		amt := decimal.NewFromFloat(t.Amount)
		switch t.Type {
		case models.Income:
			m.income = m.income.Add(amt)
		case models.Expenses:
			m.expenses = m.expenses.Add(amt)
		case models.Savings:
			m.savings = m.savings.Add(amt)
		}
	}

	out := make(map[string]models.MonthTotals, len(acc))
	for k, m := range acc {
		out[k] = models.MonthTotals{
			Income:   m.income.InexactFloat64(),
			Expenses: m.expenses.InexactFloat64(),
			Savings:  m.savings.InexactFloat64(),
		}
	}
	return out
}

// breakdown totals amounts of type t by category name.
func breakdown(txs []models.Transaction, t models.TxType) map[string]float64 {
	acc := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		cat := strings.TrimSpace(tx.Category)
		if cat == "" {
			cat = uncategorized
		}
		acc[cat] = acc[cat].Add(decimal.NewFromFloat(tx.Amount))
	}

	out := make(map[string]float64, len(acc))
	for k, v := range acc {
		out[k] = v.InexactFloat64()
	}
	return out
}

// sortByDateDesc orders by parsed date, newest first. Unparseable dates sort
// as the epoch; ties fall back to the higher ID first.
func sortByDateDesc(txs []models.Transaction) {
	score := func(t models.Transaction) int64 {
		if dt, ok := dateparse.Parse(t.Date); ok {
			return dt.Unix()
		}
		return time.Unix(0, 0).Unix()
	}
	sort.SliceStable(txs, func(i, j int) bool {
		si, sj := score(txs[i]), score(txs[j])
		if si != sj {
			return si > sj
		}
		return txs[i].ID > txs[j].ID
	})
}

func validateMonth(month string) error {
	if !dateparse.ValidMonthKey(month) {
		return models.Invalidf("invalid month %q: expected MM/YYYY", month)
	}
	return nil
}
