package models

import (
	"fmt"
	"strings"
)

// TxType classifies categories and transactions.
type TxType string

const (
	Income   TxType = "Income"
	Expenses TxType = "Expenses"
	Savings  TxType = "Savings"
)

// TxTypes lists every valid type in display order.
var TxTypes = []TxType{Income, Expenses, Savings}

// Valid reports whether t is one of Income, Expenses or Savings.
func (t TxType) Valid() bool {
	switch t {
	case Income, Expenses, Savings:
		return true
	}
	return false
}

// ParseTxType validates a raw type string.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", Invalidf("invalid type %q: must be one of Income, Expenses, Savings", s)
	}
	return t, nil
}

// Project is the top-level container for budget data.
type Project struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Category is a named bucket scoped to a project.
type Category struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Type      TxType `json:"type"`
}

// Transaction is a single dated monetary event. Amount is always a
// magnitude; the direction comes from Type.
type Transaction struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"project_id"`
	Date        string  `json:"date"`
	Type        TxType  `json:"type"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`

	// MonthKey is the month bucket the transaction is indexed under.
	MonthKey string `json:"-"`
}

// NewTransaction holds the fields needed to create a transaction.
type NewTransaction struct {
	ProjectID   int64
	Date        string
	Type        TxType
	Category    string
	Amount      float64
	Description string
}

// Validate checks the invariants enforced before persistence.
func (n NewTransaction) Validate() error {
	if strings.TrimSpace(n.Date) == "" {
		return Invalidf("date is required")
	}
	if !n.Type.Valid() {
		return Invalidf("invalid type %q: must be one of Income, Expenses, Savings", n.Type)
	}
	if n.Amount < 0 {
		return Invalidf("amount must not be negative, got %v", n.Amount)
	}
	return nil
}

// TransactionPatch is a partial update; nil fields are left untouched.
type TransactionPatch struct {
	Date        *string
	Type        *TxType
	Category    *string
	Amount      *float64
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Date == nil && p.Type == nil && p.Category == nil && p.Amount == nil && p.Description == nil
}

func (p TransactionPatch) Validate() error {
	if p.Empty() {
		return Invalidf("no updatable fields provided")
	}
	if p.Date != nil && strings.TrimSpace(*p.Date) == "" {
		return Invalidf("date must not be empty")
	}
	if p.Type != nil && !p.Type.Valid() {
		return Invalidf("invalid type %q: must be one of Income, Expenses, Savings", *p.Type)
	}
	if p.Amount != nil && *p.Amount < 0 {
		return Invalidf("amount must not be negative, got %v", *p.Amount)
	}
	return nil
}

// MonthTotals accumulates amounts per type for one month bucket.
type MonthTotals struct {
	Income   float64 `json:"Income"`
	Expenses float64 `json:"Expenses"`
	Savings  float64 `json:"Savings"`
}

// ValidationError reports bad or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
