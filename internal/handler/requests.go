package handler

import "budget-tracker-backend/internal/models"

// Length limits mirror the Postgres column widths.
type createProjectRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

type createCategoryRequest struct {
	Name string `json:"name" binding:"required,max=100"`
	Type string `json:"type" binding:"required,oneof=Income Expenses Savings"`
}

type transactionRequest struct {
	Date        string   `json:"date" binding:"required,max=64"`
	Type        string   `json:"type" binding:"required,oneof=Income Expenses Savings"`
	Category    *string  `json:"category" binding:"required,max=255"`
	Amount      *float64 `json:"amount" binding:"required,gte=0"`
	Description string   `json:"description"`
}

func (r transactionRequest) toModel(projectID int64) models.NewTransaction {
	return models.NewTransaction{
		ProjectID:   projectID,
		Date:        r.Date,
		Type:        models.TxType(r.Type),
		Category:    *r.Category,
		Amount:      *r.Amount,
		Description: r.Description,
	}
}

type batchRequest struct {
	Transactions []transactionRequest `json:"transactions" binding:"required,min=1,dive"`
}

type updateTransactionRequest struct {
	Date        *string  `json:"date" binding:"omitempty,max=64"`
	Type        *string  `json:"type" binding:"omitempty,oneof=Income Expenses Savings"`
	Category    *string  `json:"category" binding:"omitempty,max=255"`
	Amount      *float64 `json:"amount" binding:"omitempty,gte=0"`
	Description *string  `json:"description"`
}

func (r updateTransactionRequest) toPatch() models.TransactionPatch {
	p := models.TransactionPatch{
		Date:        r.Date,
		Category:    r.Category,
		Amount:      r.Amount,
		Description: r.Description,
	}
	if r.Type != nil {
		t := models.TxType(*r.Type)
		p.Type = &t
	}
	return p
}
