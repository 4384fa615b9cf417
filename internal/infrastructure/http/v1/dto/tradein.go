package dto

import (
	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/tradein"
)

// --- Request DTOs for the Trade-In Workflow ---

// CreateEvaluationRequest is the request body for a new evaluation.
type CreateEvaluationRequest struct {
	CustomerID   string `json:"customerId" binding:"required"`
	IMEI         string `json:"imei" binding:"required"`
	IMEI2        string `json:"imei2"`
	SerialNumber string `json:"serialNumber"`
	Brand        string `json:"brand" binding:"required"`
	Model        string `json:"model" binding:"required"`
	Color        string `json:"color"`
	Notes        string `json:"notes"`
}

// ToInput converts DTO to service input.
func (r *CreateEvaluationRequest) ToInput() (tradein.CreateInput, error) {
	customerID, err := id.Parse(r.CustomerID)
	if err != nil {
		return tradein.CreateInput{}, apperror.NewValidation("invalid customerId format")
	}

	return tradein.CreateInput{
		CustomerID:   customerID,
		IMEI:         r.IMEI,
		IMEI2:        r.IMEI2,
		SerialNumber: r.SerialNumber,
		Brand:        r.Brand,
		Model:        r.Model,
		Color:        r.Color,
		Notes:        r.Notes,
	}, nil
}

// ChecklistItemRequest is one inspection point.
type ChecklistItemRequest struct {
	Item   string `json:"item" binding:"required"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes"`
}

// StartAnalysisRequest carries the inspection results.
type StartAnalysisRequest struct {
	Checklist      []ChecklistItemRequest `json:"checklist" binding:"required"`
	EstimatedValue types.Money            `json:"estimatedValue" binding:"required"`
	Notes          string                 `json:"notes"`
}

// ToInput converts DTO to service input.
func (r *StartAnalysisRequest) ToInput() tradein.AnalysisInput {
	checklist := make([]tradein.ChecklistItem, len(r.Checklist))
	for i, item := range r.Checklist {
		checklist[i] = tradein.ChecklistItem{
			Item:   item.Item,
			Passed: item.Passed,
			Notes:  item.Notes,
		}
	}
	return tradein.AnalysisInput{
		Checklist:      checklist,
		EstimatedValue: r.EstimatedValue,
		Notes:          r.Notes,
	}
}

// ApproveEvaluationRequest is the request body for approving an evaluation.
type ApproveEvaluationRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	WarehouseID string `json:"warehouseId" binding:"required"`

	// EstimatedValue overrides the analysis estimate when set.
	EstimatedValue *types.Money `json:"estimatedValue"`
}

// ToInput converts DTO to service input.
func (r *ApproveEvaluationRequest) ToInput() (tradein.ApproveInput, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return tradein.ApproveInput{}, apperror.NewValidation("invalid productId format")
	}
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return tradein.ApproveInput{}, apperror.NewValidation("invalid warehouseId format")
	}

	return tradein.ApproveInput{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		EstimatedValue: r.EstimatedValue,
	}, nil
}

// RejectEvaluationRequest is the request body for rejecting an evaluation.
type RejectEvaluationRequest struct {
	Reason string `json:"reason" binding:"required"`
}
