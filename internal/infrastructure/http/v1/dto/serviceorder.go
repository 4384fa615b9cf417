package dto

import (
	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/core/types"
	"cellhub/internal/domain/serviceorder"
)

// --- Request DTOs for Service Orders ---

// CreateOrderRequest is the request body for an external repair order.
type CreateOrderRequest struct {
	CustomerID     string      `json:"customerId" binding:"required"`
	DeviceID       *string     `json:"deviceId"`
	Description    string      `json:"description" binding:"required"`
	EstimatedValue types.Money `json:"estimatedValue"`
}

// ToInput converts DTO to service input.
func (r *CreateOrderRequest) ToInput() (serviceorder.CreateInput, error) {
	customerID, err := id.Parse(r.CustomerID)
	if err != nil {
		return serviceorder.CreateInput{}, apperror.NewValidation("invalid customerId format")
	}

	in := serviceorder.CreateInput{
		CustomerID:     customerID,
		Description:    r.Description,
		EstimatedValue: r.EstimatedValue,
	}
	if r.DeviceID != nil && *r.DeviceID != "" {
		deviceID, err := id.Parse(*r.DeviceID)
		if err != nil {
			return serviceorder.CreateInput{}, apperror.NewValidation("invalid deviceId format")
		}
		in.DeviceID = &deviceID
	}
	return in, nil
}

// UpdateOrderStatusRequest moves an order through its workflow.
type UpdateOrderStatusRequest struct {
	Status serviceorder.Status `json:"status" binding:"required"`
}

// CompleteOrderRequest carries the final costs of a finished order.
type CompleteOrderRequest struct {
	LaborCost types.Money `json:"laborCost"`
	PartsCost types.Money `json:"partsCost"`
}

// ToInput converts DTO to service input.
func (r *CompleteOrderRequest) ToInput() serviceorder.CompleteInput {
	return serviceorder.CompleteInput{
		LaborCost: r.LaborCost,
		PartsCost: r.PartsCost,
	}
}

// CompletePreparationRequest finishes an internal preparation order.
type CompletePreparationRequest struct {
	LaborCost    types.Money `json:"laborCost"`
	PartsCost    types.Money `json:"partsCost"`
	SellingPrice types.Money `json:"sellingPrice" binding:"required"`
}

// ToInput converts DTO to service input.
func (r *CompletePreparationRequest) ToInput() serviceorder.PreparationInput {
	return serviceorder.PreparationInput{
		LaborCost:    r.LaborCost,
		PartsCost:    r.PartsCost,
		SellingPrice: r.SellingPrice,
	}
}
