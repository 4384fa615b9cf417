package handlers

import (
	"github.com/gin-gonic/gin"

	"cellhub/internal/domain/tradein"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// TradeInHandler handles HTTP requests for the trade-in workflow.
type TradeInHandler struct {
	*BaseHandler
	service *tradein.Service
}

// NewTradeInHandler creates a new trade-in handler.
func NewTradeInHandler(base *BaseHandler, service *tradein.Service) *TradeInHandler {
	return &TradeInHandler{BaseHandler: base, service: service}
}

// Create handles POST /evaluations
func (h *TradeInHandler) Create(c *gin.Context) {
	var req dto.CreateEvaluationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	evaluation, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, evaluation)
}

// StartAnalysis handles POST /evaluations/:id/analysis
func (h *TradeInHandler) StartAnalysis(c *gin.Context) {
	evalID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.StartAnalysisRequest
	if !h.BindJSON(c, &req) {
		return
	}

	evaluation, err := h.service.StartAnalysis(c.Request.Context(), evalID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, evaluation)
}

// Approve handles POST /evaluations/:id/approve
func (h *TradeInHandler) Approve(c *gin.Context) {
	evalID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ApproveEvaluationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	evaluation, err := h.service.Approve(c.Request.Context(), evalID, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, evaluation)
}

// Reject handles POST /evaluations/:id/reject
func (h *TradeInHandler) Reject(c *gin.Context) {
	evalID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.RejectEvaluationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	evaluation, err := h.service.Reject(c.Request.Context(), evalID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, evaluation)
}

// Get handles GET /evaluations/:id
func (h *TradeInHandler) Get(c *gin.Context) {
	evalID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	evaluation, err := h.service.GetByID(c.Request.Context(), evalID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, evaluation)
}

// List handles GET /evaluations?status=&customerId=
func (h *TradeInHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	customerID, ok := h.ParseIDQuery(c, "customerId")
	if !ok {
		return
	}

	if customerID != nil {
		evaluations, err := h.service.ListByCustomer(ctx, *customerID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.NewListResponse(evaluations))
		return
	}

	var status *tradein.Status
	if raw := c.Query("status"); raw != "" {
		val := tradein.Status(raw)
		status = &val
	}

	evaluations, err := h.service.List(ctx, status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(evaluations))
}

// RegisterRoutes registers trade-in routes.
func (h *TradeInHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/analysis", h.StartAnalysis)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}
