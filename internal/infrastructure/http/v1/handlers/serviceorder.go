package handlers

import (
	"github.com/gin-gonic/gin"

	"cellhub/internal/domain/serviceorder"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// ServiceOrderHandler handles HTTP requests for service orders.
type ServiceOrderHandler struct {
	*BaseHandler
	service *serviceorder.Service
}

// NewServiceOrderHandler creates a new service order handler.
func NewServiceOrderHandler(base *BaseHandler, service *serviceorder.Service) *ServiceOrderHandler {
	return &ServiceOrderHandler{BaseHandler: base, service: service}
}

// Create handles POST /service-orders
func (h *ServiceOrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, order)
}

// UpdateStatus handles POST /service-orders/:id/status
func (h *ServiceOrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateOrderStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// Complete handles POST /service-orders/:id/complete
func (h *ServiceOrderHandler) Complete(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CompleteOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.Complete(c.Request.Context(), orderID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// CompletePreparation handles POST /service-orders/:id/complete-preparation
func (h *ServiceOrderHandler) CompletePreparation(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CompletePreparationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.CompletePreparation(c.Request.Context(), orderID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// Get handles GET /service-orders/:id
func (h *ServiceOrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, order)
}

// List handles GET /service-orders?status=&internal=
func (h *ServiceOrderHandler) List(c *gin.Context) {
	var status *serviceorder.Status
	if raw := c.Query("status"); raw != "" {
		val := serviceorder.Status(raw)
		status = &val
	}

	var internal *bool
	if raw := c.Query("internal"); raw != "" {
		val := raw == "true"
		internal = &val
	}

	orders, err := h.service.List(c.Request.Context(), status, internal)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(orders))
}

// RegisterRoutes registers service order routes.
func (h *ServiceOrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/status", h.UpdateStatus)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/complete-preparation", h.CompletePreparation)
}
