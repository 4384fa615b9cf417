package handlers

import (
	"github.com/gin-gonic/gin"

	"cellhub/internal/domain/catalogs/warehouse"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles HTTP requests for the Warehouse catalog.
type WarehouseHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalog/warehouses
func (h *WarehouseHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	wh := req.ToEntity()
	if err := h.service.Create(ctx, wh); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromWarehouse(wh))
}

// Update handles PUT /catalog/warehouses/:id
func (h *WarehouseHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	whID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	wh, err := h.service.GetByID(ctx, whID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(wh)

	if err := h.service.Update(ctx, wh); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromWarehouse(wh))
}

// Get handles GET /catalog/warehouses/:id
func (h *WarehouseHandler) Get(c *gin.Context) {
	whID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	wh, err := h.service.GetByID(c.Request.Context(), whID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromWarehouse(wh))
}

// List handles GET /catalog/warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"

	items, err := h.service.List(c.Request.Context(), includeInactive)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MapList(items, dto.FromWarehouse))
}

// Deactivate handles POST /catalog/warehouses/:id/deactivate
func (h *WarehouseHandler) Deactivate(c *gin.Context) {
	whID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), whID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "warehouse deactivated")
}

// RegisterRoutes registers warehouse routes.
func (h *WarehouseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/deactivate", h.Deactivate)
}
