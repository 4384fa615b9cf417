package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"cellhub/internal/domain/sales"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// SalesHandler handles HTTP requests for the sale engine.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, service *sales.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service}
}

// Finalize handles POST /sales
func (h *SalesHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.service.FinalizeSale(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, sale)
}

// Cancel handles POST /sales/:id/cancel
func (h *SalesHandler) Cancel(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.service.CancelSale(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}

// ProcessReturn handles POST /sales/:id/returns
func (h *SalesHandler) ProcessReturn(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ProcessReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput(saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.ProcessReturn(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, ret)
}

// ListReturns handles GET /sales/:id/returns
func (h *SalesHandler) ListReturns(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	returns, err := h.service.ListReturns(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(returns))
}

// Get handles GET /sales/:id
func (h *SalesHandler) Get(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.service.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}

// List handles GET /sales
func (h *SalesHandler) List(c *gin.Context) {
	filter := sales.SaleFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.CustomerID, ok = h.ParseIDQuery(c, "customerId"); !ok {
		return
	}
	if filter.WarehouseID, ok = h.ParseIDQuery(c, "warehouseId"); !ok {
		return
	}

	if raw := c.Query("status"); raw != "" {
		val := sales.Status(raw)
		filter.Status = &val
	}
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &parsed
		}
	}

	salesList, err := h.service.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(salesList))
}

// RegisterRoutes registers sale engine routes.
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Finalize)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/returns", h.ProcessReturn)
	rg.GET("/:id/returns", h.ListReturns)
}
