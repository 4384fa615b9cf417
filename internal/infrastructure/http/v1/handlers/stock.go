package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"cellhub/internal/core/apperror"
	"cellhub/internal/core/id"
	"cellhub/internal/domain/ledger/stock"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// RecordMovement handles POST /stock/movements
func (h *StockHandler) RecordMovement(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	movement, err := h.service.RecordMovement(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, movement)
}

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	filter := stock.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.WarehouseID, ok = h.ParseIDQuery(c, "warehouseId"); !ok {
		return
	}
	if filter.ProductID, ok = h.ParseIDQuery(c, "productId"); !ok {
		return
	}

	if raw := c.Query("movementType"); raw != "" {
		val := stock.MovementType(raw)
		filter.MovementType = &val
	}
	if raw := c.Query("operationType"); raw != "" {
		val := stock.OperationType(raw)
		filter.OperationType = &val
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

	movements, err := h.service.MovementHistory(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(movements))
}

// GetBalances handles GET /stock/balances
// With both warehouseId and productId it returns a single balance row;
// with only warehouseId it lists every non-zero balance in that warehouse.
func (h *StockHandler) GetBalances(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}
	if warehouseID == nil {
		h.Error(c, apperror.NewValidation("warehouseId is required"))
		return
	}

	productID, ok := h.ParseIDQuery(c, "productId")
	if !ok {
		return
	}

	if productID != nil {
		balance, err := h.service.Available(ctx, *warehouseID, *productID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, balance)
		return
	}

	balances, err := h.service.ListByWarehouse(ctx, *warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(balances))
}

// Reserve handles POST /stock/reserve
func (h *StockHandler) Reserve(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, productID, err := req.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Reserve(c.Request.Context(), warehouseID, productID, req.Quantity); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "stock reserved")
}

// Release handles POST /stock/release
func (h *StockHandler) Release(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, productID, err := req.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Release(c.Request.Context(), warehouseID, productID, req.Quantity); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "reservation released")
}

// Reconcile handles POST /stock/reconcile
func (h *StockHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := parseIDField(req.WarehouseID, "warehouseId")
	if err != nil {
		h.Error(c, err)
		return
	}
	productID, err := parseIDField(req.ProductID, "productId")
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), warehouseID, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// --- Transfers ---

// CreateTransfer handles POST /stock/transfers
func (h *StockHandler) CreateTransfer(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	transfer, err := h.service.CreateTransfer(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, transfer)
}

// GetTransfer handles GET /stock/transfers/:id
func (h *StockHandler) GetTransfer(c *gin.Context) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	transfer, err := h.service.GetTransfer(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, transfer)
}

// ListTransfers handles GET /stock/transfers
func (h *StockHandler) ListTransfers(c *gin.Context) {
	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}
	if warehouseID == nil {
		h.Error(c, apperror.NewValidation("warehouseId is required"))
		return
	}

	var status *stock.TransferStatus
	if raw := c.Query("status"); raw != "" {
		val := stock.TransferStatus(raw)
		status = &val
	}

	transfers, err := h.service.ListTransfers(c.Request.Context(), *warehouseID, status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(transfers))
}

// DispatchTransfer handles POST /stock/transfers/:id/dispatch
func (h *StockHandler) DispatchTransfer(c *gin.Context) {
	h.transferTransition(c, h.service.MarkInTransit)
}

// CompleteTransfer handles POST /stock/transfers/:id/complete
func (h *StockHandler) CompleteTransfer(c *gin.Context) {
	h.transferTransition(c, h.service.CompleteTransfer)
}

// CancelTransfer handles POST /stock/transfers/:id/cancel
func (h *StockHandler) CancelTransfer(c *gin.Context) {
	h.transferTransition(c, h.service.CancelTransfer)
}

func (h *StockHandler) transferTransition(
	c *gin.Context,
	fn func(ctx context.Context, transferID id.ID) (*stock.Transfer, error),
) {
	transferID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	transfer, err := fn(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, transfer)
}

// RegisterRoutes registers stock ledger routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/movements", h.RecordMovement)
	rg.GET("/movements", h.ListMovements)
	rg.GET("/balances", h.GetBalances)
	rg.POST("/reserve", h.Reserve)
	rg.POST("/release", h.Release)
	rg.POST("/reconcile", h.Reconcile)

	rg.POST("/transfers", h.CreateTransfer)
	rg.GET("/transfers", h.ListTransfers)
	rg.GET("/transfers/:id", h.GetTransfer)
	rg.POST("/transfers/:id/dispatch", h.DispatchTransfer)
	rg.POST("/transfers/:id/complete", h.CompleteTransfer)
	rg.POST("/transfers/:id/cancel", h.CancelTransfer)
}

func parseIDField(raw, field string) (id.ID, error) {
	parsed, err := id.Parse(raw)
	if err != nil {
		return id.ID{}, apperror.NewValidation("invalid " + field + " format")
	}
	return parsed, nil
}
