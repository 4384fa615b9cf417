package handlers

import (
	"github.com/gin-gonic/gin"

	"cellhub/internal/core/apperror"
	"cellhub/internal/domain/devices"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// DeviceHandler handles HTTP requests for the device registry.
type DeviceHandler struct {
	*BaseHandler
	service *devices.Service
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(base *BaseHandler, service *devices.Service) *DeviceHandler {
	return &DeviceHandler{BaseHandler: base, service: service}
}

// Register handles POST /devices
func (h *DeviceHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterDeviceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	d, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Register(ctx, d); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromDevice(d))
}

// Update handles PUT /devices/:id
func (h *DeviceHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	deviceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateDeviceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	d, err := h.service.GetByID(ctx, deviceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(d)

	if err := h.service.Update(ctx, d); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDevice(d))
}

// Get handles GET /devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	deviceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.GetByID(c.Request.Context(), deviceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDevice(d))
}

// GetByIMEI handles GET /devices/by-imei/:imei
func (h *DeviceHandler) GetByIMEI(c *gin.Context) {
	imei := c.Param("imei")
	if imei == "" {
		h.Error(c, apperror.NewValidation("imei is required"))
		return
	}

	d, err := h.service.GetByIMEI(c.Request.Context(), imei)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDevice(d))
}

// List handles GET /devices?warehouseId=&status=
func (h *DeviceHandler) List(c *gin.Context) {
	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}
	if warehouseID == nil {
		h.Error(c, apperror.NewValidation("warehouseId is required"))
		return
	}

	var status *devices.Status
	if raw := c.Query("status"); raw != "" {
		val := devices.Status(raw)
		status = &val
	}

	items, err := h.service.ListByWarehouse(c.Request.Context(), *warehouseID, status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MapList(items, dto.FromDevice))
}

// RegisterRoutes registers device routes.
func (h *DeviceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Register)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/by-imei/:imei", h.GetByIMEI)
	rg.PUT("/:id", h.Update)
}
