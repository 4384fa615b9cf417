package handlers

import (
	"github.com/gin-gonic/gin"

	"cellhub/internal/core/apperror"
	"cellhub/internal/domain/ledger/credit"
	"cellhub/internal/infrastructure/http/v1/dto"
)

// CreditHandler handles HTTP requests for the customer credit ledger.
type CreditHandler struct {
	*BaseHandler
	service *credit.Service
}

// NewCreditHandler creates a new credit ledger handler.
func NewCreditHandler(base *BaseHandler, service *credit.Service) *CreditHandler {
	return &CreditHandler{BaseHandler: base, service: service}
}

// Grant handles POST /credits
func (h *CreditHandler) Grant(c *gin.Context) {
	var req dto.GrantCreditRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	granted, err := h.service.Grant(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, granted)
}

// Get handles GET /credits/:id
func (h *CreditHandler) Get(c *gin.Context) {
	creditID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	found, err := h.service.GetByID(c.Request.Context(), creditID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, found)
}

// Balance handles GET /credits/balance/:personId
func (h *CreditHandler) Balance(c *gin.Context) {
	personID, ok := h.ParseID(c, "personId")
	if !ok {
		return
	}

	balance, err := h.service.AvailableBalance(c.Request.Context(), personID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CreditBalanceResponse{
		PersonID: personID.String(),
		Balance:  balance,
	})
}

// ListByPerson handles GET /credits?personId=&status=
func (h *CreditHandler) ListByPerson(c *gin.Context) {
	personID, ok := h.ParseIDQuery(c, "personId")
	if !ok {
		return
	}
	if personID == nil {
		h.Error(c, apperror.NewValidation("personId is required"))
		return
	}

	var status *credit.Status
	if raw := c.Query("status"); raw != "" {
		val := credit.Status(raw)
		status = &val
	}

	credits, err := h.service.ListByPerson(c.Request.Context(), *personID, status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(credits))
}

// RegisterRoutes registers credit ledger routes.
func (h *CreditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Grant)
	rg.GET("", h.ListByPerson)
	rg.GET("/:id", h.Get)
	rg.GET("/balance/:personId", h.Balance)
}
