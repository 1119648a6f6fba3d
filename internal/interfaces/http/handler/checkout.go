package handler

import (
	"context"

	depositapp "github.com/erp/deposits/internal/application/deposit"
	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutService is the deposit checkout use case consumed by CheckoutHandler
type CheckoutService interface {
	Settings() deposit.Settings
	Quote(ctx context.Context, tenantID uuid.UUID, sessionID string, req depositapp.QuoteRequest) (*depositapp.CartDepositResponse, error)
	UpdateSelection(ctx context.Context, tenantID uuid.UUID, sessionID string, req depositapp.QuoteRequest) (*depositapp.CartDepositResponse, error)
	PlaceOrder(ctx context.Context, tenantID uuid.UUID, sessionID string, req depositapp.PlaceOrderRequest) (*depositapp.OrderScheduleResponse, error)
	ChangeOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, req depositapp.ChangeStatusRequest) (*depositapp.TransitionResponse, error)
	CompletePayment(ctx context.Context, tenantID, orderID uuid.UUID, req depositapp.PaymentCompleteRequest) (*depositapp.TransitionResponse, error)
	GetOrderSchedule(ctx context.Context, tenantID, orderID uuid.UUID) (*depositapp.OrderScheduleResponse, error)
	GatewayDisplayTotal(ctx context.Context, tenantID uuid.UUID, sessionID string, cart depositapp.CartInput) (decimal.Decimal, error)
}

// CheckoutHandler handles the storefront deposit endpoints and the order
// lifecycle webhooks
type CheckoutHandler struct {
	BaseHandler
	service CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(service CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// DepositSettingsResponse is the public deposit configuration of the store
// @name HandlerDepositSettingsResponse
type DepositSettingsResponse struct {
	Enabled         bool        `json:"enabled" example:"true"`
	CheckoutMode    bool        `json:"checkout_mode" example:"true"`
	AmountType      string      `json:"amount_type" example:"percent"`
	Amount          string      `json:"amount" example:"30"`
	ForceDeposit    bool        `json:"force_deposit" example:"false"`
	DefaultSelected string      `json:"default_selected" example:"deposit"`
	TaxSplitDisplay bool        `json:"tax_split_display" example:"false"`
	Structure       string      `json:"structure" example:"single"`
	PlanIDs         []uuid.UUID `json:"plan_ids,omitempty"`
}

func toDepositSettingsResponse(s deposit.Settings) DepositSettingsResponse {
	return DepositSettingsResponse{
		Enabled:         s.Enabled,
		CheckoutMode:    s.CheckoutMode,
		AmountType:      string(s.AmountType),
		Amount:          s.Amount.String(),
		ForceDeposit:    s.ForceDeposit,
		DefaultSelected: string(s.DefaultSelection()),
		TaxSplitDisplay: s.TaxSplitDisplay,
		Structure:       string(s.Structure),
		PlanIDs:         s.PlanIDs,
	}
}

// GetSettings godoc
// @ID           getDepositSettings
// @Summary      Get deposit settings
// @Description  Returns the store's deposit configuration as the storefront needs it
// @Tags         deposit
// @Produce      json
// @Success      200 {object} APIResponse[DepositSettingsResponse]
// @Router       /deposit/settings [get]
func (h *CheckoutHandler) GetSettings(c *gin.Context) {
	h.Success(c, toDepositSettingsResponse(h.service.Settings()))
}

// Quote godoc
// @ID           quoteCartDeposit
// @Summary      Quote the deposit of a cart
// @Description  Computes deposit, remaining balance and payment schedule for the cart
// @Tags         deposit
// @Accept       json
// @Produce      json
// @Param        X-Session-ID header string false "Checkout session"
// @Param        request body depositapp.QuoteRequest true "Cart snapshot"
// @Success      200 {object} APIResponse[depositapp.CartDepositResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /cart/deposit/quote [post]
func (h *CheckoutHandler) Quote(c *gin.Context) {
	tenantID, sessionID, ok := h.checkoutScope(c)
	if !ok {
		return
	}
	var req depositapp.QuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Quote(c.Request.Context(), tenantID, sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateSelection godoc
// @ID           updateCartDepositSelection
// @Summary      Update the deposit selection
// @Description  Stores the buyer's deposit or full payment choice and selected plan, then re-quotes
// @Tags         deposit
// @Accept       json
// @Produce      json
// @Param        X-Session-ID header string false "Checkout session"
// @Param        request body depositapp.QuoteRequest true "Selection and cart snapshot"
// @Success      200 {object} APIResponse[depositapp.CartDepositResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /cart/deposit/selection [put]
func (h *CheckoutHandler) UpdateSelection(c *gin.Context) {
	tenantID, sessionID, ok := h.checkoutScope(c)
	if !ok {
		return
	}
	var req depositapp.QuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.UpdateSelection(c.Request.Context(), tenantID, sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GatewayTotal godoc
// @ID           getGatewayDisplayTotal
// @Summary      Get the wallet gateway total
// @Description  Returns the amount a payment gateway should charge now, the deposit when one applies
// @Tags         deposit
// @Accept       json
// @Produce      json
// @Param        X-Session-ID header string false "Checkout session"
// @Param        request body depositapp.CartInput true "Cart snapshot"
// @Success      200 {object} APIResponse[GatewayTotalData]
// @Failure      400 {object} ErrorResponse
// @Router       /cart/deposit/gateway-total [post]
func (h *CheckoutHandler) GatewayTotal(c *gin.Context) {
	tenantID, sessionID, ok := h.checkoutScope(c)
	if !ok {
		return
	}
	var cart depositapp.CartInput
	if !h.BindJSON(c, &cart) {
		return
	}

	total, err := h.service.GatewayDisplayTotal(c.Request.Context(), tenantID, sessionID, cart)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, GatewayTotalData{Total: total.String(), Currency: cart.Currency})
}

// PlaceOrder godoc
// @ID           placeDepositOrder
// @Summary      Place an order
// @Description  Creates the parent order and freezes the deposit schedule onto it
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Session-ID header string false "Checkout session"
// @Param        request body depositapp.PlaceOrderRequest true "Order"
// @Success      201 {object} APIResponse[depositapp.OrderScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /orders [post]
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	tenantID, sessionID, ok := h.checkoutScope(c)
	if !ok {
		return
	}
	var req depositapp.PlaceOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.PlaceOrder(c.Request.Context(), tenantID, sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetOrderSchedule godoc
// @ID           getOrderSchedule
// @Summary      Get an order's payment schedule
// @Description  Returns the frozen schedule and the payment orders generated from it
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[depositapp.OrderScheduleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /orders/{id}/schedule [get]
func (h *CheckoutHandler) GetOrderSchedule(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	orderID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.GetOrderSchedule(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ChangeStatus godoc
// @ID           changeOrderStatus
// @Summary      Apply an order status change
// @Description  Status webhook: repairs the schedule, materializes payment orders and syncs the deposit order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body depositapp.ChangeStatusRequest true "New status"
// @Success      200 {object} APIResponse[depositapp.TransitionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/status [post]
func (h *CheckoutHandler) ChangeStatus(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	orderID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var req depositapp.ChangeStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.ChangeOrderStatus(c.Request.Context(), tenantID, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CompletePayment godoc
// @ID           completeOrderPayment
// @Summary      Confirm an order payment
// @Description  Gateway confirmation: completes the deposit payment order and marks the deposit paid
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body depositapp.PaymentCompleteRequest false "Gateway event"
// @Success      200 {object} APIResponse[depositapp.TransitionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id}/payment-complete [post]
func (h *CheckoutHandler) CompletePayment(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	orderID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var req depositapp.PaymentCompleteRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.CompletePayment(c.Request.Context(), tenantID, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *CheckoutHandler) checkoutScope(c *gin.Context) (uuid.UUID, string, bool) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return uuid.Nil, "", false
	}
	sessionID, err := getSessionID(c)
	if err != nil {
		h.BadRequest(c, "Checkout session could not be resolved")
		return uuid.Nil, "", false
	}
	return tenantID, sessionID, true
}
