package handler

import (
	"context"

	depositapp "github.com/erp/deposits/internal/application/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/interfaces/http/dto"
	"github.com/erp/deposits/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentPlanService is the payment plan use case consumed by PaymentPlanHandler
type PaymentPlanService interface {
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[depositapp.PaymentPlanResponse], error)
	Get(ctx context.Context, tenantID, planID uuid.UUID) (*depositapp.PaymentPlanResponse, error)
	Create(ctx context.Context, tenantID uuid.UUID, req depositapp.SavePaymentPlanRequest) (*depositapp.PaymentPlanResponse, error)
	Update(ctx context.Context, tenantID, planID uuid.UUID, req depositapp.SavePaymentPlanRequest) (*depositapp.PaymentPlanResponse, error)
	Delete(ctx context.Context, tenantID, planID uuid.UUID) error
}

// PaymentPlanHandler handles payment plan administration
type PaymentPlanHandler struct {
	BaseHandler
	service PaymentPlanService
}

// NewPaymentPlanHandler creates a new PaymentPlanHandler
func NewPaymentPlanHandler(service PaymentPlanService) *PaymentPlanHandler {
	return &PaymentPlanHandler{service: service}
}

// List godoc
// @ID           listPaymentPlans
// @Summary      List payment plans
// @Tags         payment-plans
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        search query string false "Name search"
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]depositapp.PaymentPlanResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payment-plans [get]
func (h *PaymentPlanHandler) List(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if details := middleware.ValidationDetails(err); len(details) > 0 {
			h.ValidationError(c, details)
			return
		}
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.service.List(c.Request.Context(), tenantID, req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @ID           getPaymentPlan
// @Summary      Get a payment plan
// @Tags         payment-plans
// @Produce      json
// @Param        id path string true "Plan ID" format(uuid)
// @Success      200 {object} APIResponse[depositapp.PaymentPlanResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payment-plans/{id} [get]
func (h *PaymentPlanHandler) Get(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	planID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}

	plan, err := h.service.Get(c.Request.Context(), tenantID, planID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Create godoc
// @ID           createPaymentPlan
// @Summary      Create a payment plan
// @Tags         payment-plans
// @Accept       json
// @Produce      json
// @Param        request body depositapp.SavePaymentPlanRequest true "Plan"
// @Success      201 {object} APIResponse[depositapp.PaymentPlanResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payment-plans [post]
func (h *PaymentPlanHandler) Create(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	var req depositapp.SavePaymentPlanRequest
	if !h.BindJSON(c, &req) {
		return
	}

	plan, err := h.service.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, plan)
}

// Update godoc
// @ID           updatePaymentPlan
// @Summary      Replace a payment plan
// @Tags         payment-plans
// @Accept       json
// @Produce      json
// @Param        id path string true "Plan ID" format(uuid)
// @Param        request body depositapp.SavePaymentPlanRequest true "Plan"
// @Success      200 {object} APIResponse[depositapp.PaymentPlanResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payment-plans/{id} [put]
func (h *PaymentPlanHandler) Update(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	planID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var req depositapp.SavePaymentPlanRequest
	if !h.BindJSON(c, &req) {
		return
	}

	plan, err := h.service.Update(c.Request.Context(), tenantID, planID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Delete godoc
// @ID           deletePaymentPlan
// @Summary      Delete a payment plan
// @Tags         payment-plans
// @Param        id path string true "Plan ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payment-plans/{id} [delete]
func (h *PaymentPlanHandler) Delete(c *gin.Context) {
	tenantID, ok := h.RequireTenant(c)
	if !ok {
		return
	}
	planID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), tenantID, planID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
