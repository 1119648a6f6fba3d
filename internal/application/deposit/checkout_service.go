package deposit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/erp/deposits/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxCheckoutPlans = 100

// CheckoutService serves the storefront: deposit quotes for the cart,
// the buyer's choice, order placement and order webhooks
type CheckoutService struct {
	orders     deposit.OrderRepository
	plans      deposit.PaymentPlanRepository
	sessions   deposit.SessionStore
	calculator *deposit.Calculator
	pipeline   *LifecyclePipeline
	settings   deposit.Settings
	currency   valueobject.Currency
	logger     *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	orders deposit.OrderRepository,
	plans deposit.PaymentPlanRepository,
	sessions deposit.SessionStore,
	calculator *deposit.Calculator,
	pipeline *LifecyclePipeline,
	settings deposit.Settings,
	currency valueobject.Currency,
	logger *zap.Logger,
) *CheckoutService {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &CheckoutService{
		orders:     orders,
		plans:      plans,
		sessions:   sessions,
		calculator: calculator,
		pipeline:   pipeline,
		settings:   settings,
		currency:   currency,
		logger:     logger,
	}
}

// Settings returns the store deposit configuration
func (s *CheckoutService) Settings() deposit.Settings {
	return s.settings
}

// Quote returns the deposit breakdown of the cart for the session's choice
func (s *CheckoutService) Quote(ctx context.Context, tenantID uuid.UUID, sessionID string, req QuoteRequest) (*CartDepositResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "quote")
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	q, err := s.quote(ctx, tenantID, session, ToCartTotals(req.Cart, s.currency), deposit.Selection(req.DepositOption), req.SelectedPlan)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.saveSession(ctx, sessionID, session); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"deposit_enabled", q.info.Enabled,
		telemetry.SpanAttrAmount, q.info.DepositAmount.String(),
	)
	return q.response(req.Cart.Total), nil
}

// UpdateSelection stores the buyer's payment mode and plan, then re-quotes
func (s *CheckoutService) UpdateSelection(ctx context.Context, tenantID uuid.UUID, sessionID string, req QuoteRequest) (*CartDepositResponse, error) {
	if req.DepositOption == "" && req.SelectedPlan == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "deposit_option or selected_plan is required")
	}
	if req.DepositOption != "" && !deposit.Selection(req.DepositOption).IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "deposit_option must be deposit or full")
	}
	if s.settings.ForceDeposit && deposit.Selection(req.DepositOption) == deposit.SelectionFull {
		return nil, shared.NewDomainError("DEPOSIT_REQUIRED", "This store requires a deposit")
	}
	return s.Quote(ctx, tenantID, sessionID, req)
}

// PlaceOrder creates the parent order and freezes the deposit onto it
func (s *CheckoutService) PlaceOrder(ctx context.Context, tenantID uuid.UUID, sessionID string, req PlaceOrderRequest) (*OrderScheduleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "place_order")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrOrderNumber, req.Number)

	currency := s.currency
	if req.Currency != "" {
		c, err := valueobject.ParseCurrency(req.Currency)
		if err != nil {
			return nil, shared.NewDomainErrorWithCause("INVALID_CURRENCY", "Unknown currency: "+req.Currency, err)
		}
		currency = c
	}

	order, err := deposit.NewOrder(tenantID, req.Number, currency)
	if err != nil {
		return nil, err
	}
	fillOrder(order, req)

	if err := s.orders.Create(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	totals := orderCartTotals(order, req)
	q, err := s.quote(ctx, tenantID, session, totals, deposit.Selection(req.DepositOption), req.SelectedPlan)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	info := deposit.ProrateBreakdown(q.info, orderParts(order, req), order.Total)

	if err := s.pipeline.OnOrderCreated(ctx, order, info, q.selection); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.saveSession(ctx, sessionID, session); err != nil {
		s.logger.Warn("failed to persist checkout session", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.Number),
		zap.String("total", order.Total.String()),
		zap.Bool("has_deposit", order.HasDeposit()),
	)
	return toOrderScheduleResponse(order, nil), nil
}

// ChangeOrderStatus applies a status webhook
func (s *CheckoutService) ChangeOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, req ChangeStatusRequest) (*TransitionResponse, error) {
	status, ok := deposit.ParseOrderStatus(req.Status)
	if !ok {
		return nil, shared.NewDomainError("INVALID_STATUS", "Unknown order status: "+req.Status)
	}
	return s.pipeline.OnOrderStatusChanged(ctx, tenantID, orderID, status, req.EventID)
}

// CompletePayment applies a gateway payment confirmation
func (s *CheckoutService) CompletePayment(ctx context.Context, tenantID, orderID uuid.UUID, req PaymentCompleteRequest) (*TransitionResponse, error) {
	return s.pipeline.OnPaymentCompleted(ctx, tenantID, orderID, req.EventID)
}

// GetOrderSchedule returns the stored schedule and the generated payment orders
func (s *CheckoutService) GetOrderSchedule(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderScheduleResponse, error) {
	order, err := s.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	children, err := s.orders.FindChildren(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return toOrderScheduleResponse(order, children), nil
}

// GatewayDisplayTotal is the amount a wallet gateway should show for the cart
func (s *CheckoutService) GatewayDisplayTotal(ctx context.Context, tenantID uuid.UUID, sessionID string, cart CartInput) (decimal.Decimal, error) {
	resp, err := s.Quote(ctx, tenantID, sessionID, QuoteRequest{Cart: cart})
	if err != nil {
		return decimal.Zero, err
	}
	return resp.DisplayTotal, nil
}

type quoteResult struct {
	info      deposit.DepositInfo
	selection deposit.Selection
	settings  deposit.Settings
	plans     []deposit.PaymentPlan
}

func (q quoteResult) response(cartTotal decimal.Decimal) *CartDepositResponse {
	resp := &CartDepositResponse{
		DepositEnabled:    q.info.Enabled,
		DepositAmount:     q.info.DepositAmount,
		RemainingAmount:   q.info.RemainingAmount,
		HasPaymentPlans:   len(q.plans) > 0,
		PaymentSchedule:   ToScheduleResponse(q.info.Schedule),
		CurrentlySelected: string(q.selection),
		SelectedPlan:      q.info.SelectedPlan,
		ForceDeposit:      q.settings.ForceDeposit,
		DisplayTotal:      deposit.GatewayDisplayTotal(q.info, cartTotal),
	}
	if q.info.Enabled {
		resp.DepositBreakdown = ToBreakdownResponse(q.info.Breakdown)
	}
	for _, p := range q.plans {
		resp.AvailablePlans = append(resp.AvailablePlans, PaymentPlanSummary{ID: p.ID, Name: p.Name})
	}
	return resp
}

func (s *CheckoutService) quote(ctx context.Context, tenantID uuid.UUID, session deposit.MapSession, totals deposit.CartTotals, explicit deposit.Selection, explicitPlan string) (quoteResult, error) {
	settings, plans, err := s.settingsFor(ctx, tenantID)
	if err != nil {
		return quoteResult{}, err
	}
	cc := deposit.CheckoutContext{Totals: totals, Session: session, Settings: settings}
	selection := deposit.ResolveSelection(cc, explicit)

	var plan *deposit.PaymentPlan
	if settings.AmountType == deposit.AmountTypePaymentPlan {
		if id, ok := deposit.ResolvePlan(cc, explicitPlan); ok {
			for i := range plans {
				if plans[i].ID == id {
					plan = &plans[i]
					break
				}
			}
		}
	}

	return quoteResult{
		info:      s.calculator.Compute(cc, selection, plan),
		selection: selection,
		settings:  settings,
		plans:     plans,
	}, nil
}

// settingsFor completes the store settings with the tenant's payment plans
func (s *CheckoutService) settingsFor(ctx context.Context, tenantID uuid.UUID) (deposit.Settings, []deposit.PaymentPlan, error) {
	settings := s.settings
	if settings.AmountType != deposit.AmountTypePaymentPlan || s.plans == nil {
		return settings, nil, nil
	}
	plans, _, err := s.plans.FindAllForTenant(ctx, tenantID, shared.Filter{Page: 1, PageSize: maxCheckoutPlans})
	if err != nil {
		return settings, nil, fmt.Errorf("load payment plans: %w", err)
	}
	settings.PlanIDs = make([]uuid.UUID, 0, len(plans))
	for _, p := range plans {
		settings.PlanIDs = append(settings.PlanIDs, p.ID)
	}
	return settings, plans, nil
}

func (s *CheckoutService) loadSession(ctx context.Context, sessionID string) (deposit.MapSession, error) {
	if sessionID == "" || s.sessions == nil {
		return deposit.MapSession{}, nil
	}
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return deposit.MapSession{}, nil
		}
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	if session == nil {
		session = deposit.MapSession{}
	}
	return session, nil
}

func (s *CheckoutService) saveSession(ctx context.Context, sessionID string, session deposit.MapSession) error {
	if sessionID == "" || s.sessions == nil {
		return nil
	}
	if err := s.sessions.Save(ctx, sessionID, session); err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	return nil
}

func fillOrder(order *deposit.Order, req PlaceOrderRequest) {
	order.PricesIncludeTax = req.PricesIncludeTax
	order.CustomerID = req.CustomerID
	order.Billing = deposit.Billing{
		FirstName: req.Billing.FirstName,
		LastName:  req.Billing.LastName,
		Company:   req.Billing.Company,
		Address1:  req.Billing.Address1,
		Address2:  req.Billing.Address2,
		City:      req.Billing.City,
		State:     req.Billing.State,
		Postcode:  req.Billing.Postcode,
		Country:   req.Billing.Country,
		Email:     req.Billing.Email,
		Phone:     req.Billing.Phone,
	}
	order.CustomerIP = req.CustomerIP
	order.UserAgent = req.UserAgent
	order.PaymentMethod = req.PaymentMethod
	order.PaymentMethodTitle = req.PaymentMethodTitle

	for _, item := range req.Items {
		subtotal := item.Subtotal
		if subtotal.IsZero() {
			subtotal = item.Total
		}
		order.AddProduct(item.ProductID, item.Name, item.Quantity, subtotal, item.Total, item.Tax)
	}
	if req.Shipping.IsPositive() {
		order.AddShipping("Shipping", req.Shipping)
	}
	if req.Discount.IsPositive() {
		order.AddFee("Coupon discount", req.Discount.Neg(), false)
	}
	order.CartTax = req.CartTax.Add(req.ShippingTax)
	order.RecalculateTotals()
}

func orderCartTotals(order *deposit.Order, req PlaceOrderRequest) deposit.CartTotals {
	totals := deposit.CartTotals{
		Currency: order.Currency,
		Subtotal: order.Subtotal,
		Total:    order.Total,
	}
	for _, item := range req.Items {
		totals.Items = append(totals.Items, deposit.CartItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			LineSubtotal:   item.Subtotal,
			LineTotal:      item.Total,
			DepositEnabled: item.DepositEnabled,
			DepositAmount:  item.DepositAmount,
		})
	}
	return totals
}

// orderParts splits the order total into the components shown on the deposit
func orderParts(order *deposit.Order, req PlaceOrderRequest) deposit.Breakdown {
	items := decimal.Zero
	lineTax := decimal.Zero
	for _, item := range order.ProductItems() {
		items = items.Add(item.Total)
		lineTax = lineTax.Add(item.TotalTax)
	}
	parts := deposit.Breakdown{
		CartItems:     items,
		Shipping:      req.Shipping,
		Discount:      req.Discount,
		DiscountTotal: req.Discount,
	}
	if !order.PricesIncludeTax {
		parts.Taxes = lineTax.Add(req.CartTax)
		parts.ShippingTaxes = req.ShippingTax
	}
	return parts
}

func toOrderScheduleResponse(order *deposit.Order, children []deposit.Order) *OrderScheduleResponse {
	resp := &OrderScheduleResponse{
		ID:                order.ID,
		Number:            order.Number,
		Status:            order.Status.String(),
		Currency:          string(order.Currency),
		Total:             order.Total,
		HasDeposit:        order.HasDeposit(),
		DepositAmount:     order.Meta.Get(deposit.MetaDepositAmount),
		SecondPayment:     order.Meta.Get(deposit.MetaSecondPayment),
		DepositPaid:       order.Meta.IsYes(deposit.MetaDepositPaid),
		SecondPaymentPaid: order.Meta.IsYes(deposit.MetaSecondPaymentPaid),
		Itemized:          order.Meta.IsYes(deposit.MetaItemizedPayments),
		Schedule:          ToScheduleResponse(order.Schedule()),
		PaymentOrders:     make([]PaymentOrderResponse, 0, len(children)),
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})
	for i := range children {
		resp.PaymentOrders = append(resp.PaymentOrders, ToPaymentOrderResponse(&children[i]))
	}
	return resp
}
