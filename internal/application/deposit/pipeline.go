package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline stages, in the order an order passes through them
const (
	StageOrderCreated     = "order_created"
	StageStatusChanged    = "status_changed"
	StagePaymentCompleted = "payment_completed"
)

// LifecyclePipeline runs the deposit stages for order lifecycle hooks in a
// fixed order: freeze the schedule when the order is created, then on every
// status change repair the stored schedule, create the payment orders once
// and sync the deposit payment order.
//
// Gateways redeliver webhooks; when an event ID is supplied the pipeline
// records it in the idempotency store and skips repeats.
type LifecyclePipeline struct {
	orders       deposit.OrderRepository
	materializer *deposit.Materializer
	stateMachine *deposit.StateMachine
	idempotency  shared.IdempotencyStore
	idemConfig   shared.IdempotencyConfig
	publisher    shared.EventPublisher
	logger       *zap.Logger
}

// PipelineOption configures a LifecyclePipeline
type PipelineOption func(*LifecyclePipeline)

// WithIdempotencyStore enables webhook deduplication
func WithIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) PipelineOption {
	return func(p *LifecyclePipeline) {
		p.idempotency = store
		p.idemConfig = cfg
	}
}

// WithEventPublisher publishes the domain events raised by each stage
func WithEventPublisher(publisher shared.EventPublisher) PipelineOption {
	return func(p *LifecyclePipeline) {
		p.publisher = publisher
	}
}

// NewLifecyclePipeline creates a LifecyclePipeline
func NewLifecyclePipeline(
	orders deposit.OrderRepository,
	materializer *deposit.Materializer,
	stateMachine *deposit.StateMachine,
	logger *zap.Logger,
	opts ...PipelineOption,
) *LifecyclePipeline {
	p := &LifecyclePipeline{
		orders:       orders,
		materializer: materializer,
		stateMachine: stateMachine,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnOrderCreated freezes the computed deposit onto a freshly created order
func (p *LifecyclePipeline) OnOrderCreated(ctx context.Context, order *deposit.Order, info deposit.DepositInfo, selection deposit.Selection) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "deposit_pipeline", StageOrderCreated)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, order.ID.String(),
		telemetry.SpanAttrOrderNumber, order.Number,
		"selection", string(selection),
	)

	changed, err := deposit.FreezeDeposit(order, info, selection)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !changed {
		return nil
	}
	if err := p.orders.Save(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("save order with deposit schedule: %w", err)
	}

	p.logger.Info("deposit schedule frozen",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.Number),
		zap.String("selection", string(selection)),
		zap.String("deposit_amount", order.Meta.Get(deposit.MetaDepositAmount)),
	)
	p.publish(ctx, order)
	return nil
}

// OnOrderStatusChanged applies a status change to an order and runs the
// repair, materialize and sync stages for it
func (p *LifecyclePipeline) OnOrderStatusChanged(ctx context.Context, tenantID, orderID uuid.UUID, status deposit.OrderStatus, eventID string) (*TransitionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "deposit_pipeline", StageStatusChanged)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, orderID.String(),
		telemetry.SpanAttrOrderStatus, status.String(),
	)

	key := webhookKey(orderID, StageStatusChanged+":"+status.String(), eventID)
	if dup, err := p.seen(ctx, key); err != nil || dup {
		return &TransitionResponse{OrderID: orderID, Status: status.String(), Duplicate: dup}, err
	}

	order, err := p.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	old := order.Status
	changed, err := order.UpdateStatus(status)
	if err != nil {
		return nil, err
	}
	repaired, err := p.repair(order)
	if err != nil {
		return nil, err
	}
	if changed || repaired {
		if err := p.orders.Save(ctx, order); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("save order status: %w", err)
		}
	}

	resp := &TransitionResponse{OrderID: order.ID, Status: order.Status.String()}
	var created []*deposit.Order
	if materializesOn(status) {
		created, err = p.materialize(ctx, order, resp)
		if err != nil {
			telemetry.RecordError(span, err)
			p.publish(ctx, append([]*deposit.Order{order}, created...)...)
			return nil, err
		}
	}

	t, err := p.stateMachine.OnParentStatusChanged(ctx, order, old, status)
	if err != nil {
		telemetry.RecordError(span, err)
		p.publish(ctx, append([]*deposit.Order{order}, created...)...)
		return nil, err
	}
	applyTransition(resp, t)

	p.logger.Info("order status processed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", old.String()),
		zap.String("to", status.String()),
		zap.Bool("materialized", resp.Materialized),
		zap.Bool("deposit_applied", t.Applied),
	)
	p.publish(ctx, append([]*deposit.Order{order, t.Order}, created...)...)
	p.markSeen(ctx, key)
	return resp, nil
}

// OnPaymentCompleted handles a gateway's payment confirmation for an order
func (p *LifecyclePipeline) OnPaymentCompleted(ctx context.Context, tenantID, orderID uuid.UUID, eventID string) (*TransitionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "deposit_pipeline", StagePaymentCompleted)
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrOrderID, orderID.String())

	key := webhookKey(orderID, StagePaymentCompleted, eventID)
	if dup, err := p.seen(ctx, key); err != nil || dup {
		return &TransitionResponse{OrderID: orderID, Duplicate: dup}, err
	}

	order, err := p.orders.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	repaired, err := p.repair(order)
	if err != nil {
		return nil, err
	}
	if repaired {
		if err := p.orders.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("save repaired schedule: %w", err)
		}
	}

	resp := &TransitionResponse{OrderID: order.ID, Status: order.Status.String()}
	created, err := p.materialize(ctx, order, resp)
	if err != nil {
		telemetry.RecordError(span, err)
		p.publish(ctx, append([]*deposit.Order{order}, created...)...)
		return nil, err
	}

	t, err := p.stateMachine.OnPaymentCompleted(ctx, order)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	applyTransition(resp, t)

	p.logger.Info("order payment completed",
		zap.String("order_id", order.ID.String()),
		zap.Bool("materialized", resp.Materialized),
		zap.Bool("deposit_applied", t.Applied),
	)
	p.publish(ctx, append([]*deposit.Order{order, t.Order}, created...)...)
	p.markSeen(ctx, key)
	return resp, nil
}

func (p *LifecyclePipeline) repair(order *deposit.Order) (bool, error) {
	if !order.ScheduleNeedsRepair() {
		return false, nil
	}
	if err := order.SetSchedule(order.Schedule()); err != nil {
		return false, err
	}
	p.logger.Warn("repaired legacy payment schedule", zap.String("order_id", order.ID.String()))
	return true, nil
}

func (p *LifecyclePipeline) materialize(ctx context.Context, order *deposit.Order, resp *TransitionResponse) ([]*deposit.Order, error) {
	if !deposit.ShouldMaterialize(order) {
		return nil, nil
	}
	result, err := p.materializer.Materialize(ctx, order)
	if err != nil {
		p.logger.Error("payment order materialization failed",
			zap.String("order_id", order.ID.String()),
			zap.Int("created", len(result.Created)),
			zap.Error(err),
		)
		return result.Created, err
	}
	resp.Materialized = !result.Skipped
	p.logger.Info("payment orders created",
		zap.String("order_id", order.ID.String()),
		zap.Int("count", len(result.Created)),
	)
	return result.Created, nil
}

// materializesOn lists the statuses at which the order is considered placed
func materializesOn(status deposit.OrderStatus) bool {
	switch status {
	case deposit.OrderStatusOnHold, deposit.OrderStatusProcessing,
		deposit.OrderStatusCompleted, deposit.OrderStatusPartiallyPaid:
		return true
	}
	return false
}

func applyTransition(resp *TransitionResponse, t deposit.Transition) {
	if t.Order == nil {
		return
	}
	id := t.DepositOrderID
	resp.DepositOrderID = &id
	resp.DepositStatus = t.Order.Status.String()
	resp.DepositApplied = t.Applied
	resp.DepositPaidFlag = t.DepositPaid && t.Applied
}

func webhookKey(orderID uuid.UUID, stage, eventID string) string {
	if eventID == "" {
		return ""
	}
	return fmt.Sprintf("deposit:webhook:%s:%s:%s", orderID, stage, eventID)
}

func (p *LifecyclePipeline) seen(ctx context.Context, key string) (bool, error) {
	if key == "" || p.idempotency == nil || !p.idemConfig.Enabled {
		return false, nil
	}
	dup, err := p.idempotency.IsProcessed(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check webhook delivery: %w", err)
	}
	if dup {
		p.logger.Info("skipping duplicate webhook delivery", zap.String("key", key))
	}
	return dup, nil
}

func (p *LifecyclePipeline) markSeen(ctx context.Context, key string) {
	if key == "" || p.idempotency == nil || !p.idemConfig.Enabled {
		return
	}
	ttl := p.idemConfig.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if _, err := p.idempotency.MarkProcessed(ctx, key, ttl); err != nil {
		p.logger.Warn("failed to record webhook delivery", zap.String("key", key), zap.Error(err))
	}
}

// publish forwards and clears the events raised on the given orders.
// Publishing failures are logged; the stage outcome is already persisted.
func (p *LifecyclePipeline) publish(ctx context.Context, orders ...*deposit.Order) {
	seen := make(map[uuid.UUID]bool, len(orders))
	for _, o := range orders {
		if o == nil || seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		events := o.GetDomainEvents()
		if len(events) == 0 {
			continue
		}
		o.ClearDomainEvents()
		if p.publisher == nil {
			continue
		}
		if err := p.publisher.Publish(ctx, events...); err != nil {
			p.logger.Error("failed to publish order events",
				zap.String("order_id", o.ID.String()),
				zap.Int("events", len(events)),
				zap.Error(err),
			)
		}
	}
}
