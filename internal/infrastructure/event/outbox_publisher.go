package event

import (
	"context"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher stores events in the outbox instead of dispatching them.
// The OutboxProcessor later relays them to the event bus.
type OutboxPublisher struct {
	repo       shared.OutboxRepository
	serializer *EventSerializer
	now        func() time.Time
}

// NewOutboxPublisher creates an OutboxPublisher writing to repo
func NewOutboxPublisher(repo shared.OutboxRepository, serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{repo: repo, serializer: serializer, now: time.Now}
}

// Publish serializes events and saves them as pending outbox entries
func (p *OutboxPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	entries, err := p.entries(events)
	if err != nil || len(entries) == 0 {
		return err
	}
	return p.repo.Save(ctx, entries...)
}

// PublishWithTx saves events using tx so they commit with the caller's changes
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	entries, err := p.entries(events)
	if err != nil || len(entries) == 0 {
		return err
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

func (p *OutboxPublisher) entries(events []shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	now := p.now()
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return nil, err
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload, now))
	}
	return entries, nil
}

var _ shared.EventPublisher = (*OutboxPublisher)(nil)
