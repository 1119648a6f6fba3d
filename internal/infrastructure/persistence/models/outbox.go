package models

import (
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxEventModel is a row of outbox_events: one serialized deposit or
// payment plan event waiting to be relayed to the event bus. Timestamps come
// from the publisher's and processor's clocks, never from GORM.
type OutboxEventModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null"`
	EventID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string     `gorm:"type:varchar(255);not null"`
	AggregateID   uuid.UUID  `gorm:"type:uuid;not null"`
	AggregateType string     `gorm:"type:varchar(255);not null"`
	Payload       []byte     `gorm:"type:jsonb;not null"`
	Status        string     `gorm:"type:varchar(20);not null"`
	RetryCount    int        `gorm:"not null"`
	MaxRetries    int        `gorm:"not null"`
	LastError     string     `gorm:"type:text;not null"`
	NextRetryAt   *time.Time `gorm:"type:timestamptz"`
	ProcessedAt   *time.Time `gorm:"type:timestamptz"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (OutboxEventModel) TableName() string {
	return "outbox_events"
}

// ToDomain converts the row to a domain OutboxEntry
func (m *OutboxEventModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		Payload:       m.Payload,
		Status:        shared.OutboxStatus(m.Status),
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		LastError:     m.LastError,
		NextRetryAt:   m.NextRetryAt,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// DeliveryColumns holds the columns that change after insert
func (m *OutboxEventModel) DeliveryColumns() map[string]any {
	return map[string]any{
		"status":        m.Status,
		"retry_count":   m.RetryCount,
		"last_error":    m.LastError,
		"next_retry_at": m.NextRetryAt,
		"processed_at":  m.ProcessedAt,
		"updated_at":    m.UpdatedAt,
	}
}

// OutboxEventModelFromDomain creates a row from a domain OutboxEntry
func OutboxEventModelFromDomain(e *shared.OutboxEntry) *OutboxEventModel {
	return &OutboxEventModel{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Payload:       e.Payload,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// OutboxEventsToDomain converts rows to domain entries, keeping their order
func OutboxEventsToDomain(rows []OutboxEventModel) []*shared.OutboxEntry {
	out := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}
