// Package models contains the GORM persistence models of the deposits
// service. Domain types carry no ORM tags; each model converts to and from
// its aggregate.
//
// Files:
// - base.go: shared ID, timestamp, version and tenant columns
// - order.go: orders with their line items, meta rows and notes
// - plan.go: payment plans with installments stored as JSONB
// - outbox.go: pending domain events awaiting relay to the event bus
package models
