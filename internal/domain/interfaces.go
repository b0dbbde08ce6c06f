package domain

import (
	"context"
	"time"
)

// PositionStore holds at most one durable PositionRecord per slot.
type PositionStore interface {
	// HasOpen reports whether the slot holds a live record. A record past
	// its expiry is cleared as a side effect and reported as absent.
	HasOpen(ctx context.Context, slot Slot) bool
	// Get returns the slot's record, or nil when the slot is empty.
	Get(ctx context.Context, slot Slot) (*PositionRecord, error)
	// Save overwrites the slot's record and stamps the current time.
	Save(ctx context.Context, slot Slot, rec *PositionRecord) error
	// Clear removes the record. Clearing an empty slot is a no-op.
	Clear(ctx context.Context, slot Slot) error
}

// Ledger is an idempotency registry of opaque event identifiers.
type Ledger interface {
	Seen(id string) bool
	Mark(id string)
}

// Dispatcher delivers an order instruction to one or more downstream
// webhooks with bounded retry. Delivery failures are logged, never
// returned; the caller always observes a normal return.
type Dispatcher interface {
	Deliver(ctx context.Context, instr *OrderInstruction, urls []string, label string, entryTrade bool, ectx *EntryContext)
}

// Notifier sends the best-effort side-channel summary on entry trades.
type Notifier interface {
	Notify(ctx context.Context, instr *OrderInstruction, label string, ectx *EntryContext)
}

// MessageSource reads the most recent message(s) from an upstream
// channel.
type MessageSource interface {
	FetchLatest(ctx context.Context, channelID string) (*Message, error)
	FetchRecent(ctx context.Context, channelID string, limit int) ([]Message, error)
}

// DispatchRecord is one journalled delivery outcome.
type DispatchRecord struct {
	ID        string
	Ticker    string
	Action    Action
	Quantity  int
	Price     string
	OrderType string
	Label     string
	URL       string
	Status    string // delivered or failed
	Attempts  int
	CreatedAt time.Time
}

// Journal persists dispatch outcomes for operator review.
type Journal interface {
	Record(ctx context.Context, rec *DispatchRecord) error
	ListRecent(ctx context.Context, limit int) ([]*DispatchRecord, error)
}
