package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/bookstore/internal/models"
)

const (
	TypeOrderCreated       = "order_created"
	TypeOrderStatusChanged = "order_status_changed"

	DefaultTopic = "order_events"
)

type Line struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Event struct {
	Type        string           `json:"type"`
	OrderID     uuid.UUID        `json:"orderId"`
	UserID      string           `json:"userId"`
	Status      string           `json:"status"`
	OldStatus   string           `json:"oldStatus,omitempty"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	Items       []Line           `json:"items,omitempty"`
	At          time.Time        `json:"at"`
}

func OrderCreated(o *models.Order) Event {
	lines := make([]Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	total := o.TotalAmount
	return Event{
		Type:        TypeOrderCreated,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: &total,
		Items:       lines,
		At:          time.Now().UTC(),
	}
}

func StatusChanged(o *models.Order, old models.OrderStatus) Event {
	return Event{
		Type:      TypeOrderStatusChanged,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		OldStatus: string(old),
		At:        time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
