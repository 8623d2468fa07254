package domain

import "context"

// Event describes one committed lifecycle mutation. Events are
// published after the surrounding transaction commits, never before.
type Event struct {
	Action     string         `json:"action"`
	BillID     string         `json:"bill_id"`
	BillNumber string         `json:"bill_number"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Lifecycle event actions.
const (
	EventBillCreated   = "bill.created"
	EventItemAdded     = "bill.item_added"
	EventItemMerged    = "bill.item_merged"
	EventItemUpdated   = "bill.item_updated"
	EventItemRemoved   = "bill.item_removed"
	EventBillSubmitted = "bill.submitted"
	EventBillPaid      = "bill.paid"
	EventBillCompleted = "bill.completed"
	EventBillCancelled = "bill.cancelled"
)

// Publisher receives lifecycle events. Implementations must not block
// the caller; publish failures are the publisher's problem, not the
// lifecycle service's.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }
