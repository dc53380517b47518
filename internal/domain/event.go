package domain

import "time"

// EventKind names a challan or payment state change.
type EventKind string

const (
	EventChallanCreated  EventKind = "challan_created"
	EventPaymentReceived EventKind = "payment_received"
	EventChallanDisputed EventKind = "challan_disputed"
	EventPaymentRefunded EventKind = "payment_refunded"
)

// Payload keys shared by publishers and channels.
const (
	PayloadChallanID     = "challan_id"
	PayloadChallanNumber = "challan_number"
	PayloadViolation     = "violation"
	PayloadVehicle       = "vehicle_number"
	PayloadAmount        = "amount"
	PayloadDueDate       = "due_date"
	PayloadStatus        = "status"
	PayloadTransactionID = "transaction_id"
	PayloadPaymentID     = "payment_id"
	PayloadReason        = "reason"
	PayloadRecipientName = "recipient_name"
	PayloadEmail         = "email"
	PayloadPhone         = "phone"
	PayloadActorID       = "actor_id"
)

// Event is an ephemeral notification about a state change. It is consumed
// once by the notification bus and never stored by the core.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time
	Payload    map[string]any
}

// NewEvent creates an event stamped with the given time.
func NewEvent(kind EventKind, at time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Kind: kind, OccurredAt: at, Payload: payload}
}

// String returns a payload value as a string, or "" if absent.
func (e Event) String(key string) string {
	v, ok := e.Payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
