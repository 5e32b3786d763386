package domain

import (
	"fmt"
	"time"
)

// OrderState is the lifecycle state of a simulated order.
type OrderState string

const (
	OrderCreated   OrderState = "CREATED"
	OrderPending   OrderState = "PENDING"
	OrderFilled    OrderState = "FILLED"
	OrderCancelled OrderState = "CANCELLED"
	OrderRejected  OrderState = "REJECTED"
)

// Terminal reports whether no further transition may leave this state.
func (s OrderState) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// OrderEvent drives the order state machine.
type OrderEvent string

const (
	EventSubmit OrderEvent = "SUBMIT"
	EventFill   OrderEvent = "FILL"
	EventCancel OrderEvent = "CANCEL"
	EventReject OrderEvent = "REJECT"
)

// Order is a sized request produced from an accepted signal. Quantity is
// signed: positive buys, negative sells. Once the order reaches a terminal
// state it is immutable.
type Order struct {
	ID             string
	Symbol         string
	Direction      Direction
	Quantity       int64
	RequestedPrice float64
	FillPrice      float64
	Commission     float64
	RuleID         RuleID
	State          OrderState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvalidTransitionError reports an attempt to advance an order out of a
// terminal state, or along an edge the state machine does not define.
type InvalidTransitionError struct {
	OrderID string
	From    OrderState
	Event   OrderEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid transition %s on %s", e.OrderID, e.Event, e.From)
}

// transitions is the only place legal state machine edges are defined. Every
// caller goes through Advance; terminal states have no outgoing edges.
var transitions = map[OrderState]map[OrderEvent]OrderState{
	OrderCreated: {
		EventSubmit: OrderPending,
		EventCancel: OrderCancelled,
		EventReject: OrderRejected,
	},
	OrderPending: {
		EventFill:   OrderFilled,
		EventCancel: OrderCancelled,
		EventReject: OrderRejected,
	},
}

// Advance moves the order along one state machine edge. It fails with
// *InvalidTransitionError when the order is already terminal or the edge does
// not exist; the order is left untouched on failure.
func (o *Order) Advance(event OrderEvent, at time.Time) error {
	edges, ok := transitions[o.State]
	if !ok {
		return &InvalidTransitionError{OrderID: o.ID, From: o.State, Event: event}
	}
	next, ok := edges[event]
	if !ok {
		return &InvalidTransitionError{OrderID: o.ID, From: o.State, Event: event}
	}
	o.State = next
	o.UpdatedAt = at
	return nil
}
