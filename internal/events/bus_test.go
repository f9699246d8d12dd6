package events

import (
	"testing"

	"go.uber.org/zap"
)

func TestBus_DeliversToVariantSubscribersOnly(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var started, failed int
	bus.Subscribe(TypeStarted, func(Event) { started++ })
	bus.Subscribe(TypeFailed, func(Event) { failed++ })

	bus.Publish(Event{Type: TypeStarted, ToolID: "t1"})
	bus.Publish(Event{Type: TypeStarted, ToolID: "t2"})

	if started != 2 {
		t.Errorf("expected 2 started deliveries, got %d", started)
	}
	if failed != 0 {
		t.Errorf("failed subscriber should not receive started events, got %d", failed)
	}
}

func TestBus_MultipleSubscribersPerVariant(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var a, b int
	bus.Subscribe(TypeSucceeded, func(Event) { a++ })
	bus.Subscribe(TypeSucceeded, func(Event) { b++ })

	bus.Publish(Event{Type: TypeSucceeded})

	if a != 1 || b != 1 {
		t.Errorf("both subscribers should receive the event, got a=%d b=%d", a, b)
	}
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var reached bool
	bus.Subscribe(TypeFailed, func(Event) { panic("subscriber bug") })
	bus.Subscribe(TypeFailed, func(Event) { reached = true })

	bus.Publish(Event{Type: TypeFailed, Reason: ReasonExecution})

	if !reached {
		t.Error("second subscriber should receive the event despite the first panicking")
	}
}

func TestBus_FillsTimestamp(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got Event
	bus.Subscribe(TypeStarted, func(e Event) { got = e })
	bus.Publish(Event{Type: TypeStarted})

	if got.Timestamp.IsZero() {
		t.Error("publish should fill a missing timestamp")
	}
}

func TestBus_NoSubscribersIsFine(t *testing.T) {
	bus := NewBus(zap.NewNop())
	bus.Publish(Event{Type: TypeAuditSinkError}) // must not panic
}
