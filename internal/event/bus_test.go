package event

import (
	"sync"
	"testing"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe("claim.registered", func(e Event) {
		got = append(got, e)
	})

	bus.Publish(NewClaimRegisteredEvent("agent-1", "pkg/foo.go"))
	bus.Publish(NewClaimReleasedEvent("agent-1", "pkg/foo.go")) // different type, not delivered

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	ev, ok := got[0].(ClaimRegisteredEvent)
	if !ok {
		t.Fatalf("got event of type %T, want ClaimRegisteredEvent", got[0])
	}
	if ev.AgentID != "agent-1" || ev.FilePath != "pkg/foo.go" {
		t.Errorf("event = %+v, want agent-1/pkg/foo.go", ev)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.SubscribeAll(func(Event) { count++ })

	bus.Publish(NewPlanSubmittedEvent("agent-1", 3))
	bus.Publish(NewConflictDetectedEvent([]string{"a.go"}, []string{"x", "y"}))
	bus.Publish(NewViolationDetectedEvent("agent-2", "b.go", "unclaimed_edit"))

	if count != 3 {
		t.Errorf("wildcard handler called %d times, want 3", count)
	}
}

func TestSpecificHandlersRunBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe("batch.started", func(Event) { order = append(order, "specific") })

	bus.Publish(NewBatchStartedEvent(1, []string{"agent-1"}))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("delivery order = %v, want [specific wildcard]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	id := bus.Subscribe("phase.changed", func(Event) { count++ })

	bus.Publish(NewPhaseChangedEvent("swarm-1", "init", "planning", ""))

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for live subscription")
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for removed subscription")
	}

	bus.Publish(NewPhaseChangedEvent("swarm-1", "planning", "conflict_detection", ""))

	if count != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", count)
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	bus := NewBus()

	bus.Subscribe("claim.released", func(Event) { panic("boom") })

	delivered := false
	bus.Subscribe("claim.released", func(Event) { delivered = true })

	bus.Publish(NewClaimReleasedEvent("agent-1", "a.go"))

	if !delivered {
		t.Error("second handler not called after first handler panicked")
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("claim.registered", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewClaimRegisteredEvent("agent-1", "a.go"))
		}()
	}
	wg.Wait()

	if count != 10 {
		t.Errorf("handler called %d times, want 10", count)
	}
}
