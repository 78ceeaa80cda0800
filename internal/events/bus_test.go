package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(EventMediaAdded)
	b := bus.Subscribe(EventMediaAdded)
	other := bus.Subscribe(EventMediaRemoved)

	bus.Publish(EventMediaAdded, Payload{"id": "CLIP"})

	for _, sub := range []Subscriber{a, b} {
		select {
		case payload := <-sub:
			if payload["id"] != "CLIP" {
				t.Fatalf("payload = %v", payload)
			}
		default:
			t.Fatal("subscriber missed publish")
		}
	}

	select {
	case payload := <-other:
		t.Fatalf("unrelated subscriber received %v", payload)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventMediaUpdated)

	// Overfill the buffer; the extra publishes must not block.
	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventMediaUpdated, Payload{"n": i})
	}

	if len(sub) != cap(sub) {
		t.Fatalf("buffered = %d, want %d", len(sub), cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSweepDone)
	bus.Unsubscribe(EventSweepDone, sub)

	if _, ok := <-sub; ok {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventSweepDone, Payload{})
}
