package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tecu23/match-server/pkg/events"
)

func TestPublishDeliversInOrderSynchronously(t *testing.T) {
	publisher := events.NewPublisher()

	var seen []string
	publisher.Subscribe(events.EventMoveApplied, func(event events.Event) {
		seen = append(seen, event.SessionID)
	})

	publisher.Publish(events.Event{Type: events.EventMoveApplied, SessionID: "a"})
	publisher.Publish(events.Event{Type: events.EventMoveApplied, SessionID: "b"})
	publisher.Publish(events.Event{Type: events.EventMoveApplied, SessionID: "c"})

	// no synchronization: delivery happens in the caller's goroutine, in
	// publish order
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestPublishOnlyReachesMatchingSubscribers(t *testing.T) {
	publisher := events.NewPublisher()

	var moves, ends int
	publisher.Subscribe(events.EventMoveApplied, func(events.Event) { moves++ })
	publisher.Subscribe(events.EventSessionEnded, func(events.Event) { ends++ })

	publisher.Publish(events.Event{Type: events.EventMoveApplied})

	assert.Equal(t, 1, moves)
	assert.Equal(t, 0, ends)
}
