package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndEmit(t *testing.T) {
	emitter := NewEmitter()

	var received []Event
	unsubscribe := emitter.Subscribe(func(e Event) {
		received = append(received, e)
	})
	defer unsubscribe()

	emitter.Emit(EventBatchCompleted, map[string]interface{}{"batch_id": "b-1"})

	require.Len(t, received, 1)
	assert.Equal(t, EventBatchCompleted, received[0].Type)
	assert.Equal(t, "b-1", received[0].Payload["batch_id"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	emitter := NewEmitter()

	count := 0
	unsubscribe := emitter.Subscribe(func(Event) { count++ })

	emitter.Emit(EventAirdropQueued, nil)
	unsubscribe()
	emitter.Emit(EventAirdropQueued, nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, emitter.SubscriberCount())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	emitter := NewEmitter()

	unsubscribe := emitter.Subscribe(func(Event) {})
	other := emitter.Subscribe(func(Event) {})
	_ = other

	unsubscribe()
	unsubscribe()

	assert.Equal(t, 1, emitter.SubscriberCount())
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	emitter := NewEmitter()

	delivered := false
	emitter.Subscribe(func(Event) { panic("boom") })
	emitter.Subscribe(func(Event) { delivered = true })

	assert.NotPanics(t, func() {
		emitter.Emit(EventAutonomousDistributionFailed, nil)
	})
	assert.True(t, delivered)
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishEvent(eventType string, payload interface{}) {
	f.events = append(f.events, eventType)
}

func TestBridgeToNATS(t *testing.T) {
	emitter := NewEmitter()
	publisher := &fakePublisher{}

	unsubscribe := BridgeToNATS(emitter, publisher)
	emitter.Emit(EventBatchQueued, map[string]interface{}{"batch_id": "b-2"})

	require.Len(t, publisher.events, 1)
	assert.Equal(t, string(EventBatchQueued), publisher.events[0])

	unsubscribe()
	emitter.Emit(EventBatchQueued, nil)
	assert.Len(t, publisher.events, 1)
}
