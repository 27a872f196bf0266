package events

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(discardLogger())

	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish("sync.conflict_detected", map[string]string{"game_id": "zelda"})

	select {
	case evt := <-ch1:
		assert.Equal(t, "sync.conflict_detected", evt.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ch1")
	}

	select {
	case evt := <-ch2:
		assert.Equal(t, "sync.conflict_detected", evt.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ch2")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(discardLogger())

	ch, unsub := b.Subscribe()
	unsub()

	b.Publish("topic", "payload")

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := New(discardLogger())
	done := make(chan struct{})

	go func() {
		b.Publish("topic", "payload")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestPublishDropsOnFullSubscriberChannel(t *testing.T) {
	b := New(discardLogger())
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 100; i++ {
		b.Publish("topic", i)
	}

	require.Len(t, ch, 64)
}
