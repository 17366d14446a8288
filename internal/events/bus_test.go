package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicJoinsKindSiteAndStream(t *testing.T) {
	assert.Equal(t, "build:site-1", Topic(KindBuild, "site-1"))
	assert.Equal(t, "agent:site-1:phase", Topic(KindAgent, "site-1", "phase"))
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("build:site-1")
	defer sub.Close()

	bus.Publish("build:site-1", TypePhase, map[string]string{"phase": "crawl"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, TypePhase, ev.Type)
		assert.Equal(t, "build:site-1", ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishOnlyReachesMatchingTopic(t *testing.T) {
	bus := New()
	subA := bus.Subscribe("build:site-1")
	defer subA.Close()
	subB := bus.Subscribe("build:site-2")
	defer subB.Close()

	bus.Publish("build:site-1", TypeLog, "hello")

	select {
	case ev := <-subA.Events():
		assert.Equal(t, TypeLog, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected subA to receive the event")
	}

	select {
	case <-subB.Events():
		t.Fatal("subB should not receive an event published to a different topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	bus := New()
	done := make(chan struct{})
	go func() {
		bus.Publish("build:orphan", TypeLog, "no one listening")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("build:site-1")
	defer sub.Close()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish("build:site-1", TypeLog, i)
	}

	assert.Greater(t, bus.DroppedCount("build:site-1"), 0)
}

func TestCloseUnregistersSubscriberAndClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("build:site-1")
	sub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed")

	require.NotPanics(t, func() {
		bus.Publish("build:site-1", TypeLog, "after close")
	})
}
