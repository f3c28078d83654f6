package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdesk/propdesk/internal/models"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	hub.Publish(models.ReviewEvent{Type: models.EventReviewSubmitted, ReviewID: "r1"})

	got := <-a.Events()
	assert.Equal(t, "r1", got.ReviewID)
	got = <-b.Events()
	assert.Equal(t, "r1", got.ReviewID)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(1)
	slow := hub.Subscribe()

	hub.Publish(models.ReviewEvent{ReviewID: "r1"})
	hub.Publish(models.ReviewEvent{ReviewID: "r2"})

	assert.Equal(t, 0, hub.Count())

	first, ok := <-slow.Events()
	require.True(t, ok)
	assert.Equal(t, "r1", first.ReviewID)

	_, ok = <-slow.Events()
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub(0)
	sub := hub.Subscribe()
	assert.Equal(t, 1, hub.Count())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Count())

	hub.Publish(models.ReviewEvent{ReviewID: "r1"})
}

func TestConcurrentPublish(t *testing.T) {
	hub := NewHub(100)
	sub := hub.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				hub.Publish(models.ReviewEvent{Type: models.EventReviewSubmitted})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sub.Events(), 100)
	hub.Close()
	assert.Equal(t, 0, hub.Count())
}
