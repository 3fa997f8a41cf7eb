package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub[int](4)
	defer hub.Close()

	a, cancelA := hub.Subscribe()
	defer cancelA()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	hub.Publish(1)
	hub.Publish(2)

	assert.Equal(t, 1, <-a)
	assert.Equal(t, 2, <-a)
	assert.Equal(t, 1, <-b)
	assert.Equal(t, 2, <-b)
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	hub := NewHub[int](2)
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(1)
	hub.Publish(2)
	hub.Publish(3)

	assert.Equal(t, 2, <-ch)
	assert.Equal(t, 3, <-ch)
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub[int](2)
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	cancel()
	cancel() // idempotent

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())
}

func TestHubCloseClosesSubscribers(t *testing.T) {
	hub := NewHub[int](2)

	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// publishing after close is a no-op, not a panic
	hub.Publish(1)

	late, cancelLate := hub.Subscribe()
	defer cancelLate()
	_, ok = <-late
	assert.False(t, ok)
}

func TestHubPublishSyncDeliversAll(t *testing.T) {
	hub := NewHub[int](1)
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	defer cancel()

	got := make(chan int, 3)
	go func() {
		for v := range ch {
			got <- v
		}
	}()

	for i := 1; i <= 3; i++ {
		require.NoError(t, hub.PublishSync(t.Context(), i))
	}

	for i := 1; i <= 3; i++ {
		select {
		case v := <-got:
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatal("sync publish lost a message")
		}
	}
}

func TestQueuePublishAndRun(t *testing.T) {
	q := NewQueue[string](2)

	require.NoError(t, q.TryPublish("a"))
	require.NoError(t, q.TryPublish("b"))
	assert.ErrorIs(t, q.TryPublish("c"), ErrQueueFull)

	q.Close()
	assert.ErrorIs(t, q.TryPublish("d"), ErrQueueClosed)

	var got []string
	q.Run(t.Context(), func(v string) {
		got = append(got, v)
	})

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestQueueCloseDuringTryPublish(t *testing.T) {
	q := NewQueue[int](1)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				if err := q.TryPublish(i); errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}

	q.Close()
	wg.Wait()

	assert.ErrorIs(t, q.TryPublish(0), ErrQueueClosed)
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	q := NewQueue[int](1)
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Publish(t.Context(), 1), ErrQueueClosed)
}
