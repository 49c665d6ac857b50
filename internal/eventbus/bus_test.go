package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankstream/internal/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLocalBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewLocalBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got1, got2 []models.RankingChangeEvent

	unsub1, err := bus.Subscribe(func(ev models.RankingChangeEvent) {
		mu.Lock()
		got1 = append(got1, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub1()

	unsub2, err := bus.Subscribe(func(ev models.RankingChangeEvent) {
		mu.Lock()
		got2 = append(got2, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub2()

	ev := models.RankingChangeEvent{
		EventType:  models.EventRankingUpdate,
		PeriodType: "weekly",
		PeriodKey:  "2026-W10",
	}
	require.NoError(t, bus.Publish(context.Background(), ev))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got1) == 1 && len(got2) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "2026-W10", got1[0].PeriodKey)
	assert.Equal(t, "2026-W10", got2[0].PeriodKey)
}

func TestLocalBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewLocalBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var count int

	unsub, err := bus.Subscribe(func(models.RankingChangeEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), models.RankingChangeEvent{}))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	unsub()
	require.NoError(t, bus.Publish(context.Background(), models.RankingChangeEvent{}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestLocalBusPublishNeverBlocks(t *testing.T) {
	bus := NewLocalBus(1)
	defer bus.Close()

	block := make(chan struct{})
	_, err := bus.Subscribe(func(models.RankingChangeEvent) {
		<-block
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = bus.Publish(context.Background(), models.RankingChangeEvent{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	close(block)
}
