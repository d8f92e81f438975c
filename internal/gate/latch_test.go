package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatch_ReleasesAllWaiters(t *testing.T) {
	l := NewLatch()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(context.Background()))
		}()
	}

	assert.False(t, l.IsOpen())
	l.Open()
	l.Open()

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released")
	}

	assert.True(t, l.IsOpen())
	assert.NoError(t, l.Wait(context.Background()), "late waiters pass immediately")
}

func TestLatch_WaitCancelled(t *testing.T) {
	l := NewLatch()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
