package signals

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCloseRunsRegisteredHandlersOnce(t *testing.T) {
	w := &Watcher{doneCh: make(chan struct{})}
	var calls int32
	w.AddOnClose(func() { atomic.AddInt32(&calls, 1) })
	w.AddOnClose(func() { atomic.AddInt32(&calls, 1) })

	w.Close()
	w.Close()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	select {
	case <-w.Done():
	default:
		t.Fatal("Done channel should be closed")
	}
}

func TestCloseIsSafeConcurrently(t *testing.T) {
	w := &Watcher{doneCh: make(chan struct{})}
	var calls int32
	w.AddOnClose(func() { atomic.AddInt32(&calls, 1) })

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			w.Close()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoneBlocksUntilClose(t *testing.T) {
	w := &Watcher{doneCh: make(chan struct{})}
	select {
	case <-w.Done():
		t.Fatal("Done should not be closed yet")
	case <-time.After(10 * time.Millisecond):
	}
	w.Close()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should be closed after Close")
	}
}
