package async

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPanicLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubPanicLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *stubPanicLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func TestGoRecoversPanic(t *testing.T) {
	logger := &stubPanicLogger{}
	done := make(chan struct{})

	Go(logger, "ipfs.cat", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for goroutine")
	}

	require.Eventually(t, func() bool { return len(logger.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, logger.snapshot()[0], "goroutine panic [ipfs.cat]: boom")
}

func TestGoRunsWithoutPanic(t *testing.T) {
	logger := &stubPanicLogger{}
	done := make(chan int, 1)
	Go(logger, "ok", func() { done <- 42 })
	assert.Equal(t, 42, <-done)
	assert.Empty(t, logger.snapshot())
}

func TestRecoverHandlesNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover(nil, "nil-logger")
		panic("boom")
	})
}
