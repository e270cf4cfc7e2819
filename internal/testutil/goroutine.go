package testutil

import (
	"runtime"
	"testing"
	"time"
)

const (
	// Session teardown is synchronous and the socket pumps exit once the
	// connection is closed, so stragglers are only httptest handlers and
	// the runtime's own timers. A short deadline with fine polling keeps the
	// teardown tests fast.
	leakDeadline = 5 * time.Second
	leakPoll     = 50 * time.Millisecond
)

// AssertNoGoroutineLeaks waits for the goroutine count to fall back to
// baseline+margin. On failure it logs every goroutine stack.
func AssertNoGoroutineLeaks(t *testing.T, baseline int, margin int) {
	t.Helper()
	deadline := time.Now().Add(leakDeadline)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+margin {
			return
		}
		time.Sleep(leakPoll)
	}

	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("goroutine leak: baseline=%d, current=%d, margin=%d\n%s", baseline, runtime.NumGoroutine(), margin, buf[:n])
}
