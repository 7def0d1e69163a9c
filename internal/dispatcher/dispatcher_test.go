package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":STEP:", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":STEP:", Args: []string{"0.05"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":NOPE:"})
	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":KNOWN:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":KNOWN:") {
		t.Error("expected HasHandler to return true")
	}
	if d.HasHandler(":UNKNOWN:") {
		t.Error("expected HasHandler to return false")
	}
}

func TestDispatcher_HandlerError(t *testing.T) {
	d, _ := newTestDispatcher(t)

	wantErr := fmt.Errorf("tick aborted")
	d.Register(":STEP:", func(e Event) (any, error) {
		return nil, wantErr
	})

	_, err := d.Dispatch(Event{Command: ":STEP:"})
	if err != wantErr {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int64
	d.Register(":DUMP:", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		result, err := d.Dispatch(Event{Command: ":DUMP:"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for processed.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if processed.Load() != 5 {
		t.Errorf("expected 5 processed events, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	d.Register(":SLOW:", func(e Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1))

	// First event occupies the worker, second fills the buffer. Subsequent
	// dispatches must be rejected, not block the caller.
	d.Dispatch(Event{Command: ":SLOW:"})
	time.Sleep(50 * time.Millisecond)
	d.Dispatch(Event{Command: ":SLOW:"})

	dropped := false
	for i := 0; i < 10; i++ {
		if _, err := d.Dispatch(Event{Command: ":SLOW:"}); err != nil {
			dropped = true
			break
		}
	}
	close(release)

	if !dropped {
		t.Error("expected a dispatch to be dropped when the queue is full")
	}
}

func TestDispatcher_BlockingHandlerQueuesAll(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int64
	d.Register(":LOGGED:", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	for i := 0; i < 20; i++ {
		if _, err := d.Dispatch(Event{Command: ":LOGGED:"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for processed.Load() < 20 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if processed.Load() != 20 {
		t.Errorf("expected 20 processed events, got %d", processed.Load())
	}
}

func TestDispatcher_LoggedOption(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":STEP:", func(e Event) (any, error) {
		return nil, nil
	}, Logged())

	before := logger.count()
	d.Dispatch(Event{Command: ":STEP:"})
	if logger.count() <= before {
		t.Error("expected logged handler to emit log messages")
	}
}
