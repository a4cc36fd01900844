package game

import (
	"context"
	"sync"
	"time"

	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
	"github.com/Axidify/Terminality-V2-sub001/internal/metrics"
)

const defaultSaveTimeout = 10 * time.Second

// Saver writes desktop state in the background. It is the only writer for
// its store: each key has at most one pending write and a newer submission
// replaces one that has not started. Failures are logged and counted, never
// returned to the session.
type Saver struct {
	store   StateStore
	timeout time.Duration

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewSaver starts the writer goroutine. Stop it with Close.
func NewSaver(store StateStore, timeout time.Duration) *Saver {
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	s := &Saver{
		store:   store,
		timeout: timeout,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit queues data for key without blocking. It reports false once the
// saver is closed.
func (s *Saver) Submit(key string, data []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if _, queued := s.pending[key]; !queued {
		s.order = append(s.order, key)
	}
	s.pending[key] = data
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *Saver) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Saver) next() (string, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return "", nil, false
	}
	key := s.order[0]
	s.order = s.order[1:]
	data := s.pending[key]
	delete(s.pending, key)
	return key, data, true
}

func (s *Saver) run() {
	defer close(s.done)
	for {
		<-s.wake
		for {
			key, data, ok := s.next()
			if !ok {
				break
			}
			s.write(key, data)
		}
		s.mu.Lock()
		finished := s.closed && len(s.order) == 0
		s.mu.Unlock()
		if finished {
			return
		}
	}
}

func (s *Saver) write(key string, data []byte) {
	start := time.Now()
	err := timedSave(s.store, key, data, s.timeout)
	metrics.RecordSave(s.store.Name(), time.Since(start), err == nil)
	if err != nil {
		logging.L().Error("save desktop state",
			logging.String("key", key),
			logging.String("backend", s.store.Name()),
			logging.Err(err),
		)
	}
}

// Close stops accepting work, drains what is queued and waits for the
// writer to exit or ctx to end.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if !already {
		s.signal()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
