package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type blockingStore struct {
	mu      sync.Mutex
	saves   []string
	started chan string
	release chan struct{}
	fail    bool
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) Name() string { return "blocking" }

func (s *blockingStore) Load(context.Context, string) ([]byte, error) {
	return nil, ErrStateNotFound
}

func (s *blockingStore) Save(ctx context.Context, key string, data []byte) error {
	s.started <- key
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, key+"="+string(data))
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *blockingStore) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saves...)
}

func TestSaverCoalescesPendingWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newBlockingStore()
	saver := NewSaver(store, time.Second)

	saver.Submit("a", []byte("1"))
	if key := <-store.started; key != "a" {
		t.Fatalf("first save for %q, want a", key)
	}
	// While "a" is being written, newer submissions replace each other.
	saver.Submit("a", []byte("2"))
	saver.Submit("b", []byte("1"))
	saver.Submit("a", []byte("3"))
	close(store.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := saver.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := store.recorded()
	want := []string{"a=1", "a=3", "b=1"}
	if len(got) != len(want) {
		t.Fatalf("saves = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("saves = %v, want %v", got, want)
		}
	}
	if saver.Submit("a", []byte("4")) {
		t.Fatalf("Submit after Close accepted work")
	}
}

func TestSaverSurvivesStoreErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newBlockingStore()
	store.fail = true
	close(store.release)
	saver := NewSaver(store, time.Second)
	saver.Submit("a", []byte("1"))

	if err := saver.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := store.recorded(); len(got) != 1 {
		t.Fatalf("saves = %v", got)
	}
}
