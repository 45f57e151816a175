package lending

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	key := uuid.New()

	unlock := k.Lock(key)
	acquired := make(chan struct{})
	go func() {
		release := k.Lock(key)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	if k.size() != 0 {
		t.Fatalf("expected lock table to drain, got %d entries", k.size())
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	unlockA := k.Lock(uuid.New())
	defer unlockA()

	wg.Add(1)
	go func() {
		defer wg.Done()
		k.Lock(uuid.New())()
	}()
	wg.Wait()
}
