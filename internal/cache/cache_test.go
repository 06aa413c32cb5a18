package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFingerprintOrderInsensitive(t *testing.T) {
	a := Fingerprint("bars", []string{"AAPL", "MSFT"}, "1Hour")
	b := Fingerprint("bars", []string{"msft", " aapl "}, "1hour")
	if a != b {
		t.Fatalf("expected identical fingerprints, got %q and %q", a, b)
	}
	c := Fingerprint("bars", []string{"AAPL"}, "1Hour")
	if a == c {
		t.Fatalf("different symbol sets must not collide")
	}
	d := Fingerprint("quote", []string{"AAPL", "MSFT"}, "1Hour")
	if a == d {
		t.Fatalf("different operations must not collide")
	}
}

func TestFetchOrComputeCachesWithinTTL(t *testing.T) {
	now := time.Now()
	c := New(60*time.Second, WithNow(func() time.Time { return now }))

	var calls int32
	producer := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.FetchOrCompute("k", producer)
		if err != nil {
			t.Fatalf("FetchOrCompute returned error: %v", err)
		}
		if v.(int) != 42 {
			t.Fatalf("unexpected value: %v", v)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 producer call, got %d", got)
	}
}

func TestFetchOrComputeRefreshesAfterTTL(t *testing.T) {
	now := time.Now()
	c := New(60*time.Second, WithNow(func() time.Time { return now }))

	var calls int32
	producer := func() (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	if _, err := c.FetchOrCompute("k", producer); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	now = now.Add(61 * time.Second)
	v, err := c.FetchOrCompute("k", producer)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if v.(int32) != 2 {
		t.Fatalf("expected refreshed value 2, got %v", v)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected exactly 2 producer calls, got %d", got)
	}
}

func TestProducerFailureNotCached(t *testing.T) {
	c := New(60 * time.Second)

	var calls int32
	boom := errors.New("upstream down")
	producer := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	if _, err := c.FetchOrCompute("k", producer); !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if _, err := c.FetchOrCompute("k", producer); !errors.Is(err, boom) {
		t.Fatalf("expected producer error on retry, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("failure must not be cached; expected 2 calls, got %d", got)
	}
	if c.Len() != 0 {
		t.Fatalf("failed fetch must not store an entry")
	}
}

func TestConcurrentFetchSingleFlight(t *testing.T) {
	c := New(60 * time.Second)

	var calls int32
	release := make(chan struct{})
	producer := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := c.FetchOrCompute("k", producer); err != nil {
				t.Errorf("FetchOrCompute returned error: %v", err)
			}
		}()
	}
	// Give the goroutines time to pile onto the same key, then let the
	// single producer finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected single in-flight producer call, got %d", got)
	}
}

func TestGetExpiredEntry(t *testing.T) {
	now := time.Now()
	c := New(time.Second, WithNow(func() time.Time { return now }))
	c.Put("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected fresh entry")
	}
	now = now.Add(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry at exactly TTL age to be expired")
	}
}
