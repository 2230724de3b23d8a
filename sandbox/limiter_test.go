package sandbox

import (
	"testing"
	"time"
)

func TestKeyedLimiters_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewKeyedLimiters(10, 1)

	l1 := s.Get("k")
	l2 := s.Get("k")
	if l1 != l2 {
		t.Fatalf("expected same limiter for same key")
	}
}

func TestKeyedLimiters_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewKeyedLimiters(0.02, 1)

	lim := s.Get("k")
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestKeyedLimiters_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewKeyedLimiters(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get("k")
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected idle entry to be removed, got %d entries", s.Len())
	}

	after := s.Get("k")
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

type fixedStore struct{ allow bool }

type fixedLimiter struct{ allow bool }

func (l fixedLimiter) Allow() bool { return l.allow }

func (s fixedStore) Get(string) Limiter { return fixedLimiter{allow: s.allow} }

func TestDecide(t *testing.T) {
	if !Decide(nil, "k", 0).Allowed {
		t.Fatalf("expected allow without store")
	}
	if !Decide(fixedStore{allow: true}, "k", 0).Allowed {
		t.Fatalf("expected allow")
	}

	dec := Decide(fixedStore{allow: false}, "k", 0)
	if dec.Allowed {
		t.Fatalf("expected deny")
	}
	if dec.RetryAfter != time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}
