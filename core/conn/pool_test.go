package conn

import (
	"testing"

	"github.com/eventcore/eventcore/core/httpcore"
)

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	r := httpcore.NewRouter()
	p := NewPool(4, r, 0, 1024, 1024, nil)

	c, ok := p.Acquire(10)
	if !ok || c == nil {
		t.Fatalf("expected acquire to succeed, got ok=%v", ok)
	}
	if got := p.Stats().InUse; got != 1 {
		t.Fatalf("InUse = %d, want 1", got)
	}

	p.Release(10)
	if got := p.Stats().InUse; got != 0 {
		t.Fatalf("InUse = %d, want 0 after release", got)
	}
}

func TestPoolExhaustionReturnsFalse(t *testing.T) {
	r := httpcore.NewRouter()
	p := NewPool(2, r, 0, 1024, 1024, nil)

	if _, ok := p.Acquire(1); !ok {
		t.Fatal("expected first acquire to succeed")
	}
	if _, ok := p.Acquire(2); !ok {
		t.Fatal("expected second acquire to succeed")
	}
	if _, ok := p.Acquire(3); ok {
		t.Fatal("expected third acquire to fail: pool is at capacity")
	}
}

func TestPoolSlotReuseAfterRelease(t *testing.T) {
	r := httpcore.NewRouter()
	p := NewPool(1, r, 0, 1024, 1024, nil)

	c1, ok := p.Acquire(5)
	if !ok {
		t.Fatal("expected acquire to succeed")
	}
	p.Release(5)

	c2, ok := p.Acquire(6)
	if !ok {
		t.Fatal("expected acquire to succeed after release")
	}
	if c1 != c2 {
		t.Fatal("expected the freed slot's Connection object to be reused")
	}
	if c2.FD() != 6 {
		t.Fatalf("FD = %d, want 6", c2.FD())
	}
}

func TestPoolReleaseOfUnknownFDIsNoop(t *testing.T) {
	r := httpcore.NewRouter()
	p := NewPool(2, r, 0, 1024, 1024, nil)
	p.Release(999) // must not panic or corrupt state
	if got := p.Stats().InUse; got != 0 {
		t.Fatalf("InUse = %d, want 0", got)
	}
}
