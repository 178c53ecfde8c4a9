package poller

import (
	"os"
	"testing"
	"time"
)

func TestAddPollFiresOnReadable(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	fired := make(chan Events, 1)
	ok, err := p.Add(fd, Readable, func(fd int, ev Events) {
		fired <- ev
	})
	if err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := p.Poll(1000)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one fired fd")
	}
	select {
	case ev := <-fired:
		if ev&Readable == 0 {
			t.Fatalf("expected Readable event, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}

	if ok, err := p.Remove(fd); err != nil || !ok {
		t.Fatalf("Remove: ok=%v err=%v", ok, err)
	}
}

func TestAddTwiceFails(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	if ok, err := p.Add(fd, Readable, func(int, Events) {}); err != nil || !ok {
		t.Fatalf("first Add: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Add(fd, Readable, func(int, Events) {}); err != nil || ok {
		t.Fatalf("second Add should fail, got ok=%v err=%v", ok, err)
	}
}

func TestModifyUnregisteredFails(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	if _, err := p.Modify(999999, Readable); err != ErrNotRegistered {
		t.Fatalf("got err=%v, want ErrNotRegistered", err)
	}
}
