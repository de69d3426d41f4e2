package realtime

import (
	"sync"
	"testing"
)

// fakeConn records payloads in place of a real websocket.
type fakeConn struct {
	id     string
	userID string

	mu       sync.Mutex
	received [][]byte
	closed   bool
}

func newFakeConn(id, userID string) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return f.userID }

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnectionClosed
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeConn) Close(code int, reason string) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestRouteDeliversToEveryUserConnection(t *testing.T) {
	reg := NewRegistry()
	phone := newFakeConn("conn-1", "u1")
	laptop := newFakeConn("conn-2", "u1")
	other := newFakeConn("conn-3", "u2")
	reg.Register(phone)
	reg.Register(laptop)
	reg.Register(other)

	if got := reg.Route("u1", []byte("hello")); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}
	if phone.count() != 1 || laptop.count() != 1 {
		t.Error("both u1 connections should receive the payload")
	}
	if other.count() != 0 {
		t.Error("u2 must not receive u1 traffic")
	}
}

func TestRouteToOfflineUserIsNoop(t *testing.T) {
	reg := NewRegistry()
	if got := reg.Route("ghost", []byte("x")); got != 0 {
		t.Fatalf("expected 0 deliveries, got %d", got)
	}
}

func TestUnregisterReportsLastConnection(t *testing.T) {
	reg := NewRegistry()
	a := newFakeConn("conn-1", "u1")
	b := newFakeConn("conn-2", "u1")
	reg.Register(a)
	reg.Register(b)

	if last := reg.Unregister(a); last {
		t.Error("u1 still has a live connection; last must be false")
	}
	if !reg.IsOnline("u1") {
		t.Error("u1 should still be online")
	}
	if last := reg.Unregister(b); !last {
		t.Error("removing the final connection must report last=true")
	}
	if reg.IsOnline("u1") {
		t.Error("u1 should be offline")
	}
	// Unregistering an unknown connection is harmless.
	if last := reg.Unregister(b); last {
		t.Error("double unregister must not report last again")
	}
}

func TestBroadcastAll(t *testing.T) {
	reg := NewRegistry()
	conns := []*fakeConn{
		newFakeConn("c1", "u1"),
		newFakeConn("c2", "u2"),
		newFakeConn("c3", "u3"),
	}
	for _, c := range conns {
		reg.Register(c)
	}

	if got := reg.BroadcastAll([]byte("presence")); got != 3 {
		t.Fatalf("expected 3 deliveries, got %d", got)
	}
	for _, c := range conns {
		if c.count() != 1 {
			t.Errorf("connection %s missed the broadcast", c.id)
		}
	}
}

func TestCloseTerminatesEverything(t *testing.T) {
	reg := NewRegistry()
	c := newFakeConn("c1", "u1")
	reg.Register(c)
	reg.Close()

	if reg.IsOnline("u1") {
		t.Error("no user should remain online after Close")
	}
	if err := c.Send([]byte("x")); err == nil {
		t.Error("closed connection must reject sends")
	}
}
