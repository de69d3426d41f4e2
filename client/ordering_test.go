package client

import (
	"testing"
	"time"
)

func at(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func TestConversationsOrderByLatestActivity(t *testing.T) {
	e := NewEngine("me", &fakeTransport{}, &fakeHistory{})

	e.TrackConversation("t1", "a", at(10))
	e.TrackConversation("t2", "b", at(30))
	e.TrackConversation("t3", "c", at(20))

	got := e.Conversations()
	want := []string{"t2", "t3", "t1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: want %s, got %s (full order %v)", i, id, got[i].ID, ids(got))
		}
	}

	// New activity moves a conversation to the front.
	e.Touch("t1", at(40))
	got = e.Conversations()
	want = []string{"t1", "t2", "t3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("after touch, position %d: want %s, got %s (full order %v)", i, id, got[i].ID, ids(got))
		}
	}
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	e := NewEngine("me", &fakeTransport{}, &fakeHistory{})
	e.TrackConversation("t1", "a", at(30))

	e.Touch("t1", at(10))

	got := e.Conversations()
	if !got[0].UpdatedAt.Equal(at(30)) {
		t.Fatalf("stale touch must not rewind activity, got %v", got[0].UpdatedAt)
	}
}

func TestEqualTimestampsKeepStableOrder(t *testing.T) {
	e := NewEngine("me", &fakeTransport{}, &fakeHistory{})
	e.TrackConversation("t1", "a", at(10))
	e.TrackConversation("t2", "b", at(10))
	e.TrackConversation("t3", "c", at(10))

	first := ids(e.Conversations())
	for i := 0; i < 5; i++ {
		if next := ids(e.Conversations()); !equal(first, next) {
			t.Fatalf("order jittered between renders: %v vs %v", first, next)
		}
	}
}

func TestInboundMessageTracksConversation(t *testing.T) {
	e := NewEngine("me", &fakeTransport{}, &fakeHistory{})

	e.OnMessage(confirmed("m1", "c9", "peer", "hello", at(5)), "")

	got := e.Conversations()
	if len(got) != 1 || got[0].ID != "c9" {
		t.Fatalf("inbound message must register its conversation, got %v", ids(got))
	}
	if got[0].PeerID != "peer" {
		t.Errorf("peer identity must be learned from the sender")
	}
	if got[0].LastSeen != "hello" {
		t.Errorf("last message hint not updated: %q", got[0].LastSeen)
	}
}

func ids(convs []Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
