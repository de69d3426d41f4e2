package client

import (
	"context"
	"testing"
	"time"
)

func typingFrames(tr *fakeTransport) []bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]bool, len(tr.typing))
	copy(out, tr.typing)
	return out
}

func TestKeystrokeBurstEmitsOneTypingTrue(t *testing.T) {
	tr := &fakeTransport{}
	n := NewTypingNotifier(tr, "c1")

	for i := 0; i < 10; i++ {
		n.Keystroke(context.Background())
	}

	got := typingFrames(tr)
	if len(got) != 1 || !got[0] {
		t.Fatalf("a burst must emit a single typing=true, got %v", got)
	}
	n.Stop(context.Background())
}

func TestStopEmitsTypingFalse(t *testing.T) {
	tr := &fakeTransport{}
	n := NewTypingNotifier(tr, "c1")

	n.Keystroke(context.Background())
	n.Stop(context.Background())

	got := typingFrames(tr)
	if len(got) != 2 || got[1] {
		t.Fatalf("stop must emit typing=false, got %v", got)
	}
}

func TestStopWithoutActivityIsSilent(t *testing.T) {
	tr := &fakeTransport{}
	n := NewTypingNotifier(tr, "c1")

	n.Stop(context.Background())
	if got := typingFrames(tr); len(got) != 0 {
		t.Fatalf("no frames expected, got %v", got)
	}
}

func TestIdleClearsTyping(t *testing.T) {
	tr := &fakeTransport{}
	n := NewTypingNotifier(tr, "c1")

	n.Keystroke(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := typingFrames(tr); len(got) == 2 {
			if got[1] {
				t.Fatalf("idle must clear typing, got %v", got)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("typing=false not emitted after idle period")
}
