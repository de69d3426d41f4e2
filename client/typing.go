package client

import (
	"context"
	"sync"
	"time"
)

// typingIdle is how long after the last keystroke the typing flag clears.
const typingIdle = time.Second

// TypingNotifier debounces keystroke activity into at most one typing=true
// frame per burst and a trailing typing=false once the user pauses. One
// notifier per open conversation.
type TypingNotifier struct {
	mu             sync.Mutex
	transport      Transport
	conversationID string
	active         bool
	timer          *time.Timer
}

func NewTypingNotifier(transport Transport, conversationID string) *TypingNotifier {
	return &TypingNotifier{transport: transport, conversationID: conversationID}
}

// Keystroke signals input activity. The first call of a burst emits
// typing=true; subsequent calls only push the idle deadline out.
func (n *TypingNotifier) Keystroke(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(typingIdle, n.idle)

	if !n.active {
		n.active = true
		// Best effort: a dropped typing frame is invisible noise.
		_ = n.transport.SendTyping(ctx, n.conversationID, true)
	}
}

// Stop clears the typing state immediately, for when the message is sent or
// the conversation is closed.
func (n *TypingNotifier) Stop(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.active {
		n.active = false
		_ = n.transport.SendTyping(ctx, n.conversationID, false)
	}
}

func (n *TypingNotifier) idle() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.active {
		return
	}
	n.active = false
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = n.transport.SendTyping(ctx, n.conversationID, false)
}
