package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type sentFrame struct {
	conversationID string
	content        string
	token          string
}

type fakeTransport struct {
	mu     sync.Mutex
	frames []sentFrame
	typing []bool
	err    error
}

func (t *fakeTransport) SendMessage(ctx context.Context, conversationID, content, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.frames = append(t.frames, sentFrame{conversationID, content, token})
	return nil
}

func (t *fakeTransport) SendTyping(ctx context.Context, conversationID string, isTyping bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing = append(t.typing, isTyping)
	return nil
}

func (t *fakeTransport) lastToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		return ""
	}
	return t.frames[len(t.frames)-1].token
}

type fakeHistory struct {
	mu      sync.Mutex
	msgs    []Message
	err     error
	readFor []string
	markErr error
}

func (h *fakeHistory) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	return h.msgs, h.err
}

func (h *fakeHistory) MarkRead(ctx context.Context, conversationID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.markErr != nil {
		return h.markErr
	}
	h.readFor = append(h.readFor, conversationID)
	return nil
}

func (h *fakeHistory) markedRead() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.readFor))
	copy(out, h.readFor)
	return out
}

func confirmed(id, conv, sender, content string, at time.Time) Message {
	return Message{ID: id, ConversationID: conv, SenderID: sender, Content: content, CreatedAt: at}
}

func TestSendShowsPendingThenConfirms(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine("me", tr, &fakeHistory{})

	msg, err := e.Send(context.Background(), "c1", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Status != StatusPending || msg.CorrelationToken == "" {
		t.Fatalf("expected pending message with token, got %+v", msg)
	}

	timeline := e.Messages("c1")
	if len(timeline) != 1 || timeline[0].Status != StatusPending {
		t.Fatalf("expected one pending entry, got %+v", timeline)
	}

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	e.OnMessage(confirmed("m1", "c1", "me", "hello", at), msg.CorrelationToken)

	timeline = e.Messages("c1")
	if len(timeline) != 1 {
		t.Fatalf("confirmation must replace the placeholder, got %d entries", len(timeline))
	}
	got := timeline[0]
	if got.Status != StatusSent || got.ID != "m1" || !got.CreatedAt.Equal(at) {
		t.Errorf("placeholder not replaced with authoritative fields: %+v", got)
	}
	if got.LocalID != msg.LocalID {
		t.Errorf("replacement must keep the entry's local identity")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine("me", tr, &fakeHistory{})

	msg, _ := e.Send(context.Background(), "c1", "hello")
	ev := confirmed("m1", "c1", "me", "hello", time.Now().UTC())

	e.OnMessage(ev, msg.CorrelationToken)
	e.OnMessage(ev, msg.CorrelationToken) // replayed
	e.OnMessage(ev, "")                   // replayed without token

	if n := len(e.Messages("c1")); n != 1 {
		t.Fatalf("replayed confirmations must not duplicate, got %d entries", n)
	}
}

func TestPeerMessagesInsertById(t *testing.T) {
	e := NewEngine("me", &fakeTransport{}, &fakeHistory{})

	ev := confirmed("m7", "c1", "peer", "hi there", time.Now().UTC())
	e.OnMessage(ev, "")
	e.OnMessage(ev, "")

	timeline := e.Messages("c1")
	if len(timeline) != 1 {
		t.Fatalf("expected a single peer entry, got %d", len(timeline))
	}
	if timeline[0].SenderID != "peer" || timeline[0].Status != StatusSent {
		t.Errorf("unexpected peer entry %+v", timeline[0])
	}
}

func TestOutOfOrderConfirmationsKeepSlots(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine("me", tr, &fakeHistory{})

	first, _ := e.Send(context.Background(), "c1", "one")
	second, _ := e.Send(context.Background(), "c1", "two")

	// Confirmations arrive inverted; each placeholder still resolves in its
	// original position.
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	e.OnMessage(confirmed("m2", "c1", "me", "two", base.Add(2*time.Second)), second.CorrelationToken)
	e.OnMessage(confirmed("m1", "c1", "me", "one", base.Add(time.Second)), first.CorrelationToken)

	timeline := e.Messages("c1")
	if len(timeline) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(timeline))
	}
	if timeline[0].ID != "m1" || timeline[1].ID != "m2" {
		t.Errorf("slots must be preserved: got [%s %s]", timeline[0].ID, timeline[1].ID)
	}
}

func TestSendErrorThenRetryUsesFreshToken(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine("me", tr, &fakeHistory{})

	msg, _ := e.Send(context.Background(), "c1", "hello")
	e.OnSendError("c1", msg.CorrelationToken, "failed to persist message")

	timeline := e.Messages("c1")
	if timeline[0].Status != StatusFailed || timeline[0].FailureReason == "" {
		t.Fatalf("expected failed entry with reason, got %+v", timeline[0])
	}

	if err := e.Retry(context.Background(), "c1", msg.LocalID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	timeline = e.Messages("c1")
	if timeline[0].Status != StatusPending {
		t.Errorf("retry must flip back to pending, got %s", timeline[0].Status)
	}
	if tok := tr.lastToken(); tok == msg.CorrelationToken || tok == "" {
		t.Errorf("retry must use a fresh correlation token")
	}
	if timeline[0].CorrelationToken == msg.CorrelationToken {
		t.Errorf("entry must carry the fresh token")
	}
}

func TestRetryIgnoresNonFailedAndUnknownMessages(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine("me", tr, &fakeHistory{})
	msg, _ := e.Send(context.Background(), "c1", "hello")

	// A retry racing the confirmation, or aimed at a discarded entry, is a
	// silent no-op: no error, no second frame on the wire.
	if err := e.Retry(context.Background(), "c1", msg.LocalID); err != nil {
		t.Fatalf("retry of a pending message must be a no-op, got %v", err)
	}
	if err := e.Retry(context.Background(), "c1", "nope"); err != nil {
		t.Fatalf("retry of an unknown message must be a no-op, got %v", err)
	}
	tr.mu.Lock()
	frames := len(tr.frames)
	tr.mu.Unlock()
	if frames != 1 {
		t.Fatalf("no-op retries must not resend, got %d frames", frames)
	}
	if got := e.Messages("c1")[0]; got.Status != StatusPending || got.CorrelationToken != msg.CorrelationToken {
		t.Errorf("no-op retry must leave the entry untouched, got %+v", got)
	}
}

func TestTransportFailureMarksMessageFailed(t *testing.T) {
	tr := &fakeTransport{err: errors.New("socket closed")}
	e := NewEngine("me", tr, &fakeHistory{})

	msg, err := e.Send(context.Background(), "c1", "hello")
	if err == nil {
		t.Fatal("expected send error")
	}
	timeline := e.Messages("c1")
	if len(timeline) != 1 || timeline[0].Status != StatusFailed {
		t.Fatalf("entry must stay visible as failed, got %+v", timeline)
	}
	if timeline[0].LocalID != msg.LocalID {
		t.Error("failed entry must be the optimistic one")
	}
}

func TestConcurrentSendsUseDistinctTokens(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine("me", tr, &fakeHistory{})

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = e.Send(context.Background(), "c1", fmt.Sprintf("msg %d", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, m := range e.Messages("c1") {
		if seen[m.CorrelationToken] {
			t.Fatalf("duplicate correlation token %s", m.CorrelationToken)
		}
		seen[m.CorrelationToken] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d tokens, got %d", n, len(seen))
	}
}

func TestSelectConversationMergesUnresolvedTail(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	history := &fakeHistory{msgs: []Message{
		confirmed("m1", "c1", "peer", "hey", base),
		confirmed("m2", "c1", "me", "hi", base.Add(time.Minute)),
	}}
	tr := &fakeTransport{}
	e := NewEngine("me", tr, history)

	pending, _ := e.Send(context.Background(), "c1", "still typing this")

	timeline, err := e.SelectConversation(context.Background(), "c1")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(timeline) != 3 {
		t.Fatalf("expected persisted history plus pending tail, got %d", len(timeline))
	}
	if timeline[0].ID != "m1" || timeline[1].ID != "m2" {
		t.Errorf("persisted history must lead in order")
	}
	last := timeline[2]
	if last.LocalID != pending.LocalID || last.Status != StatusPending {
		t.Errorf("pending entry must trail the history, got %+v", last)
	}
}

func TestInboundPeerMessageToOpenConversationIsRead(t *testing.T) {
	history := &fakeHistory{}
	e := NewEngine("me", &fakeTransport{}, history)

	if _, err := e.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("select: %v", err)
	}

	e.OnMessage(confirmed("m1", "c1", "peer", "hi", time.Now().UTC()), "")

	timeline := e.Messages("c1")
	if len(timeline) != 1 || !timeline[0].Read {
		t.Fatalf("peer message to the open conversation must land read, got %+v", timeline)
	}
	if got := history.markedRead(); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("a read receipt must go back to the server, got %v", got)
	}
}

func TestInboundMessagesOutsideOpenConversationStayUnread(t *testing.T) {
	// m1 is delivered before any conversation is open and is also part of
	// the persisted history SelectConversation rebuilds the timeline from.
	m1 := confirmed("m1", "c1", "peer", "one", time.Now().UTC())
	history := &fakeHistory{msgs: []Message{m1}}
	e := NewEngine("me", &fakeTransport{}, history)

	// No conversation open yet.
	e.OnMessage(m1, "")

	// c1 open, but the message lands in c2.
	if _, err := e.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	e.OnMessage(confirmed("m2", "c2", "peer", "two", time.Now().UTC()), "")

	// c1 closed again.
	e.Deselect()
	e.OnMessage(confirmed("m3", "c1", "peer", "three", time.Now().UTC()), "")

	for conv, wantLen := range map[string]int{"c1": 2, "c2": 1} {
		for _, m := range e.Messages(conv) {
			if m.Read {
				t.Errorf("%s/%s must stay unread", conv, m.ID)
			}
		}
		if got := len(e.Messages(conv)); got != wantLen {
			t.Errorf("%s: expected %d entries, got %d", conv, wantLen, got)
		}
	}
	if got := history.markedRead(); len(got) != 0 {
		t.Fatalf("no read receipts expected, got %v", got)
	}
}

func TestOwnConfirmationsNeverTriggerReadReceipts(t *testing.T) {
	history := &fakeHistory{}
	tr := &fakeTransport{}
	e := NewEngine("me", tr, history)

	if _, err := e.SelectConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("select: %v", err)
	}

	msg, _ := e.Send(context.Background(), "c1", "hello")
	e.OnMessage(confirmed("m1", "c1", "me", "hello", time.Now().UTC()), msg.CorrelationToken)
	// Same send confirmed on another device, without the token.
	e.OnMessage(confirmed("m2", "c1", "me", "from my laptop", time.Now().UTC()), "")

	if got := history.markedRead(); len(got) != 0 {
		t.Fatalf("own messages must not produce read receipts, got %v", got)
	}
}

func TestTypingAndPresenceState(t *testing.T) {
	e := NewEngine("me", &fakeTransport{}, &fakeHistory{})

	e.OnTyping("c1", "peer", true)
	if !e.PeerTyping("c1") {
		t.Error("peer typing flag not set")
	}
	e.OnTyping("c1", "peer", false)
	if e.PeerTyping("c1") {
		t.Error("peer typing flag not cleared")
	}

	// Own echo must not flip the flag.
	e.OnTyping("c1", "me", true)
	if e.PeerTyping("c1") {
		t.Error("own typing echo must be ignored")
	}

	e.OnPresence("peer", "online")
	if !e.IsOnline("peer") {
		t.Error("presence online not recorded")
	}
	e.OnPresence("peer", "offline")
	if e.IsOnline("peer") {
		t.Error("presence offline not recorded")
	}
}
