package broker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
)

// Relay forwards ephemeral typing-state changes to the other participant of a
// conversation. Nothing is persisted and nothing is deduplicated; ordering is
// whatever the transport provides per connection. Debouncing (clearing a
// stale typing-true after idle) is the sending client's job.
type Relay struct {
	listUC *usecase.ListParticipantsUseCase
	router Router
	log    zerolog.Logger
}

func NewRelay(listUC *usecase.ListParticipantsUseCase, router Router, log zerolog.Logger) *Relay {
	return &Relay{
		listUC: listUC,
		router: router,
		log:    log.With().Str("component", "typing-relay").Logger(),
	}
}

// HandleTyping delivers (senderID, conversation, isTyping) to every other
// participant's live connections. A missing participant connection is skipped
// silently.
func (r *Relay) HandleTyping(ctx context.Context, senderID string, req TypingRequest) {
	participants, err := r.listUC.Execute(ctx, usecase.ListParticipantsInput{ConversationID: req.ConversationID})
	if err != nil {
		r.log.Debug().Err(err).Str("conversation_id", req.ConversationID).Msg("typing relay dropped")
		return
	}

	payload, err := json.Marshal(TypingEvent{
		Type:           eventTyping,
		UserID:         senderID,
		ConversationID: req.ConversationID,
		IsTyping:       req.IsTyping,
	})
	if err != nil {
		return
	}

	for _, userID := range participants {
		if userID == senderID {
			continue
		}
		r.router.Route(userID, payload)
	}
}
