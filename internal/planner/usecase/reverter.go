package usecase

import (
	"fmt"

	messagedomain "steward-backend/internal/message/domain"
	messagerepo "steward-backend/internal/message/repository"
)

// StateReverter puts a message back at the start of the pipeline when the
// session that filed it is undone, so the next run decides it again.
type StateReverter struct {
	messages messagerepo.MessageRepository
}

// NewStateReverter creates a StateReverter.
func NewStateReverter(messages messagerepo.MessageRepository) *StateReverter {
	return &StateReverter{messages: messages}
}

// ResetState returns the message to the new state and clears its session.
func (r *StateReverter) ResetState(fingerprint string) error {
	msg, err := r.messages.FindByFingerprint(fingerprint)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("message %s not found", fingerprint)
	}
	msg.State = messagedomain.StateNew
	msg.SessionID = ""
	return r.messages.Save(msg)
}
