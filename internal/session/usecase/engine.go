package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	caldomain "steward-backend/internal/calendar/domain"
	calusecase "steward-backend/internal/calendar/usecase"
	"steward-backend/internal/session/domain"
	"steward-backend/internal/session/repository"
)

// ErrUndoTokenInvalid is returned for unknown, used, expired or
// non-committed-session tokens. No side effect occurs in any of those cases.
var ErrUndoTokenInvalid = errors.New("undo token invalid")

// MailMover is the slice of the mailbox transport the engine applies and
// reverses folder actions through.
type MailMover interface {
	Move(uid uint32, destination string) error
	MoveFrom(uid uint32, source, destination string) error
	Flag(uid uint32) error
	Unflag(uid uint32) error
}

// CalendarWriter applies and reverses reconciler decisions.
type CalendarWriter interface {
	Apply(result *calusecase.Result) error
	RevertCreate(uid string) error
	RevertTo(previous *caldomain.CalendarEvent) error
}

// MessageReverter resets a message's lifecycle state when the session that
// filed it is undone.
type MessageReverter interface {
	ResetState(fingerprint string) error
}

// MovePayload is the reversible payload of a move action.
type MovePayload struct {
	UID  uint32 `json:"uid"`
	From string `json:"from"`
	To   string `json:"to"`
}

// FlagPayload is the payload of a flag/unflag action. AlreadySet records
// that the flag was already present on the server when the action was
// planned, so neither apply nor undo touches it.
type FlagPayload struct {
	UID        uint32 `json:"uid"`
	AlreadySet bool   `json:"already_set,omitempty"`
}

// EventPayload wraps a reconciler decision, including the prior event
// snapshot needed to reverse it.
type EventPayload struct {
	Result *calusecase.Result `json:"result"`
}

// CommitResult reports what a commit applied and what it did not.
type CommitResult struct {
	Session   *domain.Session        `json:"session"`
	Applied   []*domain.ActionRecord `json:"applied"`
	Failed    *domain.ActionRecord   `json:"failed,omitempty"`
	Unapplied []*domain.ActionRecord `json:"unapplied,omitempty"`
	UndoToken string                 `json:"undo_token,omitempty"`
}

// Engine batches decisions into deterministic sessions, applies them in
// order, and reverses them on demand. Undo is logged as a new session so
// the reversal itself is auditable, and tokens are single use.
type Engine struct {
	sessions repository.SessionRepository
	actions  repository.ActionRepository
	tokens   repository.TokenRepository
	mailbox  MailMover
	calendar CalendarWriter
	messages MessageReverter
	bucket   time.Duration
	tokenTTL time.Duration
}

// NewEngine creates a session engine.
func NewEngine(
	sessions repository.SessionRepository,
	actions repository.ActionRepository,
	tokens repository.TokenRepository,
	mailbox MailMover,
	calendar CalendarWriter,
	messages MessageReverter,
	bucket, tokenTTL time.Duration,
) *Engine {
	return &Engine{
		sessions: sessions,
		actions:  actions,
		tokens:   tokens,
		mailbox:  mailbox,
		calendar: calendar,
		messages: messages,
		bucket:   bucket,
		tokenTTL: tokenTTL,
	}
}

// Begin opens (or rejoins) the session for the trigger's current time
// bucket. A second trigger in the same bucket gets the same session.
func (e *Engine) Begin(trigger domain.TriggerKind, now time.Time) (*domain.Session, error) {
	id := domain.SessionID(trigger, now, e.bucket)
	existing, err := e.sessions.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session %s: %w", id, err)
	}
	if existing != nil {
		return existing, nil
	}

	session := &domain.Session{
		ID:        id,
		Trigger:   trigger,
		Status:    domain.StatusOpen,
		StartedAt: now,
	}
	if err := e.sessions.Save(session); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	return session, nil
}

// Record queues a reversible action in the session.
func (e *Engine) Record(sessionID string, kind domain.ActionKind, fingerprint string, payload interface{}) (*domain.ActionRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	count, err := e.actions.CountBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count session records: %w", err)
	}

	record := &domain.ActionRecord{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Seq:         int(count) + 1,
		Kind:        kind,
		Fingerprint: fingerprint,
		Payload:     string(data),
		Status:      domain.ActionPending,
	}
	if err := e.actions.Save(record); err != nil {
		return nil, fmt.Errorf("failed to save action record: %w", err)
	}
	return record, nil
}

// Commit applies the session's pending records in order. The first hard
// failure marks the record failed and the session partial; already-applied
// records are still reported. Partial sessions are never retried
// automatically.
func (e *Engine) Commit(sessionID string) (*CommitResult, error) {
	session, err := e.sessions.FindByID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if session.Status == domain.StatusUndone {
		return nil, fmt.Errorf("session %s is already undone", sessionID)
	}

	pending, err := e.actions.FindBySessionAndStatus(sessionID, domain.ActionPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending records: %w", err)
	}

	result := &CommitResult{Session: session}
	for i, record := range pending {
		if err := e.apply(record); err != nil {
			log.Printf("[Session] Record %s (%s) failed, marking session partial: %v", record.ID, record.Kind, err)
			record.Status = domain.ActionFailed
			record.Error = err.Error()
			if saveErr := e.actions.Save(record); saveErr != nil {
				return nil, fmt.Errorf("failed to persist failed record: %w", saveErr)
			}
			session.Status = domain.StatusPartial
			if saveErr := e.sessions.Save(session); saveErr != nil {
				return nil, fmt.Errorf("failed to persist partial session: %w", saveErr)
			}
			result.Failed = record
			result.Unapplied = pending[i+1:]
			break
		}
		now := time.Now()
		record.Status = domain.ActionApplied
		record.AppliedAt = &now
		if err := e.actions.Save(record); err != nil {
			return nil, fmt.Errorf("failed to persist applied record: %w", err)
		}
		result.Applied = append(result.Applied, record)
	}

	if result.Failed == nil {
		// A rejoined session may carry failed records from an earlier batch
		// in the same bucket; those keep it partial.
		earlierFailed, err := e.actions.FindBySessionAndStatus(sessionID, domain.ActionFailed)
		if err != nil {
			return nil, fmt.Errorf("failed to check for failed records: %w", err)
		}
		if len(earlierFailed) > 0 {
			session.Status = domain.StatusPartial
		} else {
			session.Status = domain.StatusCommitted
		}
		now := time.Now()
		if session.CommittedAt == nil {
			session.CommittedAt = &now
		}
		if err := e.sessions.Save(session); err != nil {
			return nil, fmt.Errorf("failed to persist committed session: %w", err)
		}
	}

	token, err := e.EnsureToken(sessionID)
	if err != nil {
		return nil, err
	}
	result.UndoToken = token
	return result, nil
}

// EnsureToken returns the session's active undo token, minting one if none
// exists. A session only ever has one live token.
func (e *Engine) EnsureToken(sessionID string) (string, error) {
	existing, err := e.tokens.FindActiveBySession(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to look up undo token: %w", err)
	}
	if existing != nil {
		return existing.Token, nil
	}

	token := &domain.UndoToken{
		SessionID: sessionID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(e.tokenTTL),
	}
	if err := e.tokens.Save(token); err != nil {
		return "", fmt.Errorf("failed to save undo token: %w", err)
	}
	return token.Token, nil
}

// Undo validates the token and reverses every applied record of its session
// in reverse commit order. The reversal is recorded as a new session, and
// that session is not undoable by the same token.
func (e *Engine) Undo(tokenValue string, now time.Time) (*domain.Session, error) {
	token, err := e.tokens.FindByToken(tokenValue)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if token == nil || token.UsedAt != nil || now.After(token.ExpiresAt) {
		return nil, ErrUndoTokenInvalid
	}

	session, err := e.sessions.FindByID(token.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", token.SessionID, err)
	}
	// Partial sessions are undoable: their applied records were committed.
	if session == nil || (session.Status != domain.StatusCommitted && session.Status != domain.StatusPartial) {
		return nil, ErrUndoTokenInvalid
	}

	applied, err := e.actions.FindBySessionAndStatus(session.ID, domain.ActionApplied)
	if err != nil {
		return nil, fmt.Errorf("failed to load applied records: %w", err)
	}

	undoSession := &domain.Session{
		ID:        domain.UndoSessionID(session.ID),
		Trigger:   domain.TriggerUndo,
		Status:    domain.StatusOpen,
		StartedAt: now,
	}
	if err := e.sessions.Save(undoSession); err != nil {
		return nil, fmt.Errorf("failed to create undo session: %w", err)
	}

	failures := 0
	for i := len(applied) - 1; i >= 0; i-- {
		record := applied[i]
		compensating, err := e.reverse(record)
		if err != nil {
			log.Printf("[Session] Failed to reverse record %s (%s): %v", record.ID, record.Kind, err)
			failures++
			if compensating != nil {
				compensating.Status = domain.ActionFailed
				compensating.Error = err.Error()
			}
		}
		if compensating != nil {
			compensating.SessionID = undoSession.ID
			compensating.Seq = len(applied) - i
			if compensating.Status == "" {
				appliedAt := time.Now()
				compensating.Status = domain.ActionApplied
				compensating.AppliedAt = &appliedAt
			}
			if err := e.actions.Save(compensating); err != nil {
				return nil, fmt.Errorf("failed to save compensating record: %w", err)
			}
		}
	}

	committedAt := time.Now()
	undoSession.Status = domain.StatusCommitted
	if failures > 0 {
		undoSession.Status = domain.StatusPartial
	}
	undoSession.CommittedAt = &committedAt
	if err := e.sessions.Save(undoSession); err != nil {
		return nil, fmt.Errorf("failed to persist undo session: %w", err)
	}

	session.Status = domain.StatusUndone
	if err := e.sessions.Save(session); err != nil {
		return nil, fmt.Errorf("failed to mark session undone: %w", err)
	}

	token.UsedAt = &committedAt
	if err := e.tokens.Save(token); err != nil {
		return nil, fmt.Errorf("failed to mark token used: %w", err)
	}

	return undoSession, nil
}

// Describe reports a session and its records for the API surface.
func (e *Engine) Describe(sessionID string) (*domain.Session, []*domain.ActionRecord, error) {
	session, err := e.sessions.FindByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, fmt.Errorf("session %s not found", sessionID)
	}
	records, err := e.actions.FindBySession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, records, nil
}

func (e *Engine) apply(record *domain.ActionRecord) error {
	switch record.Kind {
	case domain.ActionMove:
		var payload MovePayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return fmt.Errorf("bad move payload: %w", err)
		}
		return e.mailbox.Move(payload.UID, payload.To)
	case domain.ActionFlag:
		var payload FlagPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return fmt.Errorf("bad flag payload: %w", err)
		}
		if payload.AlreadySet {
			return nil
		}
		return e.mailbox.Flag(payload.UID)
	case domain.ActionUnflag:
		var payload FlagPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return fmt.Errorf("bad unflag payload: %w", err)
		}
		return e.mailbox.Unflag(payload.UID)
	case domain.ActionEventCreate, domain.ActionEventUpdate, domain.ActionEventCancel:
		var payload EventPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return fmt.Errorf("bad event payload: %w", err)
		}
		return e.calendar.Apply(payload.Result)
	default:
		return fmt.Errorf("unknown action kind %q", record.Kind)
	}
}

// reverse undoes one applied record and returns the compensating record to
// log in the undo session.
func (e *Engine) reverse(record *domain.ActionRecord) (*domain.ActionRecord, error) {
	compensating := &domain.ActionRecord{
		ID:          uuid.New().String(),
		Kind:        record.Kind,
		Fingerprint: record.Fingerprint,
	}

	switch record.Kind {
	case domain.ActionMove:
		var payload MovePayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return nil, fmt.Errorf("bad move payload: %w", err)
		}
		reversed := MovePayload{UID: payload.UID, From: payload.To, To: payload.From}
		data, _ := json.Marshal(reversed)
		compensating.Payload = string(data)
		if err := e.mailbox.MoveFrom(payload.UID, payload.To, payload.From); err != nil {
			return compensating, err
		}
		if e.messages != nil && record.Fingerprint != "" {
			if err := e.messages.ResetState(record.Fingerprint); err != nil {
				log.Printf("[Session] Failed to reset message state for %s: %v", record.Fingerprint, err)
			}
		}
		return compensating, nil
	case domain.ActionFlag:
		compensating.Kind = domain.ActionUnflag
		compensating.Payload = record.Payload
		var payload FlagPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return nil, fmt.Errorf("bad flag payload: %w", err)
		}
		// A flag the user set themselves is left in place.
		if !payload.AlreadySet {
			if err := e.mailbox.Unflag(payload.UID); err != nil {
				return compensating, err
			}
		}
		if e.messages != nil && record.Fingerprint != "" {
			if err := e.messages.ResetState(record.Fingerprint); err != nil {
				log.Printf("[Session] Failed to reset message state for %s: %v", record.Fingerprint, err)
			}
		}
		return compensating, nil
	case domain.ActionUnflag:
		compensating.Kind = domain.ActionFlag
		compensating.Payload = record.Payload
		var payload FlagPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return nil, fmt.Errorf("bad unflag payload: %w", err)
		}
		return compensating, e.mailbox.Flag(payload.UID)
	case domain.ActionEventCreate:
		var payload EventPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return nil, fmt.Errorf("bad event payload: %w", err)
		}
		compensating.Payload = record.Payload
		return compensating, e.calendar.RevertCreate(payload.Result.UID)
	case domain.ActionEventUpdate, domain.ActionEventCancel:
		var payload EventPayload
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return nil, fmt.Errorf("bad event payload: %w", err)
		}
		if payload.Result.Previous == nil {
			return nil, fmt.Errorf("record %s has no prior event snapshot", record.ID)
		}
		compensating.Payload = record.Payload
		return compensating, e.calendar.RevertTo(payload.Result.Previous)
	default:
		return nil, fmt.Errorf("unknown action kind %q", record.Kind)
	}
}
