package usecase

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caldomain "steward-backend/internal/calendar/domain"
	calusecase "steward-backend/internal/calendar/usecase"
	"steward-backend/internal/session/domain"
)

// fakeSessionRepository is an in-memory SessionRepository.
type fakeSessionRepository struct {
	sessions map[string]*domain.Session
}

func (f *fakeSessionRepository) FindByID(id string) (*domain.Session, error) {
	if s, ok := f.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeSessionRepository) Save(session *domain.Session) error {
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

// fakeActionRepository is an in-memory ActionRepository preserving Seq order.
type fakeActionRepository struct {
	records []*domain.ActionRecord
}

func (f *fakeActionRepository) FindBySession(sessionID string) ([]*domain.ActionRecord, error) {
	var out []*domain.ActionRecord
	for _, r := range f.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeActionRepository) FindBySessionAndStatus(sessionID string, status domain.ActionStatus) ([]*domain.ActionRecord, error) {
	var out []*domain.ActionRecord
	for _, r := range f.records {
		if r.SessionID == sessionID && r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeActionRepository) CountBySession(sessionID string) (int64, error) {
	var count int64
	for _, r := range f.records {
		if r.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (f *fakeActionRepository) Save(record *domain.ActionRecord) error {
	for i, r := range f.records {
		if r.ID == record.ID {
			f.records[i] = record
			return nil
		}
	}
	f.records = append(f.records, record)
	return nil
}

// fakeTokenRepository is an in-memory TokenRepository.
type fakeTokenRepository struct {
	tokens []*domain.UndoToken
}

func (f *fakeTokenRepository) FindByToken(token string) (*domain.UndoToken, error) {
	for _, t := range f.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTokenRepository) FindActiveBySession(sessionID string) (*domain.UndoToken, error) {
	for _, t := range f.tokens {
		if t.SessionID == sessionID && t.UsedAt == nil && time.Now().Before(t.ExpiresAt) {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTokenRepository) Save(token *domain.UndoToken) error {
	for i, t := range f.tokens {
		if t.Token == token.Token {
			f.tokens[i] = token
			return nil
		}
	}
	f.tokens = append(f.tokens, token)
	return nil
}

// fakeMailbox logs every transport call in order, optionally failing some.
type fakeMailbox struct {
	calls   []string
	failOn  string
	flagged map[uint32]bool
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{flagged: make(map[uint32]bool)}
}

func (f *fakeMailbox) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && call == f.failOn {
		return errors.New("transport failure")
	}
	return nil
}

func (f *fakeMailbox) Move(uid uint32, destination string) error {
	return f.record(fmt.Sprintf("move %d -> %s", uid, destination))
}

func (f *fakeMailbox) MoveFrom(uid uint32, source, destination string) error {
	return f.record(fmt.Sprintf("movefrom %d %s -> %s", uid, source, destination))
}

func (f *fakeMailbox) Flag(uid uint32) error {
	f.flagged[uid] = true
	return f.record(fmt.Sprintf("flag %d", uid))
}

func (f *fakeMailbox) Unflag(uid uint32) error {
	f.flagged[uid] = false
	return f.record(fmt.Sprintf("unflag %d", uid))
}

// fakeCalendar records applied results and reversals.
type fakeCalendar struct {
	applied  []*calusecase.Result
	deleted  []string
	restored []*caldomain.CalendarEvent
}

func (f *fakeCalendar) Apply(result *calusecase.Result) error {
	f.applied = append(f.applied, result)
	return nil
}

func (f *fakeCalendar) RevertCreate(uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeCalendar) RevertTo(previous *caldomain.CalendarEvent) error {
	f.restored = append(f.restored, previous)
	return nil
}

// fakeReverter records state resets.
type fakeReverter struct {
	reset []string
}

func (f *fakeReverter) ResetState(fingerprint string) error {
	f.reset = append(f.reset, fingerprint)
	return nil
}

type engineFixture struct {
	engine   *Engine
	sessions *fakeSessionRepository
	actions  *fakeActionRepository
	tokens   *fakeTokenRepository
	mailbox  *fakeMailbox
	calendar *fakeCalendar
	reverter *fakeReverter
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		sessions: &fakeSessionRepository{sessions: make(map[string]*domain.Session)},
		actions:  &fakeActionRepository{},
		tokens:   &fakeTokenRepository{},
		mailbox:  newFakeMailbox(),
		calendar: &fakeCalendar{},
		reverter: &fakeReverter{},
	}
	f.engine = NewEngine(f.sessions, f.actions, f.tokens, f.mailbox, f.calendar, f.reverter, 15*time.Minute, 24*time.Hour)
	return f
}

func TestSessionID_Deterministic(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 3, 0, 0, time.UTC)

	same := domain.SessionID(domain.TriggerPoll, base.Add(5*time.Minute), 15*time.Minute)
	assert.Equal(t, domain.SessionID(domain.TriggerPoll, base, 15*time.Minute), same,
		"triggers in the same bucket must share a session ID")

	nextBucket := domain.SessionID(domain.TriggerPoll, base.Add(15*time.Minute), 15*time.Minute)
	assert.NotEqual(t, domain.SessionID(domain.TriggerPoll, base, 15*time.Minute), nextBucket)

	otherTrigger := domain.SessionID(domain.TriggerFullSort, base, 15*time.Minute)
	assert.NotEqual(t, domain.SessionID(domain.TriggerPoll, base, 15*time.Minute), otherTrigger)
}

func TestEngine_BeginCoalescesSameBucket(t *testing.T) {
	f := newEngineFixture()
	now := time.Date(2026, 3, 2, 8, 3, 0, 0, time.UTC)

	first, err := f.engine.Begin(domain.TriggerPoll, now)
	require.NoError(t, err)
	second, err := f.engine.Begin(domain.TriggerPoll, now.Add(5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.sessions.sessions, 1)
}

func TestEngine_CommitAppliesInOrder(t *testing.T) {
	f := newEngineFixture()
	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)

	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-1", MovePayload{UID: 11, From: "INBOX", To: "Finance/Receipts"})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionFlag, "fp-2", FlagPayload{UID: 12})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-3", MovePayload{UID: 13, From: "INBOX", To: "Newsletters"})
	require.NoError(t, err)

	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCommitted, result.Session.Status)
	assert.Len(t, result.Applied, 3)
	assert.Nil(t, result.Failed)
	assert.NotEmpty(t, result.UndoToken)
	assert.Equal(t, []string{
		"move 11 -> Finance/Receipts",
		"flag 12",
		"move 13 -> Newsletters",
	}, f.mailbox.calls)
}

func TestEngine_CommitStopsOnFirstFailure(t *testing.T) {
	f := newEngineFixture()
	f.mailbox.failOn = "flag 12"

	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-1", MovePayload{UID: 11, From: "INBOX", To: "Finance/Receipts"})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionFlag, "fp-2", FlagPayload{UID: 12})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-3", MovePayload{UID: 13, From: "INBOX", To: "Newsletters"})
	require.NoError(t, err)

	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartial, result.Session.Status)
	assert.Len(t, result.Applied, 1)
	require.NotNil(t, result.Failed)
	assert.Equal(t, domain.ActionFailed, result.Failed.Status)
	assert.NotEmpty(t, result.Failed.Error)
	assert.Len(t, result.Unapplied, 1, "records after the failure must stay pending")
	// The third move was never attempted.
	assert.NotContains(t, f.mailbox.calls, "move 13 -> Newsletters")
}

func TestEngine_RejoinedPartialSessionStaysPartial(t *testing.T) {
	f := newEngineFixture()
	f.mailbox.failOn = "flag 12"
	now := time.Date(2026, 3, 2, 8, 3, 0, 0, time.UTC)

	session, err := f.engine.Begin(domain.TriggerPoll, now)
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionFlag, "fp-1", FlagPayload{UID: 12})
	require.NoError(t, err)
	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartial, result.Session.Status)

	// A later trigger in the same bucket rejoins the session; its batch
	// applying cleanly must not erase the earlier failure.
	f.mailbox.failOn = ""
	rejoined, err := f.engine.Begin(domain.TriggerPoll, now.Add(5*time.Minute))
	require.NoError(t, err)
	require.Equal(t, session.ID, rejoined.ID)
	_, err = f.engine.Record(rejoined.ID, domain.ActionMove, "fp-2", MovePayload{UID: 13, From: "INBOX", To: "Newsletters"})
	require.NoError(t, err)
	result, err = f.engine.Commit(rejoined.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPartial, result.Session.Status,
		"a session with a failed record must stay partial")
	stored, err := f.sessions.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, stored.Status)
}

func TestEngine_OneLiveTokenPerSession(t *testing.T) {
	f := newEngineFixture()
	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)

	first, err := f.engine.EnsureToken(session.ID)
	require.NoError(t, err)
	second, err := f.engine.EnsureToken(session.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.tokens.tokens, 1)
}

func TestEngine_UndoReversesInReverseOrder(t *testing.T) {
	f := newEngineFixture()
	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)

	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-1", MovePayload{UID: 11, From: "INBOX", To: "Finance/Receipts"})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionFlag, "fp-2", FlagPayload{UID: 12})
	require.NoError(t, err)

	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)

	f.mailbox.calls = nil
	undoSession, err := f.engine.Undo(result.UndoToken, time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerUndo, undoSession.Trigger)
	assert.Equal(t, domain.UndoSessionID(session.ID), undoSession.ID)
	assert.Equal(t, []string{
		"unflag 12",
		"movefrom 11 Finance/Receipts -> INBOX",
	}, f.mailbox.calls, "reversal must run in reverse commit order")
	assert.Contains(t, f.reverter.reset, "fp-1")

	original, err := f.sessions.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUndone, original.Status)

	// Compensating records are logged, history is never deleted.
	compensating, err := f.actions.FindBySession(undoSession.ID)
	require.NoError(t, err)
	assert.Len(t, compensating, 2)
	originals, err := f.actions.FindBySession(session.ID)
	require.NoError(t, err)
	assert.Len(t, originals, 2)
}

func TestEngine_UndoOfFlagResetsMessageState(t *testing.T) {
	f := newEngineFixture()
	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionFlag, "fp-2", FlagPayload{UID: 12})
	require.NoError(t, err)
	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)

	_, err = f.engine.Undo(result.UndoToken, time.Now())
	require.NoError(t, err)

	assert.Contains(t, f.mailbox.calls, "unflag 12")
	assert.Contains(t, f.reverter.reset, "fp-2",
		"the message record must leave sticky state together with the flag")
}

func TestEngine_UndoTokenIsSingleUse(t *testing.T) {
	f := newEngineFixture()
	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-1", MovePayload{UID: 11, From: "INBOX", To: "Misc"})
	require.NoError(t, err)
	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)

	_, err = f.engine.Undo(result.UndoToken, time.Now())
	require.NoError(t, err)

	_, err = f.engine.Undo(result.UndoToken, time.Now())
	assert.ErrorIs(t, err, ErrUndoTokenInvalid)
}

func TestEngine_UndoRejectsUnknownAndExpiredTokens(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.Undo("no-such-token", time.Now())
	assert.ErrorIs(t, err, ErrUndoTokenInvalid)

	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-1", MovePayload{UID: 11, From: "INBOX", To: "Misc"})
	require.NoError(t, err)
	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)

	_, err = f.engine.Undo(result.UndoToken, time.Now().Add(25*time.Hour))
	assert.ErrorIs(t, err, ErrUndoTokenInvalid)
	assert.Empty(t, f.mailbox.calls[1:], "no reversal may happen on an expired token")
}

func TestEngine_PartialSessionIsUndoable(t *testing.T) {
	f := newEngineFixture()
	f.mailbox.failOn = "flag 12"

	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionMove, "fp-1", MovePayload{UID: 11, From: "INBOX", To: "Finance/Receipts"})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionFlag, "fp-2", FlagPayload{UID: 12})
	require.NoError(t, err)

	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPartial, result.Session.Status)

	f.mailbox.calls = nil
	_, err = f.engine.Undo(result.UndoToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"movefrom 11 Finance/Receipts -> INBOX"}, f.mailbox.calls,
		"only the applied record is reversed")
}

func TestEngine_UndoRestoresCalendarState(t *testing.T) {
	f := newEngineFixture()
	session, err := f.engine.Begin(domain.TriggerPoll, time.Now())
	require.NoError(t, err)

	created := &calusecase.Result{
		Action: calusecase.ActionCreate,
		UID:    "uid-created",
		Event:  &caldomain.CalendarEvent{UID: "uid-created", Title: "Dentist"},
	}
	prior := &caldomain.CalendarEvent{UID: "uid-updated", Title: "Old title"}
	updated := &calusecase.Result{
		Action:   calusecase.ActionUpdate,
		UID:      "uid-updated",
		Event:    &caldomain.CalendarEvent{UID: "uid-updated", Title: "New title"},
		Previous: prior,
	}

	_, err = f.engine.Record(session.ID, domain.ActionEventCreate, "fp-1", EventPayload{Result: created})
	require.NoError(t, err)
	_, err = f.engine.Record(session.ID, domain.ActionEventUpdate, "fp-2", EventPayload{Result: updated})
	require.NoError(t, err)

	result, err := f.engine.Commit(session.ID)
	require.NoError(t, err)
	assert.Len(t, f.calendar.applied, 2)

	_, err = f.engine.Undo(result.UndoToken, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"uid-created"}, f.calendar.deleted)
	require.Len(t, f.calendar.restored, 1)
	assert.Equal(t, "uid-updated", f.calendar.restored[0].UID)
	assert.Equal(t, "Old title", f.calendar.restored[0].Title)
}
