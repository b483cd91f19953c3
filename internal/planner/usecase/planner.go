package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	calusecase "steward-backend/internal/calendar/usecase"
	classifyusecase "steward-backend/internal/classify/usecase"
	classifydomain "steward-backend/internal/classify/domain"
	folderusecase "steward-backend/internal/folder/usecase"
	messagedomain "steward-backend/internal/message/domain"
	messagerepo "steward-backend/internal/message/repository"
	"steward-backend/internal/notification"
	sessiondomain "steward-backend/internal/session/domain"
	sessionusecase "steward-backend/internal/session/usecase"
	"steward-backend/pkg/config"
	"steward-backend/pkg/imap"
)

// ErrRunInProgress is returned when a commit run is triggered while another
// is still in flight. The trigger is coalesced, never queued.
var ErrRunInProgress = errors.New("a commit run is already in progress")

// Mode selects whether a plan is applied or only reported.
type Mode string

const (
	// ModePreview runs the full decision pipeline with no side effects.
	ModePreview Mode = "preview"
	// ModeCommit opens a session, records every action and commits it.
	ModeCommit Mode = "commit"
)

// Mailbox is the slice of the transport the planner reads from.
type Mailbox interface {
	FetchSeenMessages() ([]*imap.Message, error)
	ListFolders(refresh bool) ([]string, error)
	Contains(uid uint32) (bool, error)
	FindByMessageID(folder, messageID string) (uint32, error)
}

// PlanItem is one message's decision, identical in preview and commit.
type PlanItem struct {
	Fingerprint string  `json:"fingerprint"`
	UID         uint32  `json:"uid"`
	Subject     string  `json:"subject"`
	Lane        string  `json:"lane"`
	Destination string  `json:"destination"`
	MoveNow     bool    `json:"move_now"`
	Confidence  float64 `json:"confidence"`
}

// PlanResult is what both plan modes return. SessionID, UndoToken and the
// applied/unapplied counts are only populated on commit.
type PlanResult struct {
	Mode           Mode       `json:"mode"`
	Items          []PlanItem `json:"items"`
	SessionID      string     `json:"session_id,omitempty"`
	SessionStatus  string     `json:"session_status,omitempty"`
	UndoToken      string     `json:"undo_token,omitempty"`
	AppliedCount   int        `json:"applied_count"`
	UnappliedCount int        `json:"unapplied_count"`
	ConflictCount  int        `json:"conflict_count"`
}

// plannedAction pairs a decided operation with everything the commit path
// needs to record and report it.
type plannedAction struct {
	kind      sessiondomain.ActionKind
	payload   interface{}
	msg       *messagedomain.Message
	calResult *calusecase.Result
	endState  messagedomain.State
	reviewed  bool
}

// Planner orchestrates classify -> resolve -> reconcile for a batch of
// messages and hands the resulting actions to the session engine (commit)
// or discards them (preview). Both modes run the exact same decision code.
type Planner struct {
	cfg        *config.Config
	mailbox    Mailbox
	messages   messagerepo.MessageRepository
	classifier *classifyusecase.Adapter
	resolver   *folderusecase.Resolver
	reconciler *calusecase.Reconciler
	engine     *sessionusecase.Engine
	notifier   *notification.Service

	// runMu serializes commit runs; see ErrRunInProgress.
	runMu sync.Mutex
}

// NewPlanner creates a Planner.
func NewPlanner(
	cfg *config.Config,
	mailbox Mailbox,
	messages messagerepo.MessageRepository,
	classifier *classifyusecase.Adapter,
	resolver *folderusecase.Resolver,
	reconciler *calusecase.Reconciler,
	engine *sessionusecase.Engine,
	notifier *notification.Service,
) *Planner {
	return &Planner{
		cfg:        cfg,
		mailbox:    mailbox,
		messages:   messages,
		classifier: classifier,
		resolver:   resolver,
		reconciler: reconciler,
		engine:     engine,
		notifier:   notifier,
	}
}

// Plan runs the decision pipeline. Preview never touches the session
// engine, the hint store or the transport's write side; commit is
// serialized by the run lock and coalesces concurrent triggers.
func (p *Planner) Plan(ctx context.Context, mode Mode, trigger sessiondomain.TriggerKind) (*PlanResult, error) {
	if mode == ModeCommit {
		if !p.runMu.TryLock() {
			return nil, ErrRunInProgress
		}
		defer p.runMu.Unlock()
	}

	fetched, err := p.mailbox.FetchSeenMessages()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	folders, err := p.mailbox.ListFolders(false)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	result := &PlanResult{Mode: mode}
	var actions []plannedAction

	for _, raw := range fetched {
		msg, err := p.observe(raw)
		if err != nil {
			log.Printf("[Planner] Failed to load message record %d: %v", raw.UID, err)
			continue
		}
		if msg.State == messagedomain.StateFiled {
			continue
		}
		if msg.State == messagedomain.StateStickyFlagged {
			// Decided earlier; only the archive transition can move it.
			continue
		}

		item, decided, err := p.decide(ctx, msg, folders, raw.Flagged)
		if err != nil {
			log.Printf("[Planner] Failed to decide message %s: %v", msg.Fingerprint, err)
			continue
		}
		result.Items = append(result.Items, *item)
		actions = append(actions, decided...)
		for _, a := range decided {
			if a.calResult != nil {
				result.ConflictCount += len(a.calResult.Conflicts)
			}
		}
	}

	// Sticky transitions and the actual apply only exist on the commit path.
	if mode == ModeCommit {
		archived, err := p.stickyTransitions()
		if err != nil {
			log.Printf("[Planner] Sticky transition scan failed: %v", err)
		}
		actions = append(actions, archived...)

		if err := p.commit(ctx, trigger, actions, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// observe fingerprints the raw message and loads or creates its record.
func (p *Planner) observe(raw *imap.Message) (*messagedomain.Message, error) {
	fingerprint := messagedomain.Fingerprint(raw.UID, raw.Subject, raw.Sender)
	existing, err := p.messages.FindByFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Body = raw.Body
		existing.UID = raw.UID
		return existing, nil
	}

	msg := &messagedomain.Message{
		Fingerprint:  fingerprint,
		UID:          raw.UID,
		MessageID:    raw.MessageID,
		Subject:      raw.Subject,
		Sender:       raw.Sender,
		ToRecipients: raw.To,
		CcRecipients: raw.Cc,
		ReceivedAt:   raw.ReceivedAt,
		Folder:       raw.Folder,
		State:        messagedomain.StateNew,
		LastSeenAt:   time.Now(),
		Body:         raw.Body,
	}
	return msg, nil
}

// decide runs classify -> resolve -> reconcile for one message. It is pure
// with respect to mutable state: repeated calls with the same stored hints
// and events produce the same item.
func (p *Planner) decide(ctx context.Context, msg *messagedomain.Message, folders []string, flagged bool) (*PlanItem, []plannedAction, error) {
	hints, err := p.resolver.HintSnapshot(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot hints: %w", err)
	}

	classification := p.classifier.Classify(ctx, msg, folders, hints)

	resolution, err := p.resolver.Resolve(msg, classification, folders)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve folder: %w", err)
	}

	moveNow := classification.Lane != classifydomain.LaneStickyActionable
	item := &PlanItem{
		Fingerprint: msg.Fingerprint,
		UID:         msg.UID,
		Subject:     msg.Subject,
		Lane:        string(classification.Lane),
		Destination: resolution.FolderPath,
		MoveNow:     moveNow,
		Confidence:  classification.Confidence,
	}

	msg.Lane = string(classification.Lane)
	msg.Confidence = classification.Confidence
	msg.TargetFolder = resolution.FolderPath

	var actions []plannedAction
	if moveNow {
		actions = append(actions, plannedAction{
			kind:     sessiondomain.ActionMove,
			payload:  sessionusecase.MovePayload{UID: msg.UID, From: msg.Folder, To: resolution.FolderPath},
			msg:      msg,
			endState: messagedomain.StateFiled,
			reviewed: resolution.FolderPath == p.cfg.ReviewFolder,
		})
	} else {
		// A message the user already flagged keeps their flag; the record
		// still tracks the sticky state.
		actions = append(actions, plannedAction{
			kind:     sessiondomain.ActionFlag,
			payload:  sessionusecase.FlagPayload{UID: msg.UID, AlreadySet: flagged},
			msg:      msg,
			endState: messagedomain.StateStickyFlagged,
		})
	}

	if classification.Lane == classifydomain.LaneCalendarEvent && classification.Calendar != nil {
		calResult, err := p.reconciler.Reconcile(classification.Calendar, msg)
		if err != nil {
			log.Printf("[Planner] Calendar intent on %s skipped: %v", msg.Fingerprint, err)
		} else if calResult.Action != calusecase.ActionNoop {
			actions = append(actions, plannedAction{
				kind:      eventActionKind(calResult.Action),
				payload:   sessionusecase.EventPayload{Result: calResult},
				msg:       msg,
				calResult: calResult,
			})
		}
	}

	return item, actions, nil
}

// stickyTransitions finds flagged messages the user has since archived and
// applies their cached destinations. The earlier resolver decision is used
// as stored, never recomputed.
func (p *Planner) stickyTransitions() ([]plannedAction, error) {
	flagged, err := p.messages.FindByState(messagedomain.StateStickyFlagged)
	if err != nil {
		return nil, err
	}

	var actions []plannedAction
	for _, msg := range flagged {
		present, err := p.mailbox.Contains(msg.UID)
		if err != nil {
			log.Printf("[Planner] Could not check inbox for %s: %v", msg.Fingerprint, err)
			continue
		}
		if present {
			continue
		}

		archivedUID, err := p.mailbox.FindByMessageID(p.cfg.IMAPArchive, msg.MessageID)
		if err != nil {
			log.Printf("[Planner] Could not search archive for %s: %v", msg.Fingerprint, err)
			continue
		}
		if archivedUID == 0 {
			// Gone from both inbox and archive; nothing left to move.
			log.Printf("[Planner] Sticky message %s vanished, marking filed", msg.Fingerprint)
			msg.State = messagedomain.StateFiled
			if err := p.messages.Save(msg); err != nil {
				log.Printf("[Planner] Failed to mark %s filed: %v", msg.Fingerprint, err)
			}
			continue
		}

		log.Printf("[Planner] Sticky message %s archived by user, filing to %s", msg.Fingerprint, msg.TargetFolder)
		actions = append(actions, plannedAction{
			kind:     sessiondomain.ActionMove,
			payload:  sessionusecase.MovePayload{UID: archivedUID, From: p.cfg.IMAPArchive, To: msg.TargetFolder},
			msg:      msg,
			endState: messagedomain.StateFiled,
		})
	}
	return actions, nil
}

// commit records the planned actions in the trigger's session, applies
// them, and follows up with hint reinforcement and notifications.
func (p *Planner) commit(ctx context.Context, trigger sessiondomain.TriggerKind, actions []plannedAction, result *PlanResult) error {
	if len(actions) == 0 {
		return nil
	}

	session, err := p.engine.Begin(trigger, time.Now())
	if err != nil {
		return err
	}
	result.SessionID = session.ID

	recorded := make(map[string]*plannedAction, len(actions))
	for i := range actions {
		a := &actions[i]
		record, err := p.engine.Record(session.ID, a.kind, a.msg.Fingerprint, a.payload)
		if err != nil {
			return fmt.Errorf("failed to record %s action: %w", a.kind, err)
		}
		recorded[record.ID] = a
	}

	commit, err := p.engine.Commit(session.ID)
	if err != nil {
		return err
	}
	result.SessionStatus = string(commit.Session.Status)
	result.UndoToken = commit.UndoToken
	result.AppliedCount = len(commit.Applied)
	result.UnappliedCount = len(commit.Unapplied)
	if commit.Failed != nil {
		result.UnappliedCount++
	}

	var reviewSubjects []string
	for _, record := range commit.Applied {
		a, ok := recorded[record.ID]
		if !ok {
			continue
		}
		if a.endState != "" {
			a.msg.State = a.endState
		}
		a.msg.SessionID = session.ID
		if err := p.messages.Save(a.msg); err != nil {
			log.Printf("[Planner] Failed to persist message %s: %v", a.msg.Fingerprint, err)
		}

		switch {
		case a.reviewed:
			reviewSubjects = append(reviewSubjects, a.msg.Subject)
			p.notifier.SendDecisionRequest(ctx, a.msg, "Low confidence folder", "Leave in "+p.cfg.ReviewFolder, commit.UndoToken)
		case record.Kind == sessiondomain.ActionMove:
			if err := p.resolver.Reinforce(a.msg, a.msg.TargetFolder, a.msg.Confidence); err != nil {
				log.Printf("[Planner] Failed to reinforce hint for %s: %v", a.msg.Fingerprint, err)
			}
		}

		if a.calResult != nil {
			for _, conflict := range a.calResult.Conflicts {
				p.notifier.SendConflict(ctx, conflict)
			}
		}
	}

	if len(reviewSubjects) > 0 {
		p.notifier.SendDigest(ctx, reviewSubjects, session.ID, commit.UndoToken)
	}

	return nil
}

// Undo reverses a committed session through the engine.
func (p *Planner) Undo(token string) (*sessiondomain.Session, error) {
	return p.engine.Undo(token, time.Now())
}

func eventActionKind(action calusecase.Action) sessiondomain.ActionKind {
	switch action {
	case calusecase.ActionCreate:
		return sessiondomain.ActionEventCreate
	case calusecase.ActionUpdate:
		return sessiondomain.ActionEventUpdate
	case calusecase.ActionCancel:
		return sessiondomain.ActionEventCancel
	}
	return sessiondomain.ActionKind(action)
}
