package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"steward-backend/internal/calendar/domain"
	"steward-backend/internal/calendar/repository"
	classifydomain "steward-backend/internal/classify/domain"
	messagedomain "steward-backend/internal/message/domain"
)

// Action is the reconciler's decision for one calendar intent.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionCancel Action = "cancel"
	ActionNoop   Action = "noop"
)

// Result carries the reconciler's decision plus everything a committed
// session needs to apply it and later reverse it.
type Result struct {
	Action        Action                  `json:"action"`
	UID           string                  `json:"uid"`
	Event         *domain.CalendarEvent   `json:"event,omitempty"`    // desired post-state
	Previous      *domain.CalendarEvent   `json:"previous,omitempty"` // snapshot before the change, nil on create
	ChangedFields []string                `json:"changed_fields,omitempty"`
	Conflicts     []*domain.Conflict      `json:"conflicts,omitempty"`
}

// Reconciler converts calendar intents into idempotent event state
// transitions. Reconcile is a pure decision over stored state; Apply
// persists a decision. Keeping them separate lets the preview path share
// the exact decision code without side effects.
type Reconciler struct {
	events          repository.EventRepository
	conflicts       repository.ConflictRepository
	timezone        *time.Location
	defaultDuration time.Duration
}

// NewReconciler creates a Reconciler.
func NewReconciler(events repository.EventRepository, conflicts repository.ConflictRepository, timezone *time.Location, defaultDuration time.Duration) *Reconciler {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Reconciler{
		events:          events,
		conflicts:       conflicts,
		timezone:        timezone,
		defaultDuration: defaultDuration,
	}
}

// Reconcile derives the deterministic UID for the intent, diffs it against
// stored state and decides create/update/cancel/noop. Overlap conflicts are
// detected here but never block the decision.
func (r *Reconciler) Reconcile(intent *classifydomain.CalendarIntent, msg *messagedomain.Message) (*Result, error) {
	normalizedTitle := normalizeTitle(intent.Title)
	if normalizedTitle == "" {
		return nil, fmt.Errorf("calendar intent has no title")
	}

	start, err := resolveTime(intent.StartsAt, msg.ReceivedAt, r.timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve start time: %w", err)
	}

	end := start.Add(r.defaultDuration)
	if intent.EndsAt != "" {
		if parsed, err := resolveTime(intent.EndsAt, msg.ReceivedAt, r.timezone); err == nil && parsed.After(start) {
			end = parsed
		}
	}

	normalizedLocation := strings.ToLower(strings.TrimSpace(intent.Location))
	uid := domain.EventUID(normalizedTitle, start, intent.Location)

	existing, err := r.events.FindByUID(uid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up event %s: %w", uid, err)
	}
	if existing == nil {
		// A reply that only shifts the time hashes to a new UID. Match on
		// the remaining identity fields so it updates instead of duplicating.
		candidates, err := r.events.FindActiveByIdentity(normalizedTitle, normalizedLocation)
		if err != nil {
			return nil, fmt.Errorf("failed to look up event by identity: %w", err)
		}
		if len(candidates) > 0 {
			existing = candidates[0]
			uid = existing.UID
		}
	}

	cancel := hasCancellationSignal(intent)

	var result *Result
	switch {
	case existing == nil && cancel:
		// Cancellation of an event we never recorded: nothing to do.
		result = &Result{Action: ActionNoop, UID: uid}
	case existing == nil:
		event := &domain.CalendarEvent{
			UID:                uid,
			Title:              strings.TrimSpace(intent.Title),
			NormalizedTitle:    normalizedTitle,
			NormalizedLocation: normalizedLocation,
			StartsAt:           start,
			EndsAt:             end,
			Timezone:           r.timezone.String(),
			Location:           strings.TrimSpace(intent.Location),
			Notes:              intent.Notes,
			Status:             domain.EventStatusActive,
		}
		event.AddSource(msg.Fingerprint)
		result = &Result{Action: ActionCreate, UID: uid, Event: event}
	case cancel:
		previous := *existing
		cancelled := *existing
		cancelled.Status = domain.EventStatusCancelled
		cancelled.AddSource(msg.Fingerprint)
		result = &Result{Action: ActionCancel, UID: uid, Event: &cancelled, Previous: &previous}
	default:
		previous := *existing
		updated := *existing
		var changed []string
		if title := strings.TrimSpace(intent.Title); title != updated.Title {
			updated.Title = title
			updated.NormalizedTitle = normalizedTitle
			changed = append(changed, "title")
		}
		if !start.Equal(updated.StartsAt) {
			updated.StartsAt = start
			changed = append(changed, "starts_at")
		}
		if !end.Equal(updated.EndsAt) {
			updated.EndsAt = end
			changed = append(changed, "ends_at")
		}
		if location := strings.TrimSpace(intent.Location); location != updated.Location {
			updated.Location = location
			updated.NormalizedLocation = normalizedLocation
			changed = append(changed, "location")
		}
		if intent.Notes != "" && intent.Notes != updated.Notes {
			updated.Notes = intent.Notes
			changed = append(changed, "notes")
		}
		updated.Status = domain.EventStatusActive
		updated.AddSource(msg.Fingerprint)

		if len(changed) == 0 {
			result = &Result{Action: ActionNoop, UID: uid}
		} else {
			result = &Result{Action: ActionUpdate, UID: uid, Event: &updated, Previous: &previous, ChangedFields: changed}
		}
	}

	if result.Action == ActionCreate || result.Action == ActionUpdate {
		conflicts, err := r.detectConflicts(uid, result.Event.StartsAt, result.Event.EndsAt)
		if err != nil {
			return nil, err
		}
		result.Conflicts = conflicts
	}

	return result, nil
}

// Apply persists a reconciliation decision. Conflicts already recorded for
// the same event pair are not duplicated.
func (r *Reconciler) Apply(result *Result) error {
	switch result.Action {
	case ActionNoop:
		return nil
	case ActionCreate, ActionUpdate, ActionCancel:
		if err := r.events.Save(result.Event); err != nil {
			return fmt.Errorf("failed to save event %s: %w", result.UID, err)
		}
	default:
		return fmt.Errorf("unknown calendar action %q", result.Action)
	}

	for _, conflict := range result.Conflicts {
		existing, err := r.conflicts.FindByPair(conflict.EventUID, conflict.OtherUID)
		if err != nil {
			return fmt.Errorf("failed to check conflict pair: %w", err)
		}
		if existing != nil {
			continue
		}
		if err := r.conflicts.Save(conflict); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
	}
	return nil
}

// RevertCreate removes an event created by a session being undone.
func (r *Reconciler) RevertCreate(uid string) error {
	return r.events.Delete(uid)
}

// RevertTo restores an event to a pre-session snapshot. Used to undo both
// updates and cancellations.
func (r *Reconciler) RevertTo(previous *domain.CalendarEvent) error {
	return r.events.Save(previous)
}

// ResolveConflict clears a conflict record. Conflicts are only ever
// resolved through this explicit human path.
func (r *Reconciler) ResolveConflict(id string) error {
	conflict, err := r.conflicts.FindByID(id)
	if err != nil {
		return err
	}
	if conflict == nil {
		return fmt.Errorf("conflict %s not found", id)
	}
	conflict.Resolved = true
	return r.conflicts.Save(conflict)
}

// ActiveEvents lists the active events for the API surface.
func (r *Reconciler) ActiveEvents() ([]*domain.CalendarEvent, error) {
	return r.events.FindActive()
}

// OpenConflicts lists unresolved conflicts for the API surface.
func (r *Reconciler) OpenConflicts() ([]*domain.Conflict, error) {
	return r.conflicts.FindOpen()
}

func (r *Reconciler) detectConflicts(uid string, start, end time.Time) ([]*domain.Conflict, error) {
	overlapping, err := r.events.FindActiveOverlapping(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for overlapping events: %w", err)
	}
	var conflicts []*domain.Conflict
	for _, other := range overlapping {
		if other.UID == uid {
			continue
		}
		conflicts = append(conflicts, &domain.Conflict{
			ID:            uuid.New().String(),
			EventUID:      uid,
			OtherUID:      other.UID,
			OtherTitle:    other.Title,
			OtherStartsAt: other.StartsAt,
		})
	}
	return conflicts, nil
}

var cancellationKeywords = []string{"cancel", "called off", "no longer happening"}

func hasCancellationSignal(intent *classifydomain.CalendarIntent) bool {
	text := strings.ToLower(intent.Title + " " + intent.Notes)
	for _, kw := range cancellationKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// normalizeTitle lowercases and collapses whitespace. Leading cancellation
// words are stripped so "Cancelled: Dentist appointment" hashes to the same
// UID as the event it cancels.
func normalizeTitle(title string) string {
	words := strings.Fields(strings.ToLower(title))
	for len(words) > 0 && strings.HasPrefix(strings.Trim(words[0], ":,-"), "cancel") {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
