package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"regexp"
	"strings"

	"steward-backend/internal/classify/domain"
	messagedomain "steward-backend/internal/message/domain"
	"steward-backend/pkg/ai"
)

// ErrInvalidPayload marks classifier output that failed schema validation
// even after repair. It never escapes Classify; callers only ever see the
// fallback result.
var ErrInvalidPayload = errors.New("classifier payload invalid")

// Adapter wraps the external classifier. It validates the structured output
// against the lane schema, attempts a structural repair of malformed JSON,
// and degrades to the deterministic rule table when the classifier is
// unreachable or keeps returning garbage. Classify therefore always yields
// a usable result and never blocks the pipeline on the model.
type Adapter struct {
	classifier         ai.Classifier
	fallbackConfidence float64
}

// NewAdapter creates a classification adapter.
func NewAdapter(classifier ai.Classifier, fallbackConfidence float64) *Adapter {
	return &Adapter{
		classifier:         classifier,
		fallbackConfidence: fallbackConfidence,
	}
}

// Classify runs the classifier with full context (folder tree snapshot plus
// historical hints) and returns a validated result, falling back to the rule
// table on any failure.
func (a *Adapter) Classify(ctx context.Context, msg *messagedomain.Message, folders []string, hints map[string]string) *domain.ClassificationResult {
	if a.classifier != nil {
		raw, err := a.classifier.ClassifyEmail(ctx, ai.ClassifyRequest{
			Subject:    msg.Subject,
			Sender:     msg.Sender,
			Body:       msg.Body,
			ReceivedAt: msg.ReceivedAt,
			Folders:    folders,
			Hints:      hints,
		})
		if err != nil {
			log.Printf("[Classify] Classifier unreachable, using rule fallback: %v", err)
			return a.ruleFallback(msg)
		}

		result, err := a.parsePayload(raw)
		if err != nil {
			log.Printf("[Classify] Invalid classifier payload, using rule fallback: %v", err)
			return a.ruleFallback(msg)
		}
		return result
	}

	return a.ruleFallback(msg)
}

// wirePayload mirrors the JSON schema the model is prompted for.
type wirePayload struct {
	Lane       string                 `json:"lane"`
	Folder     string                 `json:"folder"`
	Confidence *float64               `json:"confidence"`
	Reason     string                 `json:"reason"`
	Calendar   *domain.CalendarIntent `json:"calendar"`
}

func (a *Adapter) parsePayload(raw string) (*domain.ClassificationResult, error) {
	payload := stripFences(raw)
	if payload == "" {
		return nil, ErrInvalidPayload
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		repaired := repairJSON(payload)
		if repaired == "" {
			return nil, ErrInvalidPayload
		}
		log.Printf("[Classify] Repairing JSON from model output")
		if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
			return nil, ErrInvalidPayload
		}
	}

	return validate(&wire)
}

func validate(wire *wirePayload) (*domain.ClassificationResult, error) {
	lane := domain.Lane(strings.TrimSpace(wire.Lane))
	if !lane.Valid() {
		return nil, ErrInvalidPayload
	}
	if wire.Confidence == nil || *wire.Confidence < 0 || *wire.Confidence > 1 {
		return nil, ErrInvalidPayload
	}

	result := &domain.ClassificationResult{
		Lane:       lane,
		Folder:     strings.TrimSpace(wire.Folder),
		Confidence: *wire.Confidence,
		Reason:     wire.Reason,
	}

	if lane == domain.LaneCalendarEvent {
		if wire.Calendar == nil || strings.TrimSpace(wire.Calendar.Title) == "" || strings.TrimSpace(wire.Calendar.StartsAt) == "" {
			return nil, ErrInvalidPayload
		}
		result.Calendar = wire.Calendar
	}
	// Calendar intents on non-calendar lanes are dropped rather than rejected.

	return result, nil
}

// stripFences removes markdown code fences the model sometimes wraps
// its JSON in.
func stripFences(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "```json") {
		payload = strings.TrimPrefix(payload, "```json")
		payload = strings.TrimSuffix(payload, "```")
	} else if strings.HasPrefix(payload, "```") {
		payload = strings.TrimPrefix(payload, "```")
		payload = strings.TrimSuffix(payload, "```")
	}
	return strings.TrimSpace(payload)
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON trims the payload to its outermost object and strips trailing
// commas, the two failure modes local models actually produce.
func repairJSON(payload string) string {
	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	repaired := payload[start : end+1]
	return trailingCommaPattern.ReplaceAllString(repaired, "$1")
}
