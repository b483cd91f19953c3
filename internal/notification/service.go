// Package notification delivers actionable pushes (decision requests,
// conflict alerts, review digests) through a Home Assistant style webhook.
// Delivery failures are logged and never fail the pipeline.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	caldomain "steward-backend/internal/calendar/domain"
	messagedomain "steward-backend/internal/message/domain"
	"steward-backend/pkg/config"
)

// Service posts notifications to the configured notify target. When no
// target is configured every send is a silent no-op.
type Service struct {
	baseURL string
	token   string
	target  string
	client  *http.Client
}

// NewService creates a notification service from config.
func NewService(cfg *config.Config) *Service {
	return &Service{
		baseURL: strings.TrimRight(cfg.NotifyBaseURL, "/"),
		token:   cfg.NotifyToken,
		target:  cfg.NotifyTarget,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Service) enabled() bool {
	return s.baseURL != "" && s.token != "" && s.target != ""
}

// SendDecisionRequest asks the user to confirm a low-confidence decision.
// The payload carries the undo URL so one tap can reverse the session.
func (s *Service) SendDecisionRequest(ctx context.Context, msg *messagedomain.Message, reason, safeDefault, undoToken string) {
	payload := map[string]interface{}{
		"title":   "Email needs decision",
		"message": fmt.Sprintf("%s\n%s\nDefault: %s", msg.Subject, reason, safeDefault),
		"data": map[string]interface{}{
			"actions": []map[string]string{
				{"action": "DEFAULT", "title": safeDefault},
				{"action": "UNDO", "title": "Undo last 24h"},
			},
		},
	}
	if undoToken != "" {
		payload["data"].(map[string]interface{})["url"] = "/api/undo/" + undoToken
	}
	s.send(ctx, "decision request", payload)
}

// SendConflict alerts the user about a detected calendar overlap.
func (s *Service) SendConflict(ctx context.Context, conflict *caldomain.Conflict) {
	payload := map[string]interface{}{
		"title": "Calendar conflict detected",
		"message": fmt.Sprintf("Conflicting with %s at %s",
			conflict.OtherTitle, conflict.OtherStartsAt.Format("Mon Jan 2 15:04")),
	}
	s.send(ctx, "conflict alert", payload)
}

// SendDigest summarizes the messages a session parked for review, with the
// session's undo reference attached.
func (s *Service) SendDigest(ctx context.Context, subjects []string, sessionID, undoToken string) {
	payload := map[string]interface{}{
		"title":   "Emails waiting for review",
		"message": fmt.Sprintf("Session %.8s: %s", sessionID, strings.Join(subjects, ", ")),
	}
	if undoToken != "" {
		payload["data"] = map[string]interface{}{"url": "/api/undo/" + undoToken}
	}
	s.send(ctx, "review digest", payload)
}

func (s *Service) send(ctx context.Context, event string, payload map[string]interface{}) {
	if !s.enabled() {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Notify] Failed to marshal %s payload: %v", event, err)
		return
	}

	url := fmt.Sprintf("%s/api/services/%s", s.baseURL, strings.Replace(s.target, ".", "/", 1))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		log.Printf("[Notify] Failed to build %s request: %v", event, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Notify] Failed to send %s: %v", event, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("[Notify] %s rejected with status %d", event, resp.StatusCode)
	}
}
