package usecase

import (
	"strings"

	"steward-backend/internal/classify/domain"
	messagedomain "steward-backend/internal/message/domain"
)

// fallbackRule matches sender/subject/body keywords against a fixed table.
// The table is ordered; the first matching rule wins, which keeps the
// fallback fully deterministic.
type fallbackRule struct {
	subjectKeywords []string
	senderKeywords  []string
	bodyKeywords    []string
	folder          string
	lane            domain.Lane
}

var fallbackRules = []fallbackRule{
	{subjectKeywords: []string{"receipt"}, folder: "Finance/Receipts", lane: domain.LaneArchiveNow},
	{subjectKeywords: []string{"invoice"}, folder: "Finance/Invoices", lane: domain.LaneArchiveNow},
	{subjectKeywords: []string{"statement"}, folder: "Finance/Statements", lane: domain.LaneArchiveNow},
	{subjectKeywords: []string{"tuition"}, folder: "Finance/Tuition", lane: domain.LaneArchiveNow},
	{subjectKeywords: []string{"newsletter", "digest"}, senderKeywords: []string{"newsletter", "news@", "noreply", "no-reply"}, bodyKeywords: []string{"unsubscribe"}, folder: "Newsletters", lane: domain.LaneArchiveNow},
	{subjectKeywords: []string{"promo", "sale", "% off"}, folder: "Newsletters/Promotions", lane: domain.LaneArchiveNow},
	{subjectKeywords: []string{"school", "classroom"}, folder: "School", lane: domain.LaneStickyActionable},
	{subjectKeywords: []string{"appointment", "meeting", "schedule"}, folder: "Home/Appointments", lane: domain.LaneStickyActionable},
}

func (r fallbackRule) matches(subject, sender, body string) bool {
	for _, kw := range r.subjectKeywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}
	for _, kw := range r.senderKeywords {
		if strings.Contains(sender, kw) {
			return true
		}
	}
	for _, kw := range r.bodyKeywords {
		if strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// ruleFallback classifies a message with the fixed rule table. Confidence is
// a conservative constant kept below the folder-creation threshold so the
// fallback can never invent new folders.
func (a *Adapter) ruleFallback(msg *messagedomain.Message) *domain.ClassificationResult {
	subject := strings.ToLower(msg.Subject)
	sender := strings.ToLower(msg.Sender)
	body := strings.ToLower(msg.Body)

	for _, rule := range fallbackRules {
		if rule.matches(subject, sender, body) {
			return &domain.ClassificationResult{
				Lane:       rule.lane,
				Folder:     rule.folder,
				Confidence: a.fallbackConfidence,
				Reason:     "Fallback heuristic",
				Fallback:   true,
			}
		}
	}

	return &domain.ClassificationResult{
		Lane:       domain.LaneStickyActionable,
		Folder:     "Misc",
		Confidence: a.fallbackConfidence,
		Reason:     "Fallback heuristic",
		Fallback:   true,
	}
}
