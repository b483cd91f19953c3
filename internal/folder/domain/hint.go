package domain

import (
	"strings"
	"time"
)

// FolderHint maps a message signature bucket to a previously confirmed
// destination folder. Hints are a prior, not a hard override: a confident
// enough classifier suggestion can still win.
type FolderHint struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Hint       string    `json:"hint" gorm:"index;not null"`
	Folder     string    `json:"folder" gorm:"index;not null"`
	Weight     float64   `json:"weight" gorm:"default:1"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxHintWeight caps reinforcement so one prolific sender cannot make a
// hint permanently unbeatable.
const MaxHintWeight = 5.0

// HintKey buckets a message by sender domain plus the leading words of the
// normalized subject, so a reworded follow-up from the same sender lands in
// the same bucket.
func HintKey(sender, subject string) string {
	domain := senderDomain(sender)

	subject = strings.ToLower(strings.TrimSpace(subject))
	for _, prefix := range []string{"re:", "fwd:", "fw:"} {
		for strings.HasPrefix(subject, prefix) {
			subject = strings.TrimSpace(strings.TrimPrefix(subject, prefix))
		}
	}
	words := strings.Fields(subject)
	if len(words) > 3 {
		words = words[:3]
	}

	return domain + "|" + strings.Join(words, " ")
}

func senderDomain(sender string) string {
	sender = strings.ToLower(sender)
	if at := strings.LastIndex(sender, "@"); at != -1 {
		domain := sender[at+1:]
		domain = strings.TrimRight(domain, "> ")
		return domain
	}
	return sender
}
