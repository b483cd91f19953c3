package usecase

import (
	"fmt"
	"log"
	"time"

	classifydomain "steward-backend/internal/classify/domain"
	"steward-backend/internal/folder/domain"
	"steward-backend/internal/folder/repository"
	messagedomain "steward-backend/internal/message/domain"
)

// Resolution is the resolver's decision for one message.
type Resolution struct {
	FolderPath string `json:"folder_path"`
	CreatedNew bool   `json:"created_new"`
}

// Resolver combines the classifier's folder suggestion with stored hints
// and the naming rules to pick a destination. Given identical inputs it
// always returns the same folder.
type Resolver struct {
	hints           repository.HintRepository
	namer           *FolderNamer
	hintOverrideMin float64
	folderCreateMin float64
	reviewFolder    string
}

// NewResolver creates a Resolver.
func NewResolver(hints repository.HintRepository, hintOverrideMin, folderCreateMin float64, reviewFolder string) *Resolver {
	return &Resolver{
		hints:           hints,
		namer:           &FolderNamer{},
		hintOverrideMin: hintOverrideMin,
		folderCreateMin: folderCreateMin,
		reviewFolder:    reviewFolder,
	}
}

// Resolve picks the destination folder for a classified message. liveFolders
// is the snapshot of the mailbox folder tree used to decide whether the
// suggestion would create a new folder.
func (r *Resolver) Resolve(msg *messagedomain.Message, classification *classifydomain.ClassificationResult, liveFolders []string) (*Resolution, error) {
	suggested := r.namer.Normalize(classification.Folder)

	hintFolder, err := r.bestHint(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to load folder hints: %w", err)
	}

	// A stored hint wins over a disagreeing suggestion unless the classifier
	// is confident past the override threshold.
	if hintFolder != "" && hintFolder != suggested {
		if classification.Confidence < r.hintOverrideMin {
			return &Resolution{FolderPath: hintFolder, CreatedNew: !contains(liveFolders, hintFolder)}, nil
		}
		log.Printf("[Resolver] Classifier override of hint %s -> %s (confidence %.2f)", hintFolder, suggested, classification.Confidence)
	}

	exists := contains(liveFolders, suggested)
	if !exists && hintFolder == "" && classification.Confidence < r.folderCreateMin {
		// Not confident enough to invent a folder; park it for review.
		return &Resolution{FolderPath: r.reviewFolder, CreatedNew: !contains(liveFolders, r.reviewFolder)}, nil
	}

	return &Resolution{FolderPath: suggested, CreatedNew: !exists}, nil
}

// Reinforce records a committed high-confidence resolution as a hint so the
// same signature bucket resolves the same way next time. Called only on the
// commit path; previews never mutate hint state.
func (r *Resolver) Reinforce(msg *messagedomain.Message, folder string, confidence float64) error {
	if confidence < r.hintOverrideMin {
		return nil
	}
	key := domain.HintKey(msg.Sender, msg.Subject)
	hint, err := r.hints.FindByHintAndFolder(key, folder)
	if err != nil {
		return fmt.Errorf("failed to load hint for reinforcement: %w", err)
	}
	if hint == nil {
		hint = &domain.FolderHint{Hint: key, Folder: folder, Weight: confidence}
	} else {
		hint.Weight = min(hint.Weight+confidence, domain.MaxHintWeight)
	}
	hint.LastUsedAt = time.Now()
	return r.hints.Save(hint)
}

// HintSnapshot returns the sender-bucket hints to feed into the classifier
// prompt for a message.
func (r *Resolver) HintSnapshot(msg *messagedomain.Message) (map[string]string, error) {
	key := domain.HintKey(msg.Sender, msg.Subject)
	hints, err := r.hints.FindByHint(key)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]string, len(hints))
	for _, h := range hints {
		if _, ok := snapshot[h.Hint]; !ok {
			snapshot[h.Hint] = h.Folder
		}
	}
	return snapshot, nil
}

// bestHint returns the highest-weight hint folder for the message's
// signature bucket, or "" when none is stored.
func (r *Resolver) bestHint(msg *messagedomain.Message) (string, error) {
	key := domain.HintKey(msg.Sender, msg.Subject)
	hints, err := r.hints.FindByHint(key)
	if err != nil {
		return "", err
	}
	if len(hints) == 0 {
		return "", nil
	}
	best := hints[0]
	for _, h := range hints[1:] {
		if h.Weight > best.Weight {
			best = h
		}
	}
	return best.Folder, nil
}

func contains(folders []string, folder string) bool {
	for _, f := range folders {
		if f == folder {
			return true
		}
	}
	return false
}
