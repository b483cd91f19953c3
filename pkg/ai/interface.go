package ai

import (
	"context"
	"time"
)

// ClassifyRequest carries the full context the model needs to sort one
// message: the message itself plus a snapshot of the live folder tree and
// the historical folder hints. Passing the snapshot explicitly keeps the
// classifier free of shared mailbox state.
type ClassifyRequest struct {
	Subject    string
	Sender     string
	Body       string
	ReceivedAt time.Time
	Folders    []string
	Hints      map[string]string
}

// Classifier is the interface for the external classification model.
// Implementations return the raw model output; schema validation and
// repair happen in the classification adapter, not here.
type Classifier interface {
	ClassifyEmail(ctx context.Context, req ClassifyRequest) (string, error)
}
