package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	sessiondomain "steward-backend/internal/session/domain"
	"steward-backend/internal/planner/usecase"
)

// PollScheduler runs a commit planning pass on a fixed interval.
type PollScheduler struct {
	planner  *usecase.Planner
	interval time.Duration
	stopChan chan struct{}
}

// NewPollScheduler creates a new scheduler.
func NewPollScheduler(planner *usecase.Planner, interval time.Duration) *PollScheduler {
	return &PollScheduler{
		planner:  planner,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (s *PollScheduler) Start() {
	log.Printf("[PollScheduler] Starting mailbox poller (interval: %s)", s.interval)

	go func() {
		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				log.Println("[PollScheduler] Poller stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *PollScheduler) Stop() {
	close(s.stopChan)
}

func (s *PollScheduler) runOnce() {
	result, err := s.planner.Plan(context.Background(), usecase.ModeCommit, sessiondomain.TriggerPoll)
	if err != nil {
		if errors.Is(err, usecase.ErrRunInProgress) {
			log.Println("[PollScheduler] Previous run still in progress, skipping")
			return
		}
		log.Printf("[PollScheduler] Planning pass failed: %v", err)
		return
	}
	if len(result.Items) > 0 || result.AppliedCount > 0 {
		log.Printf("[PollScheduler] Pass complete: %d decisions, %d applied, %d conflicts",
			len(result.Items), result.AppliedCount, result.ConflictCount)
	}
}
