package ws

import (
	"github.com/chainduel/backend/internal/models"
)

// Tracker is the idempotent, out-of-order-tolerant reducer fed by both
// delivery channels (push and poll). An update is applied only if its status
// is equal to or ahead of the held one in the lifecycle lattice, so
// duplicates and reordered deliveries never regress observed state.
type Tracker struct {
	queueStatus   models.QueueStatus
	hasQueue      bool
	sessionStatus models.SessionStatus
	hasSession    bool
}

func queueRank(s models.QueueStatus) int {
	switch s {
	case models.QueueWaiting:
		return 0
	case models.QueueMatched:
		return 1
	case models.QueueCancelled:
		// Cancellation cascades over matched entries on session timeout.
		return 2
	}
	return -1
}

// ApplyQueue reports whether a queue update advances (or re-states) the held
// status, recording it if so.
func (t *Tracker) ApplyQueue(s models.QueueStatus) bool {
	if t.hasQueue && queueRank(s) < queueRank(t.queueStatus) {
		return false
	}
	t.queueStatus = s
	t.hasQueue = true
	return true
}

// ApplySession reports whether a session update advances (or re-states) the
// held status, recording it if so. A held terminal status accepts only its
// own repetition: finished never becomes timeout or vice versa.
func (t *Tracker) ApplySession(s models.SessionStatus) bool {
	if t.hasSession {
		if t.sessionStatus.IsTerminal() {
			if s != t.sessionStatus {
				return false
			}
		} else if s.Rank() < t.sessionStatus.Rank() {
			return false
		}
	}
	t.sessionStatus = s
	t.hasSession = true
	return true
}
