package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusAccepted               JobStatus = "accepted"
	StatusAssigned               JobStatus = "assigned"
	StatusActive                 JobStatus = "active"
	StatusInProgress             JobStatus = "in_progress"
	StatusCompletedPendingReview JobStatus = "completed_pending_review"
	StatusCompleted              JobStatus = "completed"
)

var allStatuses = []JobStatus{
	StatusAccepted,
	StatusAssigned,
	StatusActive,
	StatusInProgress,
	StatusCompletedPendingReview,
	StatusCompleted,
}

// Valid reports whether s is one of the persisted job statuses.
func (s JobStatus) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Job struct {
	ID              uuid.UUID  `json:"id"`
	Status          JobStatus  `json:"status"`
	LandscaperID    *uuid.UUID `json:"landscaper_id,omitempty"`
	AssignedTo      *uuid.UUID `json:"assigned_to,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// JobUpdate is the narrow set of columns a lifecycle transition writes.
// Nil fields are left untouched.
type JobUpdate struct {
	Status          JobStatus
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ApprovedBy      *uuid.UUID
	RejectionReason *string
	// ClearRejectionReason nulls the stored reason; it wins over RejectionReason.
	ClearRejectionReason bool
}

type JobFilter struct {
	LandscaperID *uuid.UUID
	Status       JobStatus
	Limit        int
	// VisibleTo restricts results to jobs the scope may read; nil means unrestricted.
	VisibleTo *JobScope
}

// JobScope is a non-admin reader: jobs assigned to UserID or, when set, on
// the LandscaperID profile.
type JobScope struct {
	UserID       uuid.UUID
	LandscaperID *uuid.UUID
}

// Allows reports whether j falls inside the scope.
func (s JobScope) Allows(j *Job) bool {
	if j.AssignedTo != nil && *j.AssignedTo == s.UserID {
		return true
	}
	return s.LandscaperID != nil && j.LandscaperID != nil && *j.LandscaperID == *s.LandscaperID
}
