package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/repository/postgresql"
	"landscape-job-service/internal/telemetry"
)

type Action string

// MaxRejectionReasonLen bounds the reason in characters.
const MaxRejectionReasonLen = 2000

const (
	ActionStart        Action = "start"
	ActionComplete     Action = "complete"
	ActionAdminApprove Action = "admin_approve"
	ActionAdminReject  Action = "admin_reject"
)

// guard names who may perform an action.
type guard int

const (
	guardAnyCaller guard = iota
	guardAssignedWorker
	guardAdmin
)

type transition struct {
	// from lists the statuses the action is valid in; nil means any status.
	from  []entity.JobStatus
	to    entity.JobStatus
	guard guard
	// verb is used in precondition messages: "Cannot <verb> job".
	verb string
}

var transitions = map[Action]transition{
	ActionStart: {
		from:  []entity.JobStatus{entity.StatusAccepted, entity.StatusAssigned, entity.StatusActive},
		to:    entity.StatusInProgress,
		guard: guardAssignedWorker,
		verb:  "start",
	},
	ActionComplete: {
		from:  []entity.JobStatus{entity.StatusInProgress},
		to:    entity.StatusCompletedPendingReview,
		guard: guardAnyCaller,
		verb:  "complete",
	},
	ActionAdminApprove: {
		to:    entity.StatusCompleted,
		guard: guardAdmin,
		verb:  "approve",
	},
	ActionAdminReject: {
		to:    entity.StatusInProgress,
		guard: guardAdmin,
		verb:  "reject",
	},
}

// ParseAction returns false for anything other than the four lifecycle actions.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := transitions[a]
	return a, ok
}

// Ports (implemented by postgresql.JobRepository / postgresql.UserRepository)
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, from entity.JobStatus, upd entity.JobUpdate) error
}

type ProfileStore interface {
	LandscaperByUserID(ctx context.Context, userID uuid.UUID) (*entity.Landscaper, error)
}

type RoleLookup interface {
	Role(ctx context.Context, userID uuid.UUID) (entity.Role, error)
}

type LifecycleService struct {
	jobs     JobStore
	profiles ProfileStore
	roles    RoleLookup
	now      func() time.Time
}

func NewLifecycleService(jobs JobStore, profiles ProfileStore, roles RoleLookup) *LifecycleService {
	return &LifecycleService{
		jobs:     jobs,
		profiles: profiles,
		roles:    roles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ExecuteRequest struct {
	Action          string
	JobID           string
	RejectionReason string
}

type ExecuteResult struct {
	JobID  uuid.UUID
	Status entity.JobStatus
}

// Execute validates and applies one lifecycle action for caller.
// Every failure is a *Error.
func (s *LifecycleService) Execute(ctx context.Context, caller entity.Caller, req ExecuteRequest) (*ExecuteResult, error) {
	res, err := s.execute(ctx, caller, req)

	m := telemetry.GetMetrics()
	actionAttr := attribute.String("action", req.Action)
	if err != nil {
		m.TransitionFailuresTotal.Add(ctx, 1, metric.WithAttributes(actionAttr, attribute.String("kind", KindOf(err).String())))
		ev := log.Ctx(ctx).Info()
		if KindOf(err) == KindInternal {
			ev = log.Ctx(ctx).Error()
		}
		ev.Err(err).
			Str("action", req.Action).
			Str("job_id", req.JobID).
			Str("user_id", caller.UserID.String()).
			Msg("job action rejected")
		return nil, err
	}

	m.TransitionsTotal.Add(ctx, 1, metric.WithAttributes(actionAttr))
	log.Ctx(ctx).Info().
		Str("action", req.Action).
		Str("job_id", res.JobID.String()).
		Str("user_id", caller.UserID.String()).
		Str("status", string(res.Status)).
		Msg("job action applied")
	return res, nil
}

func (s *LifecycleService) execute(ctx context.Context, caller entity.Caller, req ExecuteRequest) (*ExecuteResult, error) {
	if req.Action == "" {
		return nil, newError(KindInvalidInput, "Missing required fields: action, jobId")
	}
	action, ok := ParseAction(req.Action)
	if !ok {
		return nil, newError(KindInvalidInput, "Unknown action: "+req.Action)
	}
	if req.JobID == "" {
		return nil, newError(KindInvalidInput, "Missing required fields: action, jobId")
	}
	tr := transitions[action]

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return nil, newError(KindNotFound, "Job not found")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			return nil, newError(KindNotFound, "Job not found")
		}
		return nil, wrapError(KindInternal, "Failed to load job", err)
	}

	if err := s.authorize(ctx, caller, job, tr.guard); err != nil {
		return nil, err
	}

	if tr.from != nil && !slices.Contains(tr.from, job.Status) {
		return nil, newError(KindInvalidInput, fmt.Sprintf("Cannot %s job. Current status: %s", tr.verb, job.Status))
	}

	upd := entity.JobUpdate{Status: tr.to}
	now := s.now()
	switch action {
	case ActionStart:
		upd.StartedAt = &now
	case ActionComplete:
		upd.CompletedAt = &now
	case ActionAdminApprove:
		approver := caller.UserID
		upd.ApprovedBy = &approver
		// an approved job carries no outstanding rejection
		upd.ClearRejectionReason = true
	case ActionAdminReject:
		reason := strings.TrimSpace(req.RejectionReason)
		if reason == "" {
			return nil, newError(KindInvalidInput, "Rejection reason is required")
		}
		if utf8.RuneCountInString(reason) > MaxRejectionReasonLen {
			return nil, newError(KindInvalidInput, "Rejection reason too long")
		}
		upd.RejectionReason = &reason
	}

	if err := s.jobs.ApplyTransition(ctx, job.ID, job.Status, upd); err != nil {
		switch {
		case errors.Is(err, postgresql.ErrNotFound):
			return nil, newError(KindNotFound, "Job not found")
		case errors.Is(err, postgresql.ErrStatusConflict):
			return nil, wrapError(KindConflict, "Job status changed concurrently, reload and retry", err)
		default:
			return nil, wrapError(KindInternal, "Failed to update job", err)
		}
	}

	return &ExecuteResult{JobID: job.ID, Status: tr.to}, nil
}

func (s *LifecycleService) authorize(ctx context.Context, caller entity.Caller, job *entity.Job, g guard) error {
	switch g {
	case guardAdmin:
		role, err := s.roles.Role(ctx, caller.UserID)
		if err != nil {
			return wrapError(KindInternal, "Failed to resolve caller role", err)
		}
		if role != entity.RoleAdmin {
			return newError(KindForbidden, "Admin access required")
		}
		return nil

	case guardAssignedWorker:
		if job.AssignedTo != nil && *job.AssignedTo == caller.UserID {
			return nil
		}
		profile, err := s.profiles.LandscaperByUserID(ctx, caller.UserID)
		if err != nil && !errors.Is(err, postgresql.ErrNotFound) {
			return wrapError(KindInternal, "Failed to load landscaper profile", err)
		}
		if profile != nil && job.LandscaperID != nil && *job.LandscaperID == profile.ID {
			return nil
		}
		return newError(KindForbidden, "Not authorized to start this job")

	default:
		return nil
	}
}
