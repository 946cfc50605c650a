package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/repository/postgresql"
)

type JobLister interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, f entity.JobFilter) ([]entity.Job, error)
}

// JobQueryService answers job reads with the same audience as the lifecycle
// gate: admins see every job, other callers see jobs on their landscaper
// profile or assigned to them.
type JobQueryService struct {
	jobs     JobLister
	profiles ProfileStore
	roles    RoleLookup
}

func NewJobQueryService(jobs JobLister, profiles ProfileStore, roles RoleLookup) *JobQueryService {
	return &JobQueryService{jobs: jobs, profiles: profiles, roles: roles}
}

// Get reports a job outside the caller's scope as not found.
func (s *JobQueryService) Get(ctx context.Context, caller entity.Caller, id uuid.UUID) (*entity.Job, error) {
	scope, err := s.scope(ctx, caller)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			return nil, newError(KindNotFound, "Job not found")
		}
		return nil, wrapError(KindInternal, "Failed to load job", err)
	}
	if scope != nil && !scope.Allows(job) {
		return nil, newError(KindNotFound, "Job not found")
	}
	return job, nil
}

// List narrows f to the caller's scope; filters naming other landscapers
// yield an empty list.
func (s *JobQueryService) List(ctx context.Context, caller entity.Caller, f entity.JobFilter) ([]entity.Job, error) {
	scope, err := s.scope(ctx, caller)
	if err != nil {
		return nil, err
	}
	f.VisibleTo = scope

	jobs, err := s.jobs.List(ctx, f)
	if err != nil {
		return nil, wrapError(KindInternal, "Failed to load jobs", err)
	}
	return jobs, nil
}

// scope returns nil for admins.
func (s *JobQueryService) scope(ctx context.Context, caller entity.Caller) (*entity.JobScope, error) {
	role, err := s.roles.Role(ctx, caller.UserID)
	if err != nil {
		return nil, wrapError(KindInternal, "Failed to resolve caller role", err)
	}
	if role == entity.RoleAdmin {
		return nil, nil
	}

	sc := &entity.JobScope{UserID: caller.UserID}
	profile, err := s.profiles.LandscaperByUserID(ctx, caller.UserID)
	switch {
	case err == nil:
		sc.LandscaperID = &profile.ID
	case !errors.Is(err, postgresql.ErrNotFound):
		return nil, wrapError(KindInternal, "Failed to load landscaper profile", err)
	}
	return sc, nil
}
