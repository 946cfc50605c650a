package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/auth"
	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/service"
)

const maxBodyBytes = 64 << 10

// Lifecycle is implemented by service.LifecycleService.
type Lifecycle interface {
	Execute(ctx context.Context, caller entity.Caller, req service.ExecuteRequest) (*service.ExecuteResult, error)
}

// JobReader is implemented by service.JobQueryService.
type JobReader interface {
	Get(ctx context.Context, caller entity.Caller, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, caller entity.Caller, f entity.JobFilter) ([]entity.Job, error)
}

type Handler struct {
	lifecycle Lifecycle
	jobs      JobReader
}

func NewHandler(lifecycle Lifecycle, jobs JobReader) *Handler {
	return &Handler{lifecycle: lifecycle, jobs: jobs}
}

type executeDTO struct {
	Action          string `json:"action" example:"start"`
	JobID           string `json:"jobId" example:"3f0c1f2e-8a4b-4d47-9d61-0d7f1f1d6a10"`
	RejectionReason string `json:"rejectionReason,omitempty" maxLength:"2000"`
}

type listJobsResp struct {
	Jobs []entity.Job `json:"jobs"`
}

var kindStatus = map[service.Kind]int{
	service.KindInvalidInput:    http.StatusBadRequest,
	service.KindUnauthenticated: http.StatusUnauthorized,
	service.KindForbidden:       http.StatusForbidden,
	service.KindNotFound:        http.StatusNotFound,
	service.KindConflict:        http.StatusConflict,
	service.KindInternal:        http.StatusInternalServerError,
}

// ExecuteJobAction godoc
// @Summary Apply a lifecycle action to a job
// @Description start: accepted/assigned/active -> in_progress (assigned worker only).
// @Description complete: in_progress -> completed_pending_review.
// @Description admin_approve: any -> completed; admin_reject: any -> in_progress with a reason (admins only).
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body executeDTO true "action request"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Failure 500 {object} apiResponse
// @Router /job-execution [post]
func (h *Handler) ExecuteJobAction(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var dto executeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	res, err := h.lifecycle.Execute(r.Context(), caller, service.ExecuteRequest{
		Action:          dto.Action,
		JobID:           dto.JobID,
		RejectionReason: dto.RejectionReason,
	})
	if err != nil {
		writeServiceErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Status: res.Status})
}

func writeServiceErr(w http.ResponseWriter, err error) {
	code, ok := kindStatus[service.KindOf(err)]
	if !ok {
		code = http.StatusInternalServerError
	}
	writeErr(w, code, service.MessageOf(err))
}

// GetJob godoc
// @Summary Get job by id
// @Description Admins read any job; other callers only jobs on their landscaper profile or assigned to them.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 401 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 500 {object} apiResponse
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "Job not found")
		return
	}

	j, err := h.jobs.Get(r.Context(), caller, id)
	if err != nil {
		if service.KindOf(err) == service.KindInternal {
			log.Ctx(r.Context()).Error().Err(err).Str("job_id", id.String()).Msg("get job failed")
		}
		writeServiceErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

// ListJobs godoc
// @Summary List jobs, newest first
// @Description Results are limited to the jobs the caller may read.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param landscaper_id query string false "landscaper id (uuid)"
// @Param status query string false "job status"
// @Param limit query int false "max rows (default 50, max 200)"
// @Success 200 {object} listJobsResp
// @Failure 400 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Failure 500 {object} apiResponse
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	q := r.URL.Query()
	var f entity.JobFilter

	if v := q.Get("landscaper_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "Invalid landscaper_id")
			return
		}
		f.LandscaperID = &id
	}
	if v := q.Get("status"); v != "" {
		f.Status = entity.JobStatus(v)
		if !f.Status.Valid() {
			writeErr(w, http.StatusBadRequest, "Invalid status: "+v)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}

	jobs, err := h.jobs.List(r.Context(), caller, f)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("list jobs failed")
		writeServiceErr(w, err)
		return
	}
	if jobs == nil {
		jobs = []entity.Job{}
	}

	writeJSON(w, http.StatusOK, listJobsResp{Jobs: jobs})
}
