package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"landscape-job-service/internal/auth"
	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/repository/postgresql"
	"landscape-job-service/internal/service"
	httptransport "landscape-job-service/internal/transport/http"
)

const testSecret = "handler-test-secret-32-bytes-long!!"

// ---- fakes ----

type memJobs struct {
	jobs     map[uuid.UUID]*entity.Job
	applyErr error
	listErr  error
	lastList entity.JobFilter
}

func (r *memJobs) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobs) ApplyTransition(ctx context.Context, id uuid.UUID, from entity.JobStatus, upd entity.JobUpdate) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	j, ok := r.jobs[id]
	if !ok {
		return postgresql.ErrNotFound
	}
	if j.Status != from {
		return postgresql.ErrStatusConflict
	}
	j.Status = upd.Status
	return nil
}

func (r *memJobs) List(ctx context.Context, f entity.JobFilter) ([]entity.Job, error) {
	r.lastList = f
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []entity.Job
	for _, j := range r.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.LandscaperID != nil && (j.LandscaperID == nil || *j.LandscaperID != *f.LandscaperID) {
			continue
		}
		if f.VisibleTo != nil && !f.VisibleTo.Allows(j) {
			continue
		}
		out = append(out, *j)
	}
	return out, nil
}

type profiles map[uuid.UUID]uuid.UUID

func (p profiles) LandscaperByUserID(ctx context.Context, userID uuid.UUID) (*entity.Landscaper, error) {
	id, ok := p[userID]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	return &entity.Landscaper{ID: id, UserID: userID}, nil
}

type roles map[uuid.UUID]entity.Role

func (r roles) Role(ctx context.Context, userID uuid.UUID) (entity.Role, error) {
	return r[userID], nil
}

// ---- helpers ----

var (
	workerUser   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	workerProf   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	adminUser    = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	strangerUser = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	assignedJob  = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	otherJob     = uuid.MustParse("66666666-6666-6666-6666-666666666666")
	otherProf    = uuid.MustParse("77777777-7777-7777-7777-777777777777")
)

type env struct {
	router http.Handler
	jobs   *memJobs
}

func newEnv(t *testing.T) *env {
	t.Helper()

	now := time.Now().UTC()
	jobs := &memJobs{jobs: map[uuid.UUID]*entity.Job{
		assignedJob: {
			ID:           assignedJob,
			Status:       entity.StatusAssigned,
			LandscaperID: &workerProf,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		otherJob: {
			ID:           otherJob,
			Status:       entity.StatusAssigned,
			LandscaperID: &otherProf,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}}

	profs := profiles{workerUser: workerProf}
	rs := roles{adminUser: entity.RoleAdmin, workerUser: entity.RoleLandscaper}
	svc := service.NewLifecycleService(jobs, profs, rs)
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	h := httptransport.NewHandler(svc, service.NewJobQueryService(jobs, profs, rs))
	return &env{router: httptransport.Routes(h, verifier, httptransport.RouteConfig{}), jobs: jobs}
}

func token(t *testing.T, user uuid.UUID) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

type result struct {
	code int
	body map[string]any
}

func (e *env) execute(t *testing.T, user uuid.UUID, body string) result {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/job-execution", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	return e.do(t, req)
}

func (e *env) do(t *testing.T, req *http.Request) result {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	res := result{code: rr.Code}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &res.body); err != nil {
			t.Fatalf("invalid json response: %v, body=%s", err, rr.Body.String())
		}
	}
	return res
}

func expect(t *testing.T, got result, code int, success bool, field, want string) {
	t.Helper()
	if got.code != code {
		t.Fatalf("expected %d, got %d, body=%v", code, got.code, got.body)
	}
	if got.body["success"] != success {
		t.Fatalf("expected success=%v, got %v", success, got.body["success"])
	}
	if field != "" && got.body[field] != want {
		t.Fatalf("expected %s=%q, got %v", field, want, got.body[field])
	}
}

// ---- tests ----

func TestHTTP_Start_ThenStartAgain(t *testing.T) {
	e := newEnv(t)
	body := `{"action":"start","jobId":"` + assignedJob.String() + `"}`

	expect(t, e.execute(t, workerUser, body), http.StatusOK, true, "status", "in_progress")
	expect(t, e.execute(t, workerUser, body), http.StatusBadRequest, false, "error", "Cannot start job. Current status: in_progress")
}

func TestHTTP_AdminApprove_NonAdmin_403(t *testing.T) {
	e := newEnv(t)
	body := `{"action":"admin_approve","jobId":"` + assignedJob.String() + `"}`

	expect(t, e.execute(t, workerUser, body), http.StatusForbidden, false, "error", "Admin access required")
	if e.jobs.jobs[assignedJob].Status != entity.StatusAssigned {
		t.Fatalf("job must be untouched, got %s", e.jobs.jobs[assignedJob].Status)
	}

	expect(t, e.execute(t, adminUser, body), http.StatusOK, true, "status", "completed")
}

func TestHTTP_AdminReject_RequiresReason(t *testing.T) {
	e := newEnv(t)

	expect(t, e.execute(t, adminUser, `{"action":"admin_reject","jobId":"`+assignedJob.String()+`","rejectionReason":"  "}`),
		http.StatusBadRequest, false, "error", "Rejection reason is required")
	long := strings.Repeat("x", service.MaxRejectionReasonLen+1)
	expect(t, e.execute(t, adminUser, `{"action":"admin_reject","jobId":"`+assignedJob.String()+`","rejectionReason":"`+long+`"}`),
		http.StatusBadRequest, false, "error", "Rejection reason too long")
	expect(t, e.execute(t, adminUser, `{"action":"admin_reject","jobId":"`+assignedJob.String()+`","rejectionReason":"edges not trimmed"}`),
		http.StatusOK, true, "status", "in_progress")
}

func TestHTTP_Start_Stranger_403(t *testing.T) {
	e := newEnv(t)
	body := `{"action":"start","jobId":"` + assignedJob.String() + `"}`

	expect(t, e.execute(t, strangerUser, body), http.StatusForbidden, false, "error", "Not authorized to start this job")
}

func TestHTTP_InputErrors(t *testing.T) {
	e := newEnv(t)

	expect(t, e.execute(t, workerUser, `{"action":"start"`), http.StatusBadRequest, false, "error", "Invalid JSON body")
	expect(t, e.execute(t, workerUser, `{"action":"start"}`), http.StatusBadRequest, false, "error", "Missing required fields: action, jobId")
	expect(t, e.execute(t, workerUser, `{"action":"archive","jobId":"`+assignedJob.String()+`"}`), http.StatusBadRequest, false, "error", "Unknown action: archive")
	expect(t, e.execute(t, workerUser, `{"action":"archive"}`), http.StatusBadRequest, false, "error", "Unknown action: archive")
	expect(t, e.execute(t, workerUser, `{"action":"start","jobId":"`+uuid.NewString()+`"}`), http.StatusNotFound, false, "error", "Job not found")

	big := `{"action":"start","jobId":"` + assignedJob.String() + `","rejectionReason":"` + strings.Repeat("x", 70<<10) + `"}`
	expect(t, e.execute(t, workerUser, big), http.StatusBadRequest, false, "error", "Invalid JSON body")
}

func TestHTTP_Auth_401(t *testing.T) {
	e := newEnv(t)
	body := `{"action":"start","jobId":"` + assignedJob.String() + `"}`

	expect(t, e.execute(t, uuid.Nil, body), http.StatusUnauthorized, false, "error", "Missing authorization header")

	req := httptest.NewRequest(http.MethodPost, "/job-execution", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer not-a-token")
	expect(t, e.do(t, req), http.StatusUnauthorized, false, "error", "Invalid token")

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	req = httptest.NewRequest(http.MethodPost, "/job-execution", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+noSub)
	expect(t, e.do(t, req), http.StatusUnauthorized, false, "error", "Invalid token")
}

func TestHTTP_PersistenceFailures(t *testing.T) {
	e := newEnv(t)
	body := `{"action":"start","jobId":"` + assignedJob.String() + `"}`

	e.jobs.applyErr = postgresql.ErrStatusConflict
	expect(t, e.execute(t, workerUser, body), http.StatusConflict, false, "error", "Job status changed concurrently, reload and retry")

	e.jobs.applyErr = errors.New("connection reset by peer")
	got := e.execute(t, workerUser, body)
	expect(t, got, http.StatusInternalServerError, false, "error", "Failed to update job")
}

func TestHTTP_CORSPreflight(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/job-execution", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Fatalf("expected preflight 2xx, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected allow-origin *, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("expected POST in allow-methods, got %q", got)
	}
}

func TestHTTP_GetJob(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+assignedJob.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token(t, workerUser))
	got := e.do(t, req)
	if got.code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%v", got.code, got.body)
	}
	if got.body["status"] != "assigned" || got.body["landscaper_id"] != workerProf.String() {
		t.Fatalf("unexpected job body: %v", got.body)
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, workerUser))
	expect(t, e.do(t, req), http.StatusNotFound, false, "error", "Job not found")

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+assignedJob.String(), nil)
	if got := e.do(t, req); got.code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", got.code)
	}
}

func TestHTTP_ListJobs(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs?landscaper_id="+workerProf.String()+"&status=assigned&limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, workerUser))
	got := e.do(t, req)
	if got.code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%v", got.code, got.body)
	}
	list, _ := got.body["jobs"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected one job, got %v", got.body["jobs"])
	}
	if e.jobs.lastList.Limit != 10 || e.jobs.lastList.Status != entity.StatusAssigned || *e.jobs.lastList.LandscaperID != workerProf {
		t.Fatalf("filter not passed through: %+v", e.jobs.lastList)
	}
	if sc := e.jobs.lastList.VisibleTo; sc == nil || sc.UserID != workerUser || *sc.LandscaperID != workerProf {
		t.Fatalf("expected caller scope on the filter, got %+v", e.jobs.lastList.VisibleTo)
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs?status=done", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, workerUser))
	expect(t, e.do(t, req), http.StatusBadRequest, false, "error", "Invalid status: done")

	req = httptest.NewRequest(http.MethodGet, "/jobs?status=completed", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, workerUser))
	got = e.do(t, req)
	if list, ok := got.body["jobs"].([]any); !ok || len(list) != 0 {
		t.Fatalf("expected empty jobs array, got %v", got.body["jobs"])
	}
}

func TestHTTP_Health(t *testing.T) {
	e := newEnv(t)

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", rr.Code, rr.Body.String())
	}
}

func listAs(t *testing.T, e *env, user uuid.UUID, query string) []any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/jobs"+query, nil)
	req.Header.Set("Authorization", "Bearer "+token(t, user))
	got := e.do(t, req)
	if got.code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%v", got.code, got.body)
	}
	list, ok := got.body["jobs"].([]any)
	if !ok {
		t.Fatalf("expected jobs array, got %v", got.body)
	}
	return list
}

func TestHTTP_Reads_ScopedToCaller(t *testing.T) {
	e := newEnv(t)

	if n := len(listAs(t, e, strangerUser, "?landscaper_id="+workerProf.String())); n != 0 {
		t.Fatalf("stranger listed %d jobs of another landscaper", n)
	}
	if n := len(listAs(t, e, strangerUser, "")); n != 0 {
		t.Fatalf("stranger listed %d jobs", n)
	}
	if n := len(listAs(t, e, workerUser, "")); n != 1 {
		t.Fatalf("worker should see only their own job, got %d", n)
	}
	if n := len(listAs(t, e, adminUser, "")); n != 2 {
		t.Fatalf("admin should see every job, got %d", n)
	}

	get := func(user, job uuid.UUID) result {
		req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.String(), nil)
		req.Header.Set("Authorization", "Bearer "+token(t, user))
		return e.do(t, req)
	}
	expect(t, get(strangerUser, assignedJob), http.StatusNotFound, false, "error", "Job not found")
	expect(t, get(workerUser, otherJob), http.StatusNotFound, false, "error", "Job not found")
	if got := get(adminUser, otherJob); got.code != http.StatusOK {
		t.Fatalf("admin expected 200, got %d", got.code)
	}

	// direct assignment grants access without a landscaper profile
	e.jobs.jobs[otherJob].AssignedTo = &strangerUser
	if got := get(strangerUser, otherJob); got.code != http.StatusOK {
		t.Fatalf("assignee expected 200, got %d, body=%v", got.code, got.body)
	}
	if n := len(listAs(t, e, strangerUser, "")); n != 1 {
		t.Fatalf("assignee should list the assigned job, got %d", n)
	}
}

func TestHTTP_ListJobs_StoreError(t *testing.T) {
	e := newEnv(t)
	e.jobs.listErr = errors.New("connection reset")

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, adminUser))
	expect(t, e.do(t, req), http.StatusInternalServerError, false, "error", "Failed to load jobs")
}
