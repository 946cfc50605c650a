package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/realtime"
)

func gateServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /job-execution", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.Action == "admin_approve" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":"Admin access required"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"status":"in_progress"}`))
	})
	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("status") == "bogus" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":"Invalid status: bogus"}`))
			return
		}
		_, _ = w.Write([]byte(`{"jobs":[
			{"id":"j2","status":"assigned","landscaper_id":"L1","updated_at":"2025-06-01T09:05:00Z"},
			{"id":"j1","status":"in_progress","landscaper_id":"L2","updated_at":"2025-06-01T09:00:00.5+00:00"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExecCmd(t *testing.T) {
	srv := gateServer(t)
	var out bytes.Buffer

	cmd := &ExecCmd{API: srv.URL + "/", Token: "tok", Action: "start", Job: "j1", out: &out}
	require.NoError(t, cmd.Run(context.Background()))
	require.Contains(t, out.String(), `"status": "in_progress"`)

	out.Reset()
	cmd.Action = "admin_approve"
	err := cmd.Run(context.Background())
	require.EqualError(t, err, "admin_approve failed (HTTP 403): Admin access required")
	require.Contains(t, out.String(), `"success": false`)
}

func TestAPIClient_ListJobs(t *testing.T) {
	srv := gateServer(t)
	c := newAPIClient(srv.URL, "tok")

	rows, err := c.listJobs(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "j2", rows[0].ID())

	_, err = c.listJobs(context.Background(), map[string][]string{"status": {"bogus"}})
	require.ErrorContains(t, err, "HTTP 400: Invalid status: bogus")
}

func TestListQuery(t *testing.T) {
	require.Equal(t, "limit=200", listQuery(nil).Encode())

	f, err := realtime.ParseFilter("landscaper_id=eq.L1")
	require.NoError(t, err)
	require.Equal(t, "L1", listQuery(&f).Get("landscaper_id"))

	f, err = realtime.ParseFilter("status=in.(assigned,active)")
	require.NoError(t, err)
	require.Empty(t, listQuery(&f).Get("status"), "only equality is pushed down")
}

func TestJobView(t *testing.T) {
	srv := gateServer(t)
	rows, err := newAPIClient(srv.URL, "tok").listJobs(context.Background(), nil)
	require.NoError(t, err)

	f, err := realtime.ParseFilter("landscaper_id=eq.L1")
	require.NoError(t, err)

	var out bytes.Buffer
	v := newJobView(&f, &out)
	v.replace(rows)
	require.Equal(t, 1, v.rows.Len(), "snapshot is filtered client-side too")

	snap := v.rows.Rows()
	require.IsType(t, time.Time{}, snap[0]["updated_at"])

	require.True(t, v.apply(entity.Change{Type: entity.ChangeUpdate, New: entity.Row{"id": "j2", "status": "in_progress"}}))
	require.False(t, v.apply(entity.Change{Type: entity.ChangeUpdate, New: entity.Row{"id": "j9", "status": "completed"}}))

	v.print()
	require.Contains(t, out.String(), "1 jobs  in_progress=1")
	require.Contains(t, out.String(), "j2")
}
