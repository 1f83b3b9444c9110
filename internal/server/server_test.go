package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"focusquest/internal/config"
	"focusquest/internal/db"
	"focusquest/internal/engine"
	"focusquest/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Repo.UpsertSettings(context.Background(), cfg); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{AllowLegacyActorHeader: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "tester")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, err := srv.Client().Get(srv.URL + "/v0/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, err := srv.Client().Get(srv.URL + "/v0/tasks")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name":     "Deep work",
		"job_type": "sage",
	})
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", createRes.StatusCode, string(data))
	}
	var created TaskResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.Level != 1 || created.Experience.Max != 100 {
		t.Fatalf("unexpected task shape: %s", string(data))
	}

	sesRes, sesBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions", map[string]any{
		"task_id": created.ID,
	})
	if sesRes.StatusCode != http.StatusCreated {
		t.Fatalf("complete session status %d: %s", sesRes.StatusCode, string(sesBody))
	}
	var completed CompleteSessionResponse
	if err := json.Unmarshal(sesBody, &completed); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if !completed.LeveledUp || completed.Task.Level != 2 {
		t.Fatalf("expected level-up, got %s", string(sesBody))
	}
	if completed.Session.TaskType != "Deep work" {
		t.Fatalf("session should carry task name, got %q", completed.Session.TaskType)
	}

	statsRes, statsBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/stats?days=7", nil)
	if statsRes.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", statsRes.StatusCode, string(statsBody))
	}
	var stats struct {
		DailyStats      []map[string]any `json:"daily_stats"`
		StreakDays      int              `json:"streak_days"`
		TotalExperience int              `json:"total_experience"`
	}
	if err := json.Unmarshal(statsBody, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if len(stats.DailyStats) != 7 || stats.StreakDays != 1 || stats.TotalExperience != 100 {
		t.Fatalf("unexpected stats: %s", string(statsBody))
	}
}

func TestTaskLimitConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, name := range []string{"a", "b", "c"} {
		res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
			"name":     name,
			"job_type": "warrior",
		})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: %d %s", name, res.StatusCode, string(body))
		}
	}
	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name":     "d",
		"job_type": "warrior",
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(body))
	}
}

func TestDeleteTaskPurges(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name":     "Temp",
		"job_type": "mage",
	})
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/sessions", map[string]any{"task_id": created.ID})

	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/"+created.ID, nil)
	if delRes.StatusCode != http.StatusNoContent && delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}

	getRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+created.ID, nil)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getRes.StatusCode)
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/sessions", nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list sessions: %d", listRes.StatusCode)
	}
	var sessions []SessionResponse
	if err := json.Unmarshal(listBody, &sessions); err != nil {
		t.Fatalf("unmarshal sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected purged sessions, got %d", len(sessions))
	}
}

func TestSkillsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name":     "Train",
		"job_type": "priest",
	})
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+created.ID+"/skills", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("skills status %d: %s", res.StatusCode, string(body))
	}
	var sp struct {
		JobType string `json:"job_type"`
		Next    *struct {
			Level int `json:"level"`
		} `json:"next"`
	}
	if err := json.Unmarshal(body, &sp); err != nil {
		t.Fatalf("unmarshal skills: %v", err)
	}
	if sp.JobType != "priest" || sp.Next == nil || sp.Next.Level != 3 {
		t.Fatalf("unexpected skill progress: %s", string(body))
	}
}
