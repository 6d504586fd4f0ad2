package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"missionctl/internal/config"
	"missionctl/internal/domain"
	"missionctl/internal/engine"
	"missionctl/internal/store"
)

type testServer struct {
	URL        string
	ReportsDir string
	client     *http.Client
	close      func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default(workspace)
	if mutate != nil {
		mutate(cfg)
	}
	st := store.New(cfg.Storage.DataDir, cfg.Storage.ReportsDir, zerolog.Nop())
	if err := st.EnsureWorkspace(); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	e := engine.New(st, cfg, zerolog.Nop())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Logger:   zerolog.Nop(),
	})
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
		URL:        "http://" + ln.Addr().String(),
		ReportsDir: cfg.Storage.ReportsDir,
		client:     &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			st.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
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
	for k, v := range headers {
		req.Header.Set(k, v)
	}
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

func TestTaskCRUDOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":    "Ship dashboard",
		"priority": "high",
	}, map[string]string{"X-Actor-Id": "ana"})
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", createRes.StatusCode, string(data))
	}
	var created domain.Task
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.Status != domain.StatusPending || created.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected task: %+v", created)
	}

	patchRes, patchBody := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+created.ID, map[string]any{
		"status": "in-progress",
	}, nil)
	if patchRes.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", patchRes.StatusCode, string(patchBody))
	}

	completeRes, completeBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+created.ID+"/complete", nil, nil)
	if completeRes.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", completeRes.StatusCode, string(completeBody))
	}
	var completed domain.Task
	if err := json.Unmarshal(completeBody, &completed); err != nil {
		t.Fatalf("unmarshal completed: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.CompletedAt == "" {
		t.Fatalf("expected completed task: %+v", completed)
	}

	delRes, _ := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/"+created.ID, nil, nil)
	if delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", delRes.StatusCode)
	}
	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", getRes.StatusCode, string(getBody))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(getBody, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("unexpected error code: %+v", envelope)
	}
}

func TestSharedTasksAreSeparate(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/shared-tasks", map[string]any{
		"title": "Team retro",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create shared task status %d: %s", res.StatusCode, string(body))
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d", listRes.StatusCode)
	}
	var personal []domain.Task
	if err := json.Unmarshal(listBody, &personal); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(personal) != 0 {
		t.Fatalf("expected no personal tasks, got %d", len(personal))
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	if res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title": "Fix deploy pipeline",
	}, nil); res.StatusCode != http.StatusCreated {
		t.Fatalf("seed task status %d: %s", res.StatusCode, string(body))
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/search?q=deploy", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search status %d: %s", res.StatusCode, string(body))
	}
	var sr SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatalf("unmarshal search: %v", err)
	}
	if sr.Query != "deploy" || sr.Total != len(sr.Results) || len(sr.Results) == 0 {
		t.Fatalf("unexpected search response: %+v", sr)
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	for _, q := range []string{"", "%20%20"} {
		res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/search?q="+q, nil, nil)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("q=%q: expected 400, got %d: %s", q, res.StatusCode, string(body))
		}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("unmarshal error envelope: %v", err)
		}
		if envelope.Error.Message != "query parameter required" {
			t.Fatalf("unexpected message: %q", envelope.Error.Message)
		}
	}
}

func TestNotesPinFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/notes", map[string]any{
		"author":  "ana",
		"content": "standup moved to 10am",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create note status %d: %s", res.StatusCode, string(body))
	}
	var note domain.Note
	if err := json.Unmarshal(body, &note); err != nil {
		t.Fatalf("unmarshal note: %v", err)
	}

	pinRes, pinBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/notes/"+note.ID+"/pin", map[string]any{
		"pinned": true,
	}, nil)
	if pinRes.StatusCode != http.StatusOK {
		t.Fatalf("pin status %d: %s", pinRes.StatusCode, string(pinBody))
	}
	var pinned domain.Note
	if err := json.Unmarshal(pinBody, &pinned); err != nil {
		t.Fatalf("unmarshal pinned note: %v", err)
	}
	if !pinned.Pinned {
		t.Fatalf("expected pinned note: %+v", pinned)
	}
}

func TestOutputTypeRejected(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/outputs", map[string]any{
		"title": "demo video",
		"type":  "video",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(body))
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	if res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title": "a",
	}, nil); res.StatusCode != http.StatusCreated {
		t.Fatalf("seed task status %d: %s", res.StatusCode, string(body))
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/summary", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("summary status %d: %s", res.StatusCode, string(body))
	}
	var sum engine.Summary
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if sum.TaskCounts[domain.StatusPending] != 1 {
		t.Fatalf("unexpected task counts: %+v", sum.TaskCounts)
	}
	if len(sum.RecentActivity) != 1 {
		t.Fatalf("expected one recent activity: %+v", sum.RecentActivity)
	}
}

func TestAuthEnforcedWhenConfigured(t *testing.T) {
	srv, cleanup := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.APIKeys = []config.APIKey{{Key: "k-ana", Owner: "ana"}}
	})
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"X-Api-Key": "k-ana"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d: %s", res.StatusCode, string(body))
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", res.StatusCode)
	}
}

func TestActorHeaderRecordedWhenAuthDisabled(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	if res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title": "attributed",
	}, map[string]string{"X-Actor-Id": "bo"}); res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(body))
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/activities", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activities status %d", res.StatusCode)
	}
	var acts []domain.Activity
	if err := json.Unmarshal(body, &acts); err != nil {
		t.Fatalf("unmarshal activities: %v", err)
	}
	if len(acts) != 1 || acts[0].Actor != "bo" {
		t.Fatalf("expected activity attributed to bo: %+v", acts)
	}
}

func TestReportsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	// reports land on disk outside the API, the endpoint just lists them
	if err := os.WriteFile(filepath.Join(srv.ReportsDir, "weekly.md"), []byte("# weekly\nall green\n"), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/reports", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reports status %d: %s", res.StatusCode, string(body))
	}
	var reports []domain.Report
	if err := json.Unmarshal(body, &reports); err != nil {
		t.Fatalf("unmarshal reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Name != "weekly.md" || reports[0].Size == 0 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
}
