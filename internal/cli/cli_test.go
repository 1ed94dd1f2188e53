package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

// fakeServer answers every request with status and body and records what it saw
func fakeServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
		json.NewDecoder(r.Body).Decode(&req.body)
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--token", "tkn"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCallCommandsHitTheRightRoutes(t *testing.T) {
	session := `{"sessionId":"s-1","agentId":"agent-1","state":"on_hold"}`

	tests := []struct {
		name       string
		args       []string
		wantMethod string
		wantPath   string
		wantBody   map[string]interface{}
	}{
		{"start", []string{"call", "start", "--agent", "agent-1", "--contact", "c-1"}, http.MethodPost, "/api/sessions",
			map[string]interface{}{"agentId": "agent-1", "contactId": "c-1"}},
		{"incoming", []string{"call", "incoming", "--phone", "+14155550100"}, http.MethodPost, "/api/sessions/incoming",
			map[string]interface{}{"agentId": "", "phone": "+14155550100", "contactId": ""}},
		{"hold", []string{"call", "hold", "s-1"}, http.MethodPost, "/api/sessions/s-1/hold", nil},
		{"record", []string{"call", "record", "s-1"}, http.MethodPost, "/api/sessions/s-1/record", nil},
		{"get", []string{"call", "get", "s-1"}, http.MethodGet, "/api/sessions/s-1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := fakeServer(t, http.StatusOK, session)
			out, err := run(t, srv, tt.args...)
			if err != nil {
				t.Fatalf("command failed: %v", err)
			}
			if len(*seen) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*seen))
			}
			got := (*seen)[0]
			if got.method != tt.wantMethod || got.path != tt.wantPath {
				t.Errorf("expected %s %s, got %s %s", tt.wantMethod, tt.wantPath, got.method, got.path)
			}
			if got.auth != "Bearer tkn" {
				t.Errorf("expected bearer token, got %q", got.auth)
			}
			for k, v := range tt.wantBody {
				if got.body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, got.body[k], v)
				}
			}
			if !strings.Contains(out, "s-1") || !strings.Contains(out, "on_hold") {
				t.Errorf("unexpected output %q", out)
			}
		})
	}
}

func TestWrapUpSendsDraft(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, `{"sessionId":"s-1","outcome":"answered","disposition":"sale","duration":25}`)
	out, err := run(t, srv, "call", "wrapup", "s-1", "--outcome", "answered", "--disposition", "sale", "--notes", "renewal", "--follow-up")
	if err != nil {
		t.Fatal(err)
	}

	body := (*seen)[0].body
	if body["outcome"] != "answered" || body["disposition"] != "sale" || body["notes"] != "renewal" || body["followUp"] != true {
		t.Errorf("unexpected draft %v", body)
	}
	if !strings.Contains(out, "duration=25s") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestAPIErrorIsReported(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusUnprocessableEntity,
		`{"error":"validation failed: contactId: required","code":"validation","fields":[{"field":"contactId","message":"required"}]}`)

	_, err := run(t, srv, "call", "start", "--contact", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Code != "validation" || len(apiErr.Fields) != 1 {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "contactId: required") {
		t.Errorf("error text should list the field, got %q", apiErr.Error())
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusForbidden, "Forbidden: supervisor role required\n")
	_, err := run(t, srv, "agent", "deactivate", "agent-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Forbidden: supervisor role required" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestAgentStatusQueued(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusAccepted, `{"agent":{"agentId":"agent-1","status":"busy","pendingStatus":"break"},"queued":true}`)
	out, err := run(t, srv, "agent", "status", "agent-1", "break")
	if err != nil {
		t.Fatal(err)
	}
	if (*seen)[0].method != http.MethodPut || (*seen)[0].path != "/api/agents/agent-1/status" {
		t.Errorf("unexpected request %+v", (*seen)[0])
	}
	if !strings.Contains(out, "break queued") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRecordsFilterAndJSON(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK, `[{"sessionId":"s-1","agentId":"agent-1","outcome":"answered","disposition":"sale","duration":25}]`)
	out, err := run(t, srv, "--json", "records", "--agent", "agent-1", "--date", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if q := (*seen)[0].query; q != "agentId=agent-1&date=2026-03-02" {
		t.Errorf("unexpected query %q", q)
	}

	var records []types.CallRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(records) != 1 || records[0].Duration != 25 {
		t.Errorf("unexpected records %+v", records)
	}
}
