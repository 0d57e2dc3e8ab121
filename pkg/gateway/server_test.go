package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahendra/kerani/pkg/launcher/launchertest"
	"github.com/mahendra/kerani/pkg/session"
	"github.com/mahendra/kerani/pkg/tools"
)

func newTestServer(t *testing.T, l *launchertest.FakeLauncher) (*Server, *session.Registry) {
	t.Helper()

	reg := session.New(l, session.Config{ArchiveCapacity: 10, TerminateGrace: 100 * time.Millisecond}, nil)
	h, err := tools.NewHandler(reg, tools.Options{
		DefaultStartTimeout: time.Second,
		DefaultReadTimeout:  200 * time.Millisecond,
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Addr:              "127.0.0.1:0",
		Tools:             h,
		Registry:          reg,
		StreamReadTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	return srv, reg
}

func postSystem(t *testing.T, handler http.Handler, body string) map[string]interface{} {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/system", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)

	_, err = NewServer(Config{Addr: "127.0.0.1:0"})
	assert.Error(t, err)
}

func TestHandleSystem_ExecuteAndRead(t *testing.T) {
	srv, _ := newTestServer(t, &launchertest.FakeLauncher{
		Script: func(command string, p *launchertest.FakeProcess) {
			p.WriteOutput("hi\n")
			p.Exit(0)
		},
	})
	handler := srv.Handler()

	started := postSystem(t, handler, `{"action":"execute_command","params":{"command":"echo hi"}}`)
	assert.Equal(t, true, started["success"])
	assert.Equal(t, float64(1), started["session_id"])
	assert.Equal(t, "hi\n", started["initial_output"])
	assert.Equal(t, false, started["is_running"])

	read := postSystem(t, handler, `{"action":"read_output","params":{"session_id":1}}`)
	assert.Equal(t, true, read["success"])
	assert.Contains(t, read["output"], "Process completed with exit code 0")
}

func TestHandleSystem_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, &launchertest.FakeLauncher{})

	req := httptest.NewRequest(http.MethodPost, "/api/system", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["error"], "malformed request body")
}

func TestHandleSystem_UnknownAction(t *testing.T) {
	srv, _ := newTestServer(t, &launchertest.FakeLauncher{})

	resp := postSystem(t, srv.Handler(), `{"action":"reboot"}`)
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["error"], "unknown action")
}

func TestHandleListSessions(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	srv, _ := newTestServer(t, &launchertest.FakeLauncher{
		Script: func(command string, p *launchertest.FakeProcess) {
			<-release
		},
	})
	handler := srv.Handler()

	postSystem(t, handler, `{"action":"execute_command","params":{"command":"loop","timeout_ms":50}}`)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(1), resp["total_sessions"])

	sessions, ok := resp["active_sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, sessions, 1)
	row := sessions[0].(map[string]interface{})
	assert.Equal(t, float64(1), row["session_id"])
	assert.Equal(t, false, row["is_completed"])
	assert.Contains(t, row, "runtime_seconds")
	assert.Contains(t, row, "has_new_output")
	assert.Contains(t, row, "total_output_length")
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, &launchertest.FakeLauncher{
		Script: func(command string, p *launchertest.FakeProcess) {
			p.Exit(0)
		},
	})
	handler := srv.Handler()

	postSystem(t, handler, `{"action":"execute_command","params":{"command":"true"}}`)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(0), resp["active_sessions"])
	assert.Equal(t, float64(1), resp["archived_sessions"])
}

func TestHandleStream_InvalidID(t *testing.T) {
	srv, _ := newTestServer(t, &launchertest.FakeLauncher{})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc/stream", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
