package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/internal/core"
	"github.com/f9-o/beamfleet/internal/core/config"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/internal/metrics"
	"github.com/f9-o/beamfleet/pkg/errs"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log, err := logger.Init("error", "text", "", "", false)
	if err != nil {
		t.Fatalf("logger.Init: %v", err)
	}
	c := core.New(&config.Config{}, log, metrics.New(""))
	return New(c, log, "")
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestStartNodeWithoutHostsIsConfigMissing(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/operations/start-node", startNodeRequest{Name: "w1", Type: v1.NodeTypeErlang})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (ConfigMissing), body: %s", rec.Code, rec.Body.String())
	}
	var result v1.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !result.IsErr() {
		t.Fatalf("result = %+v, want an error", result)
	}
}

func TestStartNodeMissingFieldsIsBadRequest(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/operations/start-node", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInspectNodeWithoutConfiguredHostsIsBadRequest(t *testing.T) {
	// inspect-node runs the configuration precheck before the node
	// lookup, so an empty fleet surfaces ConfigMissing (400) rather
	// than NodeUnknown (404).
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/operations/inspect-node", nodeNameRequest{Name: "ghost"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (ConfigMissing), body: %s", rec.Code, rec.Body.String())
	}
}

func TestCallGenserverRejectsOutOfRangeTimeout(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/operations/call-genserver", callGenserverRequest{
		Name: "w1", Server: "srv", Message: "ping", TimeoutMS: 70000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an out-of-range timeout", rec.Code)
	}
}

// TestStatusForResultMapsEveryErrorCode pins every spec §7 taxonomy
// code to its HTTP status, independent of any live node/host state —
// this is what should fail if resultCode/statusForResult drifts from
// DESIGN.md's documented mapping (as NodeBadState once did).
func TestStatusForResultMapsEveryErrorCode(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{string(errs.ErrNodeUnknown), http.StatusNotFound},
		{string(errs.ErrUnknownHost), http.StatusNotFound},
		{string(errs.ErrNameTaken), http.StatusConflict},
		{string(errs.ErrNodeBadState), http.StatusConflict},
		{string(errs.ErrBadAtomName), http.StatusBadRequest},
		{string(errs.ErrConfigMissing), http.StatusBadRequest},
		{string(errs.ErrSshDial), http.StatusBadGateway},
		{string(errs.ErrSshTimeout), http.StatusBadGateway},
		{string(errs.ErrSshSpawn), http.StatusBadGateway},
		{string(errs.ErrNodeUnreach), http.StatusBadGateway},
		{string(errs.ErrRemoteEval), http.StatusBadGateway},
	}
	for _, tc := range cases {
		msg := fmt.Sprintf("[%s] some.op (w1): boom", tc.code)
		got := statusForResult(v1.ErrResult(msg))
		if got != tc.want {
			t.Errorf("statusForResult([%s]...) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestStatusForResultOkIs200(t *testing.T) {
	if got := statusForResult(v1.Ok("done")); got != http.StatusOK {
		t.Fatalf("statusForResult(Ok) = %d, want 200", got)
	}
}

func TestListNodesEmptyFleet(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/operations/list-nodes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []v1.NodeListEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want empty", entries)
	}
}
