package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/wsdpi/internal/config"
	"github.com/danmuck/wsdpi/internal/engine"
	"github.com/danmuck/wsdpi/internal/flow"
	"github.com/danmuck/wsdpi/internal/protocol"
	"github.com/danmuck/wsdpi/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	testlog.Start(t)
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	eng, err := engine.New(cfg, log.Logger)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return New("wsdpi-test", ":0", nil, eng, log.Logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(w, req)
	return w
}

func TestHealthAndDissectors(t *testing.T) {
	s := newTestServer(t, nil)
	if w := do(t, s, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/dissectors", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"WEBSOCKET"`) {
		t.Fatalf("unexpected dissectors response %d: %s", w.Code, w.Body.String())
	}
}

func TestClassifyEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct {
		body    string
		outcome string
		reason  string
	}{
		{`{"payload_hex":"8105"}`, "match", ""},
		{`{"payload_hex":"8880","attempt":1}`, "reject", "truncated_masked_payload"},
		{`{"payload_hex":"8f"}`, "reject", "truncated_header"},
		{`{"payload_hex":"83 00"}`, "reject", "illegal_opcode"},
		{`{"payload_hex":"8105","attempt":11}`, "reject", "attempt_budget_exhausted"},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodPost, "/classify", tc.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d body=%s", tc.body, w.Code, w.Body.String())
		}
		var got verdictResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("%s: decode: %v", tc.body, err)
		}
		if got.Outcome != tc.outcome || got.Reason != tc.reason || !got.Terminal {
			t.Fatalf("%s: got %+v want outcome=%s reason=%s", tc.body, got, tc.outcome, tc.reason)
		}
		testlog.Logf("server/classify: %s -> %s %s", tc.body, got.Outcome, got.Reason)
	}

	w := do(t, s, http.MethodPost, "/classify", `{"payload_hex":"8105"}`)
	var match verdictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &match); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if match.Header == nil || !match.Header.Fin || match.Header.PayloadLen7 != 5 {
		t.Fatalf("expected decoded header, got %+v", match.Header)
	}
}

func TestClassifyRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil)
	for _, body := range []string{`{"payload_hex":"zz"}`, `{"payload_hex":"810"}`, `not json`} {
		if w := do(t, s, http.MethodPost, "/classify", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
	}
	long := `{"payload_hex":"` + strings.Repeat("00", maxPayloadHex/2+1) + `"}`
	if w := do(t, s, http.MethodPost, "/classify", long); w.Code != http.StatusBadRequest {
		t.Fatalf("oversized payload: expected 400, got %d", w.Code)
	}
}

func TestRequestBodyIsCapped(t *testing.T) {
	s := newTestServer(t, nil)
	huge := `{"payload_hex":"` + strings.Repeat("00", maxBodyBytes) + `"}`
	for _, path := range []string{"/classify", "/segments"} {
		w := do(t, s, http.MethodPost, path, huge)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("%s: expected 413, got %d", path, w.Code)
		}
	}
}

func TestToggleDissector(t *testing.T) {
	s := newTestServer(t, nil)
	if w := do(t, s, http.MethodPost, "/dissectors/websocket/disable", ""); w.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w := do(t, s, http.MethodGet, "/dissectors", "")
	if !strings.Contains(w.Body.String(), `"enabled":false`) {
		t.Fatalf("dissector still listed as enabled: %s", w.Body.String())
	}

	w = do(t, s, http.MethodPost, "/segments", `{"src":"10.0.0.1:50000","dst":"10.0.0.2:9000","payload_hex":"8100"}`)
	var snap flow.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Detected != protocol.Unknown || len(snap.Excluded) != 0 {
		t.Fatalf("disabled dissector classified a flow: %+v", snap)
	}

	if w := do(t, s, http.MethodPost, "/dissectors/WEBSOCKET/enable", ""); w.Code != http.StatusOK {
		t.Fatalf("enable: expected 200, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/dissectors/NOPE/enable", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown dissector: expected 404, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/dissectors/WEBSOCKET/restart", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown action: expected 404, got %d", w.Code)
	}
}

func TestSegmentsAndFlows(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"src":"10.0.0.1:50000","dst":"10.0.0.2:80","payload_hex":"8185"}`
	w := do(t, s, http.MethodPost, "/segments", body)
	if w.Code != http.StatusOK {
		t.Fatalf("segments status %d: %s", w.Code, w.Body.String())
	}
	var snap flow.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Detected != protocol.Unknown || len(snap.Excluded) != 1 {
		t.Fatalf("masked header without key should exclude: %+v", snap)
	}

	body = `{"src":"10.0.0.3:50000","dst":"10.0.0.4:80","payload_hex":"8185deadbeef"}`
	w = do(t, s, http.MethodPost, "/segments", body)
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Detected != protocol.WebSocket || snap.Master != protocol.HTTP {
		t.Fatalf("expected websocket over http guess: %+v", snap)
	}

	w = do(t, s, http.MethodGet, "/flows", "")
	var flows struct {
		Flows []flow.Snapshot `json:"flows"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &flows); err != nil {
		t.Fatalf("decode flows: %v", err)
	}
	if len(flows.Flows) != 2 {
		t.Fatalf("expected 2 flows, got %+v", flows.Flows)
	}

	w = do(t, s, http.MethodGet, "/flows?src=10.0.0.4:80&dst=10.0.0.3:50000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("flow lookup status %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Detected != protocol.WebSocket || snap.Packets != 1 {
		t.Fatalf("reverse-direction lookup returned %+v", snap)
	}
	if w := do(t, s, http.MethodGet, "/flows?src=10.0.0.9:1&dst=10.0.0.8:2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("untracked flow: expected 404, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/flows?src=bad&dst=10.0.0.8:2", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad lookup: expected 400, got %d", w.Code)
	}
}

func TestSegmentsErrors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.MaxFlows = 1
		c.DeferShortSegments = true
	})
	if w := do(t, s, http.MethodPost, "/segments", `{"src":"nope","dst":"10.0.0.2:80","payload_hex":"8100"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad src: expected 400, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/segments", `{"src":"10.0.0.1:1","dst":"10.0.0.2","payload_hex":"8100"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad dst: expected 400, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/segments", `{"src":"10.0.0.1:1","dst":"10.0.0.2:2","payload_hex":"81"}`); w.Code != http.StatusOK {
		t.Fatalf("first flow: expected 200, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/segments", `{"src":"10.0.0.5:1","dst":"10.0.0.6:2","payload_hex":"8100"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("full table: expected 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodPost, "/segments", `{"src":"10.9.0.1:1","dst":"10.9.0.2:2","payload_hex":"8300"}`)
	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "wsdpi_dissector_verdicts_total") {
		t.Fatalf("metrics missing verdict counter: %d", w.Code)
	}
}
