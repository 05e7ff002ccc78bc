package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rirtools/whois-mcp/internal/config"
	"github.com/rirtools/whois-mcp/internal/engine"
)

func testConfig() config.Config {
	return config.Config{
		SupportRIPE:    true,
		SupportARIN:    true,
		SupportAPNIC:   true,
		SupportAFRINIC: true,
		SupportLACNIC:  true,
		CacheMaxItems:  16,
		CacheTTL:       time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	e := engine.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewServer(e, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// post sends one JSON-RPC message over the HTTP transport and decodes
// the response body.
func post(t *testing.T, ts *httptest.Server, body string) (*http.Response, *jsonrpcResponse) {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode == http.StatusAccepted {
		return resp, nil
	}
	var rpc jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, &rpc
}

func TestInitializeMintsSession(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, rpc := post(t, ts, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(sessionHeader) == "" {
		t.Fatal("initialize did not mint a session ID")
	}
	res, ok := rpc.Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T", rpc.Result)
	}
	if res["protocolVersion"] != protocolVersion {
		t.Fatalf("protocolVersion = %v", res["protocolVersion"])
	}
}

func TestNotificationGetsNoBody(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, rpc := post(t, ts, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp.StatusCode != http.StatusAccepted || rpc != nil {
		t.Fatalf("status = %d, rpc = %v; want 202 with empty body", resp.StatusCode, rpc)
	}
}

func TestRejectsWrongJSONRPCVersion(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, rpc := post(t, ts, `{"jsonrpc":"1.0","id":1,"method":"ping"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", resp.StatusCode)
	}
	if rpc.Error == nil || rpc.Error.Code != codeInvalidRequest {
		t.Fatalf("error = %+v", rpc.Error)
	}
}

func toolNames(t *testing.T, rpc *jsonrpcResponse) map[string]bool {
	t.Helper()
	res, ok := rpc.Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T", rpc.Result)
	}
	tools, ok := res["tools"].([]any)
	if !ok {
		t.Fatalf("tools = %T", res["tools"])
	}
	names := make(map[string]bool, len(tools))
	for _, raw := range tools {
		tool := raw.(map[string]any)
		name := tool["name"].(string)
		if names[name] {
			t.Fatalf("duplicate tool name %q", name)
		}
		names[name] = true
	}
	return names
}

func TestToolsListWithAllRegistries(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	names := toolNames(t, rpc)

	for _, want := range []string{
		"whois_query", "expand_as_set", "validate_route_object", "contact_card", "ip_to_asn",
		"ripe_whois_query", "lacnic_whois_query", "arin_contact_card",
		"ripe_expand_as_set", "arin_validate_route_object",
	} {
		if !names[want] {
			t.Errorf("tool %q missing", want)
		}
	}
	// Variants gated on structured-API capability.
	for _, absent := range []string{
		"apnic_expand_as_set", "lacnic_expand_as_set",
		"afrinic_validate_route_object", "lacnic_validate_route_object",
	} {
		if names[absent] {
			t.Errorf("tool %q registered despite missing registry capability", absent)
		}
	}
}

func TestToolsListSingleRegistryHasNoVariants(t *testing.T) {
	cfg := testConfig()
	cfg.SupportARIN = false
	cfg.SupportAPNIC = false
	cfg.SupportAFRINIC = false
	cfg.SupportLACNIC = false
	s := newTestServer(t, cfg)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	names := toolNames(t, rpc)
	if len(names) != 5 {
		t.Fatalf("%d tools with one registry enabled; want the 5 canonical ones: %v", len(names), names)
	}
	if names["ripe_whois_query"] {
		t.Fatal("prefixed variant registered with a single registry enabled")
	}
}

// callErrorBody extracts the {"ok":false,...} envelope from a failed
// tools/call result.
func callErrorBody(t *testing.T, rpc *jsonrpcResponse) map[string]any {
	t.Helper()
	res, ok := rpc.Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T (rpc error: %+v)", rpc.Result, rpc.Error)
	}
	if res["isError"] != true {
		t.Fatalf("isError = %v; want true", res["isError"])
	}
	blocks := res["content"].([]any)
	text := blocks[0].(map[string]any)["text"].(string)
	var body map[string]any
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("content text is not JSON: %v", err)
	}
	if body["ok"] != false {
		t.Fatalf("ok = %v; want false", body["ok"])
	}
	return body
}

func TestCallToolDisabledRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.SupportAFRINIC = false
	s := newTestServer(t, cfg)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":4,"method":"tools/call",`+
		`"params":{"name":"whois_query","arguments":{"target":"AS64496","registry":"AFRINIC"}}}`)
	body := callErrorBody(t, rpc)
	if body["error"] != "registry_disabled" {
		t.Fatalf("error = %v; want registry_disabled", body["error"])
	}
}

func TestCallToolBadRequest(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":5,"method":"tools/call",`+
		`"params":{"name":"expand_as_set","arguments":{"name":"AS64496"}}}`)
	body := callErrorBody(t, rpc)
	if body["error"] != "bad_request" {
		t.Fatalf("error = %v; want bad_request", body["error"])
	}
}

func TestCallToolUnsupportedKind(t *testing.T) {
	cfg := testConfig()
	cfg.SupportRIPE = false
	cfg.SupportARIN = false
	cfg.SupportAPNIC = false
	cfg.SupportAFRINIC = false
	s := newTestServer(t, cfg) // LACNIC only: no structured AS-set API
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":6,"method":"tools/call",`+
		`"params":{"name":"expand_as_set","arguments":{"name":"AS-EXAMPLE"}}}`)
	body := callErrorBody(t, rpc)
	if body["error"] != "unsupported" {
		t.Fatalf("error = %v; want unsupported", body["error"])
	}
}

func TestCallUnknownTool(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":7,"method":"tools/call",`+
		`"params":{"name":"no_such_tool","arguments":{}}}`)
	if rpc.Error == nil || rpc.Error.Code != codeInvalidParams {
		t.Fatalf("error = %+v; want invalid params", rpc.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, rpc := post(t, ts, `{"jsonrpc":"2.0","id":8,"method":"resources/list"}`)
	if rpc.Error == nil || rpc.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v; want method not found", rpc.Error)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

// --- stdio transport ---

func TestStdioRoundTrip(t *testing.T) {
	s := newTestServer(t, testConfig())

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := s.RunStdio(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("RunStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// The notification produces no output line.
	if len(lines) != 3 {
		t.Fatalf("%d response lines; want 3: %q", len(lines), out.String())
	}
	for i, line := range lines {
		var rpc jsonrpcResponse
		if err := json.Unmarshal([]byte(line), &rpc); err != nil {
			t.Fatalf("line %d is not JSON-RPC: %v", i, err)
		}
		if rpc.Error != nil {
			t.Fatalf("line %d carries an error: %+v", i, rpc.Error)
		}
	}
	var last jsonrpcResponse
	_ = json.Unmarshal([]byte(lines[2]), &last)
	if _, ok := last.Result.(map[string]any)["tools"]; !ok {
		t.Fatalf("final response is not a tools/list result: %v", last.Result)
	}
}

func TestStdioParseError(t *testing.T) {
	s := newTestServer(t, testConfig())

	var out bytes.Buffer
	if err := s.RunStdio(context.Background(), strings.NewReader("{not json}\n"), &out); err != nil {
		t.Fatalf("RunStdio: %v", err)
	}
	var rpc jsonrpcResponse
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &rpc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rpc.Error == nil || rpc.Error.Code != codeParseError {
		t.Fatalf("error = %+v; want parse error", rpc.Error)
	}
}
