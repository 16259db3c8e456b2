package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/session"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func testTemplate(t *testing.T, name, body string) *pattern.Template {
	t.Helper()
	tmpl, err := pattern.Parse(name, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return tmpl
}

func testServer(t *testing.T, templates ...*pattern.Template) *Server {
	t.Helper()
	store := session.NewStore(time.Minute, discard())
	t.Cleanup(store.Close)
	return NewServer(context.Background(), &Server{
		Templates: templates,
		Sessions:  store,
		Logger:    discard(),
	})
}

// --- HTTP ---

func TestHealth(t *testing.T) {
	s := testServer(t, testTemplate(t, "a.html", `<html gg-priority="1"><body></body></html>`))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		Patterns int    `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Patterns != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestIndexListsPatterns(t *testing.T) {
	s := testServer(t,
		testTemplate(t, "login.html", `<html gg-domain="example.com"><body></body></html>`))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "login.html") {
		t.Error("index missing template name")
	}
	if !strings.Contains(body, "example.com") {
		t.Error("index missing domain gate")
	}
}

func TestIndexExampleCatalog(t *testing.T) {
	s := testServer(t,
		testTemplate(t, "login.html", `<html gg-domain="example.com"><body></body></html>`),
		testTemplate(t, "signup.html", `<html gg-domain="example.com"><body></body></html>`),
		testTemplate(t, "news.html", `<html gg-domain="npr.org"><body></body></html>`),
		testTemplate(t, "generic.html", `<html><body></body></html>`))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	for _, domain := range []string{"example.com", "npr.org"} {
		link := `/start?location=` + url.QueryEscape("https://"+domain)
		if !strings.Contains(body, link) {
			t.Errorf("index missing catalog link for %s", domain)
		}
	}
	if strings.Count(body, url.QueryEscape("https://example.com")) != 1 {
		t.Error("duplicate catalog entry for example.com")
	}
}

func TestStartRejectsBadLocation(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/start", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLinkUnknownSession(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/link/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		in       string
		location string
		hostname string
		wantErr  bool
	}{
		{"example.com/login", "https://example.com/login", "example.com", false},
		{"http://localhost:3000/x", "http://localhost:3000/x", "localhost", false},
		{"  example.org  ", "https://example.org", "example.org", false},
		{"", "", "", true},
		{"https://", "", "", true},
	}
	for _, tt := range tests {
		location, hostname, err := NormalizeLocation(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeLocation(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeLocation(%q): %v", tt.in, err)
			continue
		}
		if location != tt.location || hostname != tt.hostname {
			t.Errorf("NormalizeLocation(%q) = %q, %q", tt.in, location, hostname)
		}
	}
}

// --- rendering ---

func TestSanitizeStripsScripts(t *testing.T) {
	dirty := `<form><input type="text" name="user" placeholder="User"><script>alert(1)</script><button type="submit">Go</button></form>`
	clean := Sanitize(dirty)

	if strings.Contains(clean, "script") || strings.Contains(clean, "alert") {
		t.Errorf("script survived: %q", clean)
	}
	for _, keep := range []string{"<form", "input", `name="user"`, `placeholder="User"`, "button"} {
		if !strings.Contains(clean, keep) {
			t.Errorf("sanitize removed %q: %q", keep, clean)
		}
	}
}

func TestSanitizeStripsEventHandlers(t *testing.T) {
	clean := Sanitize(`<input type="text" name="x" onfocus="steal()">`)
	if strings.Contains(clean, "onfocus") {
		t.Errorf("event handler survived: %q", clean)
	}
}

func TestTrampolinePostsToLink(t *testing.T) {
	page := Trampoline("abc123")
	if !strings.Contains(page, `action="/link/abc123"`) {
		t.Error("trampoline does not target the session link")
	}
	if !strings.Contains(page, "submit()") {
		t.Error("trampoline does not auto-submit")
	}
}

// --- MCP ---

var testMCPImpl = &mcp.Implementation{Name: "middleman-test", Version: "0.1.0"}

func mcpSession(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	sess, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestMCP_ListPatterns(t *testing.T) {
	s := testServer(t,
		testTemplate(t, "login.html", `<html gg-priority="2" gg-domain="example.com"><body></body></html>`),
		testTemplate(t, "done.html", `<html><body></body></html>`))
	sess := mcpSession(t, s)

	result, err := sess.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "middleman_list_patterns",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}

	var resp struct {
		Patterns []struct {
			Name     string `json:"name"`
			Priority int    `json:"priority"`
			Domain   string `json:"domain"`
		} `json:"patterns"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Patterns) != 2 {
		t.Fatalf("got %d patterns", len(resp.Patterns))
	}
	if resp.Patterns[0].Name != "login.html" || resp.Patterns[0].Priority != 2 || resp.Patterns[0].Domain != "example.com" {
		t.Errorf("first = %+v", resp.Patterns[0])
	}
	if resp.Patterns[1].Priority != pattern.DefaultPriority {
		t.Errorf("undeclared priority = %d", resp.Patterns[1].Priority)
	}
}
