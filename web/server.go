// Package web exposes the session surface over HTTP: start an
// automation run against a URL, then drive it with form submissions
// until the page terminates. The same server carries the MCP tools.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/middleman/automate"
	"github.com/hazyhaar/middleman/browser"
	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/session"
)

// linkTimeout bounds one form-driven round, which itself runs several
// polling ticks.
const linkTimeout = 2 * time.Minute

// Server drives browser sessions from HTTP requests.
type Server struct {
	Templates []*pattern.Template
	Manager   *browser.Manager
	Sessions  *session.Store
	Journal   automate.Recorder
	Logger    *slog.Logger

	Tick     time.Duration
	MaxTicks int

	// base outlives individual requests: the browsers launched for a
	// session must not die with the request that created them.
	base context.Context
}

// NewServer wires the session surface. ctx bounds the lifetime of every
// browser the server launches.
func NewServer(ctx context.Context, s *Server) *Server {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.base = ctx
	return s
}

// Routes builds the HTTP router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Get("/start", s.handleStart)
	r.Post("/link/{id}", s.handleLink)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.Sessions.Len(),
		"patterns": len(s.Templates),
	})
}

// handleIndex lists the loaded templates, how to start a session, and a
// catalog of ready-made starting points: one /start link per domain the
// pattern library declares.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder
	b.WriteString("<h1>middleman</h1>\n<p>Start a session: <code>GET /start?location=&lt;url&gt;</code></p>\n")

	if examples := catalogDomains(s.Templates); len(examples) > 0 {
		b.WriteString("<h2>Examples</h2>\n<ul>\n")
		for _, domain := range examples {
			fmt.Fprintf(&b, "<li><a href=\"/start?location=%s\">%s</a></li>\n",
				url.QueryEscape("https://"+domain), domain)
		}
		b.WriteString("</ul>\n")
	}

	b.WriteString("<h2>Loaded patterns</h2>\n<ul>\n")
	for _, t := range s.Templates {
		fmt.Fprintf(&b, "<li><code>%s</code> (priority %d", t.Name, t.Priority)
		if t.Domain != "" {
			fmt.Fprintf(&b, ", domain %s", t.Domain)
		}
		b.WriteString(")</li>\n")
	}
	b.WriteString("</ul>\n")
	writeHTML(w, http.StatusOK, Shell("middleman", b.String()))
}

// catalogDomains collects the distinct domains the templates declare, in
// discovery order.
func catalogDomains(templates []*pattern.Template) []string {
	var domains []string
	seen := map[string]bool{}
	for _, t := range templates {
		if t.Domain == "" || seen[t.Domain] {
			continue
		}
		seen[t.Domain] = true
		domains = append(domains, t.Domain)
	}
	return domains
}

// handleStart launches a session for ?location= and returns a page that
// immediately POSTs to the session link, kicking off the first round
// without any field values.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	location, hostname, err := NormalizeLocation(r.URL.Query().Get("location"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := s.Sessions.Create(s.base, s.Manager, location, hostname)
	if err != nil {
		s.Logger.Error("web: session create failed", "location", location, "error", err)
		http.Error(w, "could not start browser session", http.StatusServiceUnavailable)
		return
	}

	writeHTML(w, http.StatusOK, Trampoline(sess.ID))
}

// handleLink runs one form-driven round for the session: fill what the
// submitted values satisfy, click what can be clicked, and either return
// the converted records, re-render the form, or report a stall.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.Sessions.Lookup(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form data", http.StatusBadRequest)
		return
	}
	values := automate.FormValues{}
	for k := range r.PostForm {
		values[k] = r.PostForm.Get(k)
	}

	ctx, cancel := context.WithTimeout(r.Context(), linkTimeout)
	defer cancel()

	res, err := s.runner(id).RunForm(ctx, sess.Hostname, sess.Page, values)
	if err != nil {
		s.Logger.Error("web: round failed", "session", id, "error", err)
		http.Error(w, "automation round failed", http.StatusInternalServerError)
		return
	}

	switch {
	case res.Done:
		s.Sessions.Evict(id)
		writeJSON(w, http.StatusOK, map[string]any{
			"session":  id,
			"template": res.Template,
			"records":  res.Records,
		})
	case res.NeedsInput:
		html, err := pattern.Serialize(res.Doc)
		if err != nil {
			s.Logger.Error("web: serialize snapshot", "session", id, "error", err)
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		writeHTML(w, http.StatusOK, Form(id, Sanitize(html)))
	default:
		retry := fmt.Sprintf(`<h1>Session stalled</h1>
<p>No template matched before the iteration cap.</p>
<form method="post" action="/link/%s"><button type="submit">Try again</button></form>`, id)
		writeHTML(w, http.StatusServiceUnavailable, Shell("stalled", retry))
	}
}

func (s *Server) runner(sessionID string) *automate.Runner {
	return &automate.Runner{
		Distiller: distill.New(s.Logger),
		Autofill:  &automate.Autofiller{Source: automate.FormValues{}, Logger: s.Logger},
		Autoclick: &automate.Autoclicker{Logger: s.Logger},
		Templates: s.Templates,
		Logger:    s.Logger,
		SessionID: sessionID,
		Journal:   s.Journal,
		Interval:  s.Tick,
		MaxTicks:  s.MaxTicks,
	}
}

// NormalizeLocation defaults a bare host to https and extracts the
// hostname used for domain gating.
func NormalizeLocation(raw string) (location, hostname string, err error) {
	location = strings.TrimSpace(raw)
	if location == "" {
		return "", "", fmt.Errorf("missing location")
	}
	if !strings.Contains(location, "://") {
		location = "https://" + location
	}
	u, err := url.Parse(location)
	if err != nil || u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid location %q", raw)
	}
	return location, u.Hostname(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
