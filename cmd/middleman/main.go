// Command middleman drives web pages through declarative HTML patterns:
// match, autofill, autoclick, and convert terminal pages to records.
//
// Usage:
//
//	middleman                  start the HTTP session server
//	middleman server           same, explicit
//	middleman list             list loaded patterns
//	middleman distill <url>    one-shot match against a URL
//	middleman run <url>        interactive loop, prompting for fields
//	middleman inspect <id>     open a session profile in a headful browser
//	middleman mcp              serve the MCP tools over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/middleman/automate"
	"github.com/hazyhaar/middleman/browser"
	"github.com/hazyhaar/middleman/config"
	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/idgen"
	"github.com/hazyhaar/middleman/journal"
	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/prompt"
	"github.com/hazyhaar/middleman/session"
	"github.com/hazyhaar/middleman/web"
)

const version = "0.3.0"

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadFile(env("MIDDLEMAN_CONFIG", "middleman.yaml"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
		cfg.Port = p
	}

	args := os.Args[1:]
	cmd := "server"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "server":
		err = cmdServer(ctx, cfg)
	case "list":
		err = cmdList(cfg)
	case "distill":
		err = cmdDistill(ctx, cfg, args)
	case "run":
		err = cmdRun(ctx, cfg, args)
	case "inspect":
		err = cmdInspect(ctx, cfg, args)
	case "mcp":
		err = cmdMCP(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd, "error", err)
		os.Exit(1)
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadTemplates(cfg *config.Config) ([]*pattern.Template, error) {
	templates, err := pattern.Load(cfg.PatternsDir)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		slog.Warn("no patterns loaded", "dir", cfg.PatternsDir)
	}
	return templates, nil
}

func newManager(cfg *config.Config, headless bool) *browser.Manager {
	denylist, err := browser.LoadDenylist(cfg.DenylistPath, slog.Default())
	if err != nil {
		slog.Warn("denylist unavailable", "error", err)
	}
	return browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Headless:    headless,
		ProfileRoot: cfg.Browser.ProfileRoot,
		BlockTypes:  cfg.Browser.BlockTypes,
		Denylist:    denylist,
		NavTimeout:  cfg.Browser.NavTimeout,
	})
}

func openJournal(cfg *config.Config) (*journal.Store, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	return journal.Open(cfg.JournalPath)
}

// --- server ---

func cmdServer(ctx context.Context, cfg *config.Config) error {
	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	store := session.NewStore(cfg.SessionTTL, slog.Default())
	defer store.Close()

	jrnl, err := openJournal(cfg)
	if err != nil {
		return err
	}

	srv := web.NewServer(ctx, &web.Server{
		Templates: templates,
		Manager:   newManager(cfg, cfg.Browser.HeadlessOrDefault()),
		Sessions:  store,
		Logger:    slog.Default(),
		Tick:      cfg.Tick,
		MaxTicks:  cfg.MaxTicks,
	})
	if jrnl != nil {
		srv.Journal = jrnl
		defer jrnl.Close()
	}

	httpSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("server listening", "port", cfg.Port, "patterns", len(templates), "version", version)
	if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- list ---

func cmdList(cfg *config.Config) error {
	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}
	for _, t := range templates {
		fmt.Printf("%-40s priority=%d", t.Name, t.Priority)
		if t.Domain != "" {
			fmt.Printf(" domain=%s", t.Domain)
		}
		fmt.Println()
	}
	return nil
}

// --- distill ---

func cmdDistill(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("distill", flag.ExitOnError)
	host := fs.String("host", "", "override the hostname used for domain gating")
	markdown := fs.Bool("markdown", false, "print the snapshot as markdown instead of HTML")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: middleman distill [-host h] [-markdown] <url>")
	}
	location, hostname, err := resolveLocation(fs.Arg(0), *host)
	if err != nil {
		return err
	}

	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	mgr := newManager(cfg, cfg.Browser.HeadlessOrDefault())
	inst, err := mgr.Launch(ctx, "")
	if err != nil {
		return err
	}
	defer inst.Close()

	page, err := inst.Open(ctx, location)
	if err != nil {
		return err
	}

	m, err := distill.New(slog.Default()).Distill(ctx, hostname, page, templates)
	if errors.Is(err, distill.ErrNoMatch) {
		return fmt.Errorf("no pattern matched %s", location)
	}
	if err != nil {
		return err
	}

	slog.Info("matched", "template", m.Name)
	if *markdown {
		md, err := toMarkdown(m.HTML)
		if err != nil {
			return err
		}
		fmt.Println(md)
	} else {
		fmt.Println(m.HTML)
	}

	if records := distill.Convert(m.Doc, slog.Default()); len(records) > 0 {
		return printJSON(records)
	}
	return nil
}

func toMarkdown(html string) (string, error) {
	conv := converter.NewConverter(converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	))
	return conv.ConvertString(html)
}

// --- run ---

func cmdRun(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: middleman run <url>")
	}
	location, hostname, err := resolveLocation(args[0], "")
	if err != nil {
		return err
	}

	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	jrnl, err := openJournal(cfg)
	if err != nil {
		return err
	}

	profile := idgen.NanoID(6)()
	slog.Info("starting run", "url", location, "profile", profile)

	mgr := newManager(cfg, cfg.Browser.HeadlessOrDefault())
	inst, err := mgr.Launch(ctx, profile)
	if err != nil {
		return err
	}
	defer inst.Close()

	page, err := inst.Open(ctx, location)
	if err != nil {
		return err
	}

	runner := &automate.Runner{
		Distiller: distill.New(slog.Default()),
		Autofill:  &automate.Autofiller{Source: prompt.Interactive{}, Logger: slog.Default()},
		Autoclick: &automate.Autoclicker{Logger: slog.Default()},
		Templates: templates,
		Logger:    slog.Default(),
		SessionID: profile,
		Interval:  cfg.Tick,
		MaxTicks:  cfg.MaxTicks,
	}
	if jrnl != nil {
		runner.Journal = jrnl
		defer jrnl.Close()
	}

	out, err := runner.Run(ctx, hostname, page)
	if err != nil {
		return err
	}
	if !out.Finished {
		slog.Warn("run ended without termination", "ticks", out.Ticks)
		return nil
	}

	slog.Info("run finished", "template", out.Template, "ticks", out.Ticks)
	if len(out.Records) > 0 {
		return printJSON(out.Records)
	}
	fmt.Println(out.Snapshot)
	return nil
}

// --- inspect ---

// cmdInspect reopens a session's Chrome profile headful so an operator
// can look at cookies and storage, or replay a page by hand.
func cmdInspect(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: middleman inspect <profile> [url]")
	}
	profile := args[0]
	location := "about:blank"
	if len(args) == 2 {
		location = args[1]
	}

	mgr := newManager(cfg, false)
	inst, err := mgr.Launch(ctx, profile)
	if err != nil {
		return err
	}
	defer inst.Close()

	if _, err := inst.Open(ctx, location); err != nil {
		return err
	}

	slog.Info("browser open, ctrl-c to quit", "profile", profile)
	<-ctx.Done()
	return nil
}

// --- mcp ---

func cmdMCP(ctx context.Context, cfg *config.Config) error {
	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	store := session.NewStore(cfg.SessionTTL, slog.Default())
	defer store.Close()

	srv := web.NewServer(ctx, &web.Server{
		Templates: templates,
		Manager:   newManager(cfg, true),
		Sessions:  store,
		Logger:    slog.Default(),
		Tick:      cfg.Tick,
		MaxTicks:  cfg.MaxTicks,
	})

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "middleman", Version: version}, nil)
	srv.RegisterMCP(mcpSrv)

	slog.Info("mcp serving on stdio", "patterns", len(templates))
	return mcpSrv.Run(ctx, &mcp.StdioTransport{})
}

// resolveLocation normalizes a command-line target: bare hosts get an
// https scheme so `middleman run npr.org` navigates somewhere real. An
// explicit host override replaces the derived hostname for domain gating.
func resolveLocation(raw, hostOverride string) (location, hostname string, err error) {
	location, hostname, err = web.NormalizeLocation(raw)
	if err != nil {
		return "", "", err
	}
	if hostOverride != "" {
		hostname = hostOverride
	}
	return location, hostname, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
