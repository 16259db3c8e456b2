// Package browser manages Chrome lifecycle for automation sessions:
// launch or remote attach, stealth page creation, request blocking, and
// the live-page query surface the distiller drives.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const defaultNavTimeout = 30 * time.Second

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls local launches; remote attaches ignore it.
	Headless bool

	// ProfileRoot is the directory holding per-session Chrome profiles.
	// Each session gets its own subdirectory so cookies and storage
	// survive across runs without sessions bleeding into each other.
	ProfileRoot string

	// BlockTypes lists resource types to drop (media, font, image, ...).
	BlockTypes []string

	// Denylist holds URL substrings whose requests are dropped.
	Denylist []string

	// NavTimeout bounds navigation plus initial load. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = defaultNavTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager launches browsers. One Instance per session: sessions never
// share a Chrome process or a profile.
type Manager struct {
	cfg Config
}

// NewManager creates a browser Manager.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Instance is one running Chrome tied to one session profile.
type Instance struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	cfg     Config
}

// Launch starts Chrome with the given profile (or attaches to the
// configured remote instance) and returns the handle.
func (m *Manager) Launch(ctx context.Context, profile string) (*Instance, error) {
	log := m.cfg.Logger

	var wsURL string
	var lnch *launcher.Launcher

	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if m.cfg.ProfileRoot != "" && profile != "" {
			l = l.UserDataDir(filepath.Join(m.cfg.ProfileRoot, profile))
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		lnch = l
		log.Info("browser: launched local chrome",
			"profile", profile, "headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	return &Instance{browser: b, lnch: lnch, cfg: m.cfg}, nil
}

// Open creates a stealth page, applies request blocking, navigates, and
// waits for the initial load. Load timeouts are only warnings: a slow
// page still gets polled afterwards.
func (i *Instance) Open(ctx context.Context, pageURL string) (*Page, error) {
	log := i.cfg.Logger

	page, err := stealth.Page(i.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if len(i.cfg.BlockTypes) > 0 || len(i.cfg.Denylist) > 0 {
		applyBlocking(page, i.cfg.BlockTypes, i.cfg.Denylist, log)
	}

	navCtx, cancel := context.WithTimeout(ctx, i.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Page{page: page, log: log}, nil
}

// Close shuts down Chrome and cleans the launcher's temp state. The
// profile directory is kept.
func (i *Instance) Close() error {
	if i.browser != nil {
		i.browser.Close()
		i.browser = nil
	}
	if i.lnch != nil {
		i.lnch.Cleanup()
		i.lnch = nil
	}
	return nil
}

// applyBlocking intercepts requests and drops blocked resource types and
// denylisted URLs.
func applyBlocking(page *rod.Page, types, denylist []string, log *slog.Logger) {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[normalizeType(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if blockSet[normalizeType(string(ctx.Request.Type()))] {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		url := ctx.Request.URL().String()
		for _, frag := range denylist {
			if frag != "" && containsFold(url, frag) {
				log.Debug("browser: denylisted request", "url", url)
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}
