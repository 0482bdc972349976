// Package browser owns the Chrome process and the tab sessions carved out of
// it. A Session implements schemas.Driver, the capability set the resolver
// and engine are written against.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/observability"
)

const (
	sessionStartTimeout = 30 * time.Second
	shutdownGracePeriod = 15 * time.Second
)

// Manager handles the browser process lifecycle and session creation.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex
	wg       sync.WaitGroup // Tracks open sessions so shutdown can wait for them.

	initOnce sync.Once
}

// NewManager creates a browser manager. The Chrome process launches lazily
// when the first session is requested.
func NewManager(cfg config.BrowserConfig) *Manager {
	m := &Manager{
		cfg:      cfg,
		logger:   observability.GetLogger().Named("browser_manager"),
		sessions: make(map[string]*Session),
	}
	m.logger.Info("Browser manager created (launch deferred).")
	return m
}

// initialize builds the exec allocator on first use. Launch failures surface
// on the first session's startup run, not here.
func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		opts := DefaultAllocatorOptions(m.cfg)
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("Browser allocator initialized.",
			zap.Bool("headless", m.cfg.Headless),
			zap.Int("window_width", m.cfg.WindowWidth),
			zap.Int("window_height", m.cfg.WindowHeight))
	})
}

// NewSession opens a fresh tab and returns it as a driver. The caller owns
// the session and must Close it.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	s := newSession(tabCtx, tabCancel, m.cfg, m.logger)

	m.wg.Add(1)
	s.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, s.ID())
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", s.ID()))
	}

	// Force target creation now so a broken Chrome install fails loudly here
	// instead of on the first navigation.
	startCtx, startCancel := context.WithTimeout(tabCtx, sessionStartTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("New browser session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown gracefully closes all sessions and the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Info("Manager never launched a browser, nothing to shut down.")
		return nil
	}

	m.mu.Lock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.Unlock()

	for _, s := range sessionsToClose {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error closing session during shutdown.",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close, proceeding with forceful shutdown.",
			zap.Error(ctx.Err()))
	}

	// chromedp.Cancel blocks until the browser process exits, so fence it
	// with the grace period.
	cancelDone := make(chan error, 1)
	go func() {
		cancelDone <- chromedp.Cancel(m.allocCtx)
	}()
	select {
	case err := <-cancelDone:
		if err != nil {
			m.logger.Warn("Error during browser process shutdown.", zap.Error(err))
		}
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Browser process shutdown timed out, killing allocator.")
	}

	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}

// DefaultAllocatorOptions maps the browser configuration onto chromedp exec
// allocator options. Defined explicitly rather than relying on
// chromedp.DefaultExecAllocatorOptions so the flag set is visible and
// testable.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("enable-automation", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.DisableCache {
		opts = append(opts,
			chromedp.Flag("disable-cache", true),
			chromedp.Flag("disk-cache-size", 0),
			chromedp.Flag("media-cache-size", 0))
	}

	// Extra flags from config, both --key=value and boolean --key forms.
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if key == "" {
			continue
		}
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}
