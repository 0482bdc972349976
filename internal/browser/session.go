package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
	"github.com/hiroksarker/testgenius-ai-sub000/internal/config"
)

// Session represents an active browser tab and implements schemas.Driver.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.Driver = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:     sessionID,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session").With(zap.String("session_id", sessionID)),
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Close terminates the tab gracefully. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	// chromedp.Cancel closes the target cleanly but blocks until it does.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(s.ctx)
	}()
	select {
	case err := <-done:
		if err != nil {
			s.logger.Debug("Graceful tab close reported an error.", zap.Error(err))
		}
	case <-ctx.Done():
		s.logger.Warn("Timed out closing tab gracefully, cancelling outright.")
	}

	s.cancel()
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// run executes chromedp actions under both the session lifetime and the
// caller's context, with an optional per-operation timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, timeout)
		defer tcancel()
	}

	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the URL and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	// Stabilization runs under the overall operation context, not the
	// navigation deadline.
	if err := s.stabilize(opCtx); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Warn("Page stabilization failed after navigation (non-critical).", zap.Error(err))
	}
	return nil
}

// stabilize waits for the DOM to become ready, then sits out the configured
// post-load window so late scripts can finish rendering.
func (s *Session) stabilize(ctx context.Context) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	if s.cfg.PostLoadWait > 0 {
		if err := chromedp.Run(stabCtx, chromedp.Sleep(s.cfg.PostLoadWait)); err != nil {
			return err
		}
	}
	return nil
}

// Refresh reloads the current page and waits for it to settle.
func (s *Session) Refresh(ctx context.Context) error {
	s.logger.Debug("Refreshing page.")

	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("page refresh failed: %w", err)
	}
	return s.stabilize(opCtx)
}

// Query resolves a selector to an element handle. The selector may be a CSS
// selector, an XPath expression, or plain text; absence is reported through
// the found flag, not an error.
func (s *Session) Query(ctx context.Context, selector string) (*schemas.Element, bool, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.OperationTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return nil, false, fmt.Errorf("query %q failed: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}

	node := nodes[0]
	return &schemas.Element{
		Selector:      selector,
		NodeID:        int64(node.NodeID),
		BackendNodeID: int64(node.BackendNodeID),
	}, true, nil
}

// URL returns the current page location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, s.cfg.OperationTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("could not read page location: %w", err)
	}
	return url, nil
}

// Title returns the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.cfg.OperationTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("could not read page title: %w", err)
	}
	return title, nil
}

// PageSource returns the full rendered document markup.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var content string
	err := s.run(ctx, s.cfg.OperationTimeout,
		chromedp.OuterHTML("html", &content, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("could not capture page source: %w", err)
	}
	return content, nil
}

// ExecuteScript evaluates a snippet in the page and optionally unmarshals
// the result.
func (s *Session) ExecuteScript(ctx context.Context, script string, result any) error {
	return s.run(ctx, s.cfg.OperationTimeout, chromedp.Evaluate(script, result))
}

// Screenshot captures the full page as PNG-encoded bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.cfg.OperationTimeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Pause blocks for the duration while staying responsive to cancellation.
func (s *Session) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.run(ctx, 0, chromedp.Sleep(d))
}

// combineContext derives a context from the session context (which carries
// the CDP target) that is additionally canceled when the caller's context
// ends.
func combineContext(sessionCtx, callCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(sessionCtx)

	go func() {
		select {
		case <-callCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
