// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/config"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultWaitTimeout       = 10 * time.Second
	defaultActionTimeout     = 15 * time.Second
)

// Session is one isolated browser (its own profile and tab) driving a single
// test case. Selectors passed to it are XPath expressions.
type Session struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	cfg      *config.Config
	attacher Attacher

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

// NewSession wraps a chromedp context. Elements handed out by the session are
// decorated with screenshot capture when attacher is non-nil.
func NewSession(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, attacher Attacher, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(zap.String("session_id", id)),
		cfg:      cfg,
		attacher: attacher,
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Initialize starts the browser process and attaches to its first tab.
func (s *Session) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The first Run must use the session context itself: a derived context
	// with a deadline would tear the browser down when it expires.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to initialize browser target: %w", err)
	}
	return nil
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

func (s *Session) waitTimeout() time.Duration {
	if s.cfg.Browser.WaitTimeout > 0 {
		return s.cfg.Browser.WaitTimeout
	}
	return defaultWaitTimeout
}

func (s *Session) actionTimeout() time.Duration {
	if s.cfg.Browser.ActionTimeout > 0 {
		return s.cfg.Browser.ActionTimeout
	}
	return defaultActionTimeout
}

// run executes actions against the session's tab, bounded by both ctx and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed() {
		return ErrSessionClosed
	}
	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		opCtx, timeoutCancel = context.WithTimeout(opCtx, timeout)
		defer timeoutCancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL.", zap.String("url", url))

	timeout := s.cfg.Network.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	err := s.run(ctx, timeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation to %s timed out after %s: %w", url, timeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	if wait := s.cfg.Network.PostLoadWait; wait > 0 {
		return s.run(ctx, 0, chromedp.Sleep(wait))
	}
	return nil
}

// WaitVisible blocks until the first element matching xpath is visible.
// ErrElementNotFound is returned when the wait timeout elapses first.
func (s *Session) WaitVisible(ctx context.Context, xpath string) (Element, error) {
	timeout := s.waitTimeout()
	var nodes []*cdp.Node
	err := s.run(ctx, timeout, chromedp.Nodes("("+xpath+")[1]", &nodes, chromedp.BySearch, chromedp.NodeVisible))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s not visible within %s", ErrElementNotFound, xpath, timeout)
		}
		return nil, fmt.Errorf("waiting for %s: %w", xpath, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, xpath)
	}
	return s.wrap(nodes[0], xpath), nil
}

// FindAll returns every element currently matching xpath without waiting
// for any to appear. The result may be empty.
func (s *Session) FindAll(ctx context.Context, xpath string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, s.waitTimeout(), chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("querying %s: %w", xpath, err)
	}
	elements := make([]Element, 0, len(nodes))
	for i, n := range nodes {
		elements = append(elements, s.wrap(n, fmt.Sprintf("(%s)[%d]", xpath, i+1)))
	}
	return elements, nil
}

// Evaluate runs a JavaScript expression and decodes its result into res
// (which may be nil).
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := s.run(ctx, s.actionTimeout(), chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.actionTimeout(), chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("could not read page title: %w", err)
	}
	return title, nil
}

// Screenshot captures the viewport and hands it to the session's attacher.
// Failures are logged and dropped.
func (s *Session) Screenshot(ctx context.Context, label string) {
	if s.attacher == nil {
		return
	}
	var buf []byte
	if err := s.run(ctx, s.actionTimeout(), chromedp.CaptureScreenshot(&buf)); err != nil {
		s.logger.Debug("Screenshot capture failed.", zap.String("label", label), zap.Error(err))
		return
	}
	if err := s.attacher.Attach(label, "image/png", buf); err != nil {
		s.logger.Debug("Screenshot attachment failed.", zap.String("label", label), zap.Error(err))
	}
}

func (s *Session) wrap(node *cdp.Node, label string) Element {
	var el Element = &nodeElement{session: s, node: node, label: label}
	if s.attacher != nil {
		el = WithScreenshots(el, s.Screenshot)
	}
	return el
}

// Close shuts down the browser owned by the session. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing session.")

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.cancel()

	if s.onClose != nil {
		s.onClose()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser session: %w", err)
	}
	return nil
}
