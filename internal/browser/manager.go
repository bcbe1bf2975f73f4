// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/config"
)

const sessionCloseTimeout = 10 * time.Second

// Manager owns the Chrome exec allocator and hands out one isolated browser
// per session.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewManager prepares the allocator. No browser starts until NewSession.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Manager {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg.Browser)...)
	m := &Manager{
		cfg:         cfg,
		logger:      logger.Named("browser_manager"),
		allocCtx:    allocCtx,
		allocCancel: cancel,
		sessions:    make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created.", zap.Bool("headless", cfg.Browser.Headless))
	return m
}

func (m *Manager) contextOptions() []chromedp.ContextOption {
	// chromedp reports unknown CDP events as errors; keep them at debug level.
	sugar := m.logger.Named("chromedp").Sugar()
	opts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	}
	if m.cfg.Browser.Debug {
		opts = append(opts, chromedp.WithDebugf(sugar.Debugf))
	}
	return opts
}

// NewSession launches a fresh browser and returns a session bound to it.
// Screenshots go to attacher; pass nil to disable them.
func (m *Manager) NewSession(ctx context.Context, attacher Attacher) (*Session, error) {
	if err := m.allocCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser manager is shut down: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(m.allocCtx, m.contextOptions()...)
	session := NewSession(tabCtx, cancel, m.cfg, attacher, m.logger)

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, session.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	if err := session.Initialize(ctx); err != nil {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
		defer cleanupCancel()
		_ = session.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New browser session started.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes every open session and then the allocator.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Error closing session during shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for sessions to close: %w", ctx.Err())
	}
	m.allocCancel()
	m.logger.Debug("Browser manager shut down.")
	return err
}
