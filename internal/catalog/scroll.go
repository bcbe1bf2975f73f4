// internal/catalog/scroll.go
package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// ScrollByScript scrolls the window vertically by the given pixel count.
	ScrollByScript = "window.scrollBy(0, %d);"
	// MetricsScript reports the scroll offset, viewport height and document height.
	MetricsScript = `({
  offset: window.pageYOffset,
  viewport: window.innerHeight,
  height: Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)
})`
)

// ScrollMetrics is the decoded result of MetricsScript.
type ScrollMetrics struct {
	Offset   float64 `json:"offset"`
	Viewport float64 `json:"viewport"`
	Height   float64 `json:"height"`
}

func (m ScrollMetrics) atBottom() bool { return m.Offset+m.Viewport >= m.Height }
func (m ScrollMetrics) atTop() bool    { return m.Offset <= 0 }

func (w *Workflow) metrics(ctx context.Context) (ScrollMetrics, error) {
	var m ScrollMetrics
	if err := w.page.Evaluate(ctx, MetricsScript, &m); err != nil {
		return m, fmt.Errorf("failed to read scroll position: %w", err)
	}
	return m, nil
}

// scrollDown steps towards the bottom until it is reached or the step cap
// runs out. The cap bounds pages that keep appending content.
func (w *Workflow) scrollDown(ctx context.Context) error {
	for step := 1; step <= w.scroll.DownMaxSteps; step++ {
		m, err := w.scrollStep(ctx, w.scroll.DownStep, w.scroll.DownPause, fmt.Sprintf("Scroll down: step %d", step))
		if err != nil {
			return err
		}
		if m.atBottom() {
			w.logger.Debug("Reached bottom of listing.", zap.Int("steps", step), zap.Float64("height", m.Height))
			return nil
		}
	}
	w.logger.Warn("Scroll step cap reached before the bottom of the listing.", zap.Int("max_steps", w.scroll.DownMaxSteps))
	return nil
}

func (w *Workflow) scrollUp(ctx context.Context) error {
	for step := 1; step <= w.scroll.UpMaxSteps; step++ {
		m, err := w.scrollStep(ctx, -w.scroll.UpStep, w.scroll.UpPause, fmt.Sprintf("Scroll up: step %d", step))
		if err != nil {
			return err
		}
		if m.atTop() {
			w.logger.Debug("Reached top of listing.", zap.Int("steps", step))
			return nil
		}
	}
	w.logger.Warn("Scroll step cap reached before the top of the listing.", zap.Int("max_steps", w.scroll.UpMaxSteps))
	return nil
}

func (w *Workflow) scrollStep(ctx context.Context, dy int, pause time.Duration, label string) (ScrollMetrics, error) {
	if err := w.page.Evaluate(ctx, fmt.Sprintf(ScrollByScript, dy), nil); err != nil {
		return ScrollMetrics{}, fmt.Errorf("failed to scroll: %w", err)
	}
	if err := sleep(ctx, pause); err != nil {
		return ScrollMetrics{}, err
	}
	w.page.Screenshot(ctx, label)
	return w.metrics(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
