// internal/browser/screenshot.go
package browser

import "context"

// ShootFunc captures a screenshot under the given label.
type ShootFunc func(ctx context.Context, label string)

// screenshotElement delegates every interaction to the wrapped element and
// captures the page the interaction produced.
type screenshotElement struct {
	Element
	shoot ShootFunc
}

// WithScreenshots decorates el so that Click, Hover, SendKeys and Submit each
// attach a screenshot labelled "Action: <name>" once they succeed. A failed
// action is left to the caller's error capture. Reads (Text, Find) are not
// captured.
func WithScreenshots(el Element, shoot ShootFunc) Element {
	if shoot == nil {
		return el
	}
	return &screenshotElement{Element: el, shoot: shoot}
}

func (e *screenshotElement) after(ctx context.Context, action string, err error) error {
	if err == nil {
		e.shoot(ctx, "Action: "+action)
	}
	return err
}

func (e *screenshotElement) Click(ctx context.Context) error {
	return e.after(ctx, "click", e.Element.Click(ctx))
}

func (e *screenshotElement) Hover(ctx context.Context) error {
	return e.after(ctx, "hover", e.Element.Hover(ctx))
}

func (e *screenshotElement) SendKeys(ctx context.Context, text string) error {
	return e.after(ctx, "sendKeys", e.Element.SendKeys(ctx, text))
}

func (e *screenshotElement) Submit(ctx context.Context) error {
	return e.after(ctx, "submit", e.Element.Submit(ctx))
}
