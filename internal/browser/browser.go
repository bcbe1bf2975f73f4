// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
)

var (
	// ErrElementNotFound is returned when an element does not become visible
	// within the configured wait timeout.
	ErrElementNotFound = errors.New("element not found")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("browser session is closed")
)

// Element is a handle to a DOM element on the current page.
type Element interface {
	Click(ctx context.Context) error
	Hover(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	// Submit presses Enter on the element.
	Submit(ctx context.Context) error
	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)
	// Find evaluates a relative XPath expression against the element and
	// returns the first match. ErrElementNotFound is returned when nothing matches.
	Find(ctx context.Context, xpath string) (Element, error)
	String() string
}

// Attacher receives artifacts (screenshots) produced while a session runs.
// Reporters implement it.
type Attacher interface {
	Attach(name, mimeType string, data []byte) error
}
