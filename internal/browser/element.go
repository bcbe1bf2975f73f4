// internal/browser/element.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

const (
	textJS = `function() { return (this.innerText || this.textContent || "").trim(); }`
	findJS = `function(xpath) {
	return document.evaluate(xpath, this, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
}`
)

// nodeElement addresses a DOM node by its CDP node id.
type nodeElement struct {
	session *Session
	node    *cdp.Node
	label   string
}

func (e *nodeElement) String() string { return e.label }

func (e *nodeElement) do(ctx context.Context, action string, a chromedp.Action) error {
	e.session.logger.Debug("Element action.", zap.String("action", action), zap.String("element", e.label))
	if err := e.session.run(ctx, e.session.actionTimeout(), a); err != nil {
		return fmt.Errorf("%s on %s failed: %w", action, e.label, err)
	}
	return nil
}

func (e *nodeElement) Click(ctx context.Context) error {
	return e.do(ctx, "click", chromedp.MouseClickNode(e.node))
}

// Hover moves the mouse pointer to the centre of the element.
func (e *nodeElement) Hover(ctx context.Context) error {
	return e.do(ctx, "hover", chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx); err != nil {
			return err
		}
		quads, err := dom.GetContentQuads().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		x, y, err := quadCenter(quads)
		if err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func (e *nodeElement) SendKeys(ctx context.Context, text string) error {
	return e.do(ctx, "send keys", chromedp.KeyEventNode(e.node, text))
}

func (e *nodeElement) Submit(ctx context.Context) error {
	return e.do(ctx, "submit", chromedp.KeyEventNode(e.node, kb.Enter))
}

func (e *nodeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.run(ctx, e.session.actionTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, e.node.NodeID, textJS, &text)
	}))
	if err != nil {
		return "", fmt.Errorf("reading text of %s failed: %w", e.label, err)
	}
	return text, nil
}

func (e *nodeElement) Find(ctx context.Context, xpath string) (Element, error) {
	var found cdp.NodeID
	err := e.session.run(ctx, e.session.actionTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		var obj *runtime.RemoteObject
		if err := callOnNode(ctx, e.node.NodeID, findJS, &obj, xpath); err != nil {
			return err
		}
		if obj == nil || obj.ObjectID == "" {
			return nil
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		id, err := dom.RequestNode(obj.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		found = id
		return nil
	}))
	label := e.label + " " + xpath
	if err != nil {
		return nil, fmt.Errorf("looking up %s failed: %w", label, err)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, label)
	}
	return e.session.wrap(&cdp.Node{NodeID: found}, label), nil
}

// callOnNode calls a JavaScript function with `this` bound to the node.
func callOnNode(ctx context.Context, id cdp.NodeID, fn string, res interface{}, args ...interface{}) error {
	obj, err := dom.ResolveNode().WithNodeID(id).Do(ctx)
	if err != nil {
		return err
	}
	// Release fails after navigation, which is fine.
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

	return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(obj.ObjectID)
	}, args...).Do(ctx)
}

func quadCenter(quads []dom.Quad) (float64, float64, error) {
	if len(quads) == 0 {
		return 0, 0, chromedp.ErrInvalidDimensions
	}
	q := quads[0]
	if len(q) < 2 || len(q)%2 != 0 {
		return 0, 0, chromedp.ErrInvalidDimensions
	}
	var x, y float64
	for i := 0; i < len(q); i += 2 {
		x += q[i]
		y += q[i+1]
	}
	n := float64(len(q) / 2)
	return x / n, y / n, nil
}
