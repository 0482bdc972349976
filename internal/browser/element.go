package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

const displayedPollInterval = 100 * time.Millisecond

// JavaScript helpers executed on resolved element objects. Each runs with
// `this` bound to the element.
const (
	jsIsDisplayed = `function() {
		const style = window.getComputedStyle(this);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') {
			return false;
		}
		const rect = this.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	}`

	jsIsClickable = `function() {
		if (this.disabled) {
			return false;
		}
		const style = window.getComputedStyle(this);
		if (style.pointerEvents === 'none' || style.display === 'none' || style.visibility === 'hidden') {
			return false;
		}
		const rect = this.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	}`

	jsGetText = `function() {
		const text = this.innerText !== undefined ? this.innerText : this.textContent;
		return text || '';
	}`

	jsGetAttribute = `function(name) {
		const value = this.getAttribute(name);
		return value === null ? '' : value;
	}`

	jsClearValue = `function() {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`

	jsSelectByText = `function(wanted) {
		if (this.tagName !== 'SELECT') {
			throw new Error('element is not a select');
		}
		const options = Array.from(this.options);
		const idx = options.findIndex(function(o) {
			return o.text.trim() === wanted || o.label.trim() === wanted || o.value === wanted;
		});
		if (idx < 0) {
			throw new Error('no option matches ' + JSON.stringify(wanted));
		}
		this.selectedIndex = idx;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
		return options[idx].value;
	}`

	jsSelectByIndex = `function(index) {
		if (this.tagName !== 'SELECT') {
			throw new Error('element is not a select');
		}
		if (index < 0 || index >= this.options.length) {
			throw new Error('option index ' + index + ' out of range (' + this.options.length + ' options)');
		}
		this.selectedIndex = index;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
		return this.options[index].value;
	}`
)

// Click scrolls the element into view and dispatches a real mouse click at
// its center.
func (s *Session) Click(ctx context.Context, el *schemas.Element) error {
	if el == nil {
		return errors.New("nil element handle")
	}
	s.logger.Debug("Clicking element.", zap.String("selector", el.Selector))

	err := s.run(ctx, s.cfg.OperationTimeout, chromedp.ActionFunc(func(c context.Context) error {
		node, err := dom.DescribeNode().WithNodeID(cdp.NodeID(el.NodeID)).Do(c)
		if err != nil {
			return err
		}
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(cdp.NodeID(el.NodeID)).Do(c); err != nil {
			return err
		}
		return chromedp.MouseClickNode(node).Do(c)
	}))
	if err != nil {
		return staleAware(el, fmt.Errorf("click failed for %q: %w", el.Selector, err))
	}
	return nil
}

// SetValue types the value into the element using real key events, so
// framework listeners fire the way they would for a person.
func (s *Session) SetValue(ctx context.Context, el *schemas.Element, value string) error {
	if el == nil {
		return errors.New("nil element handle")
	}
	s.logger.Debug("Typing into element.",
		zap.String("selector", el.Selector), zap.Int("value_length", len(value)))

	err := s.run(ctx, s.typeTimeout(value), chromedp.ActionFunc(func(c context.Context) error {
		if _, err := dom.DescribeNode().WithNodeID(cdp.NodeID(el.NodeID)).Do(c); err != nil {
			return err
		}
		return chromedp.SendKeys([]cdp.NodeID{cdp.NodeID(el.NodeID)}, value, chromedp.ByNodeID).Do(c)
	}))
	if err != nil {
		return staleAware(el, fmt.Errorf("typing failed for %q: %w", el.Selector, err))
	}
	return nil
}

// typeTimeout scales the operation timeout with the text length so long
// values do not trip the default budget.
func (s *Session) typeTimeout(text string) time.Duration {
	timeout := s.cfg.OperationTimeout + time.Duration(float64(len(text))/2.5)*time.Second
	if timeout > 3*time.Minute {
		timeout = 3 * time.Minute
	}
	return timeout
}

// ClearValue empties the element's value and notifies listeners.
func (s *Session) ClearValue(ctx context.Context, el *schemas.Element) error {
	return s.callOnElement(ctx, el, jsClearValue, nil)
}

// GetText returns the element's visible text, trimmed.
func (s *Session) GetText(ctx context.Context, el *schemas.Element) (string, error) {
	var text string
	if err := s.callOnElement(ctx, el, jsGetText, &text); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GetAttribute returns the attribute's value, or "" when it is absent.
func (s *Session) GetAttribute(ctx context.Context, el *schemas.Element, name string) (string, error) {
	var value string
	if err := s.callOnElement(ctx, el, jsGetAttribute, &value, name); err != nil {
		return "", err
	}
	return value, nil
}

// IsDisplayed reports whether the element occupies visible space.
func (s *Session) IsDisplayed(ctx context.Context, el *schemas.Element) (bool, error) {
	var visible bool
	if err := s.callOnElement(ctx, el, jsIsDisplayed, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// IsExisting reports whether the handle still points at a live node. A stale
// handle is a false, not an error.
func (s *Session) IsExisting(ctx context.Context, el *schemas.Element) (bool, error) {
	if el == nil {
		return false, errors.New("nil element handle")
	}
	err := s.run(ctx, s.cfg.OperationTimeout, chromedp.ActionFunc(func(c context.Context) error {
		_, err := dom.DescribeNode().WithNodeID(cdp.NodeID(el.NodeID)).Do(c)
		return err
	}))
	if err == nil {
		return true, nil
	}
	if isStaleMessage(err) {
		return false, nil
	}
	return false, err
}

// IsClickable reports whether the element is visible, enabled, and accepts
// pointer events.
func (s *Session) IsClickable(ctx context.Context, el *schemas.Element) (bool, error) {
	var clickable bool
	if err := s.callOnElement(ctx, el, jsIsClickable, &clickable); err != nil {
		return false, err
	}
	return clickable, nil
}

// ScrollIntoView brings the element into the viewport if it is not already.
func (s *Session) ScrollIntoView(ctx context.Context, el *schemas.Element) error {
	if el == nil {
		return errors.New("nil element handle")
	}
	err := s.run(ctx, s.cfg.OperationTimeout, chromedp.ActionFunc(func(c context.Context) error {
		return dom.ScrollIntoViewIfNeeded().WithNodeID(cdp.NodeID(el.NodeID)).Do(c)
	}))
	return staleAware(el, err)
}

// WaitForDisplayed polls until the element is visible or the timeout lapses.
func (s *Session) WaitForDisplayed(ctx context.Context, el *schemas.Element, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.OperationTimeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(displayedPollInterval)
	defer ticker.Stop()

	for {
		visible, err := s.IsDisplayed(ctx, el)
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("element %q not displayed within %s", el.Selector, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SelectByText chooses the option whose text, label, or value matches.
func (s *Session) SelectByText(ctx context.Context, el *schemas.Element, text string) error {
	var selected string
	return s.callOnElement(ctx, el, jsSelectByText, &selected, text)
}

// SelectByIndex chooses the option at the zero-based index.
func (s *Session) SelectByIndex(ctx context.Context, el *schemas.Element, index int) error {
	var selected string
	return s.callOnElement(ctx, el, jsSelectByIndex, &selected, index)
}

// SetFiles attaches local file paths to a file input.
func (s *Session) SetFiles(ctx context.Context, el *schemas.Element, paths []string) error {
	if el == nil {
		return errors.New("nil element handle")
	}
	if len(paths) == 0 {
		return errors.New("no file paths given")
	}
	err := s.run(ctx, s.cfg.OperationTimeout, chromedp.ActionFunc(func(c context.Context) error {
		return dom.SetFileInputFiles(paths).WithNodeID(cdp.NodeID(el.NodeID)).Do(c)
	}))
	if err != nil {
		return staleAware(el, fmt.Errorf("file upload failed for %q: %w", el.Selector, err))
	}
	return nil
}

// callOnElement resolves the node to a JS object and invokes fn with `this`
// bound to it. Arguments are JSON-encoded; the return value, when wanted, is
// JSON-decoded into res.
func (s *Session) callOnElement(ctx context.Context, el *schemas.Element, fn string, res any, args ...any) error {
	if el == nil {
		return errors.New("nil element handle")
	}

	err := s.run(ctx, s.cfg.OperationTimeout, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(cdp.NodeID(el.NodeID)).Do(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(c)
		}()

		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			raw, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("could not encode call argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
		}

		value, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithArguments(callArgs).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("javascript error: %w", exc)
		}
		if res != nil && value != nil && value.Value != nil {
			return json.Unmarshal(value.Value, res)
		}
		return nil
	}))
	return staleAware(el, err)
}

// staleAware converts node-lookup failures into schemas.ErrStaleElement so
// callers can re-resolve instead of pattern-matching CDP error text.
func staleAware(el *schemas.Element, err error) error {
	if err == nil {
		return nil
	}
	if isStaleMessage(err) {
		return fmt.Errorf("%w: %s", schemas.ErrStaleElement, el.Selector)
	}
	return err
}

func isStaleMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no node with given id") ||
		strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "node with given id does not belong to the document")
}
