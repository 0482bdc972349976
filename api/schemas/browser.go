package schemas

import (
	"context"
	"errors"
	"time"
)

// ErrStaleElement reports that an Element handle no longer points at a live
// DOM node, usually because the page re-rendered or navigated. Callers
// re-resolve the element and retry.
var ErrStaleElement = errors.New("stale element reference")

// Element is a handle to a resolved DOM node. It keeps the selector that
// produced it so a stale handle can be re-resolved without reconstructing
// the original query.
type Element struct {
	Selector      string `json:"selector"`
	NodeID        int64  `json:"node_id"`
	BackendNodeID int64  `json:"backend_node_id"`
}

// ElementMatch is the result of resolving a described element: the handle,
// the strategy that found it, and a heuristic confidence in [0,100].
type ElementMatch struct {
	Element    *Element `json:"element"`
	Confidence int      `json:"confidence"`
	Strategy   string   `json:"strategy"`
	Selector   string   `json:"selector"`
}

// Driver is the browser capability set the engine and resolver depend on.
// Query supports CSS selectors, XPath expressions, and plain text; an
// absent element is reported via the found flag, not an error.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Query(ctx context.Context, selector string) (el *Element, found bool, err error)
	Click(ctx context.Context, el *Element) error
	SetValue(ctx context.Context, el *Element, value string) error
	ClearValue(ctx context.Context, el *Element) error
	GetText(ctx context.Context, el *Element) (string, error)
	GetAttribute(ctx context.Context, el *Element, name string) (string, error)
	IsDisplayed(ctx context.Context, el *Element) (bool, error)
	IsExisting(ctx context.Context, el *Element) (bool, error)
	IsClickable(ctx context.Context, el *Element) (bool, error)
	ScrollIntoView(ctx context.Context, el *Element) error
	WaitForDisplayed(ctx context.Context, el *Element, timeout time.Duration) error
	SelectByText(ctx context.Context, el *Element, text string) error
	SelectByIndex(ctx context.Context, el *Element, index int) error
	SetFiles(ctx context.Context, el *Element, paths []string) error
	Screenshot(ctx context.Context) ([]byte, error)
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	ExecuteScript(ctx context.Context, script string, result any) error
	Refresh(ctx context.Context) error
	Pause(ctx context.Context, d time.Duration) error
}
