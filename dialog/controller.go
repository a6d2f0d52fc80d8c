// Package dialog drives the application's modal dialogs. Every kind shares
// one Controller and its open/operate/close state machine; kind-specific
// operations live in small extension types that wrap it.
package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

// Kind names a dialog.
type Kind int

const (
	Company Kind = iota
	Groups
	UserRoles
)

func (k Kind) String() string {
	switch k {
	case Company:
		return "company"
	case Groups:
		return "groups"
	case UserRoles:
		return "user-roles"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Layout holds the selectors every dialog kind has. All of them except
// Container are resolved inside the container.
type Layout struct {
	Container pagedriver.Selector
	Title     pagedriver.Selector
	Items     pagedriver.Selector
	Search    pagedriver.Selector
	Save      pagedriver.Selector
	Cancel    pagedriver.Selector
	Close     pagedriver.Selector
}

// Controller operates one dialog kind on one page.
type Controller struct {
	kind     Kind
	page     pagedriver.Page
	layout   Layout
	handle   *Handle
	waiter   *wait.Waiter
	timeouts wait.Timeouts
	logger   logger.Logger
}

// NewController creates a Controller. slot may be nil when no other dialog
// can compete for the page.
func NewController(kind Kind, page pagedriver.Page, layout Layout, slot Slot, timeouts wait.Timeouts, log logger.Logger) *Controller {
	return &Controller{
		kind:     kind,
		page:     page,
		layout:   layout,
		handle:   newHandle(kind, slot),
		waiter:   wait.New(log),
		timeouts: timeouts,
		logger:   log.WithField("dialog", kind.String()),
	}
}

// Kind returns the dialog kind.
func (c *Controller) Kind() Kind {
	return c.kind
}

// Handle returns the lifecycle of the current dialog.
func (c *Controller) Handle() *Handle {
	return c.handle
}

// Triggered records that the control opening this dialog was clicked.
func (c *Controller) Triggered() error {
	return c.handle.transition(Opening)
}

func (c *Controller) in(sel pagedriver.Selector) pagedriver.Locator {
	return c.page.Locate(sel.In(c.layout.Container))
}

func (c *Controller) container() pagedriver.Locator {
	return c.page.Locate(c.layout.Container)
}

// IsOpen probes for the dialog without failing.
func (c *Controller) IsOpen(ctx context.Context) bool {
	return c.waiter.Probe(ctx, c.kind.String()+" dialog open", c.container(), c.timeouts.DialogProbe)
}

// WaitForOpen fails unless the dialog renders and is still rendered after
// a short stability window.
func (c *Controller) WaitForOpen(ctx context.Context) error {
	if err := c.handle.advance(Opening); err != nil {
		return err
	}

	expectation := c.kind.String() + " dialog visible"
	if err := c.waiter.Require(ctx, expectation, c.container(), c.timeouts.DialogTransition); err != nil {
		c.Abandon(ctx)
		return err
	}
	if err := c.waiter.Settle(ctx, c.timeouts.DialogStable); err != nil {
		c.Abandon(ctx)
		return err
	}
	if err := c.waiter.Require(ctx, c.kind.String()+" dialog stays visible", c.container(), c.timeouts.DialogProbe); err != nil {
		c.Abandon(ctx)
		return err
	}

	if err := c.handle.transition(Open); err != nil {
		return err
	}
	c.logger.Debug(ctx, "dialog open", nil)
	return nil
}

// Abandon returns a handle that never opened to Closed.
func (c *Controller) Abandon(ctx context.Context) {
	if c.handle.State() == Opening {
		if err := c.handle.transition(Closed); err != nil {
			c.logger.Warn(ctx, "failed to reset dialog handle", logger.Fields{"error": err.Error()})
		}
	}
}

// WaitForClose fails unless the dialog is removed in time.
func (c *Controller) WaitForClose(ctx context.Context) error {
	if c.handle.State() == Open {
		if err := c.handle.transition(Closing); err != nil {
			return err
		}
	}

	if err := c.waiter.RequireHidden(ctx, c.kind.String()+" dialog closed", c.container(), c.timeouts.DialogTransition); err != nil {
		return err
	}

	if c.handle.State() != Closed {
		if err := c.handle.transition(Closed); err != nil {
			return err
		}
	}
	c.logger.Debug(ctx, "dialog closed", nil)
	return nil
}

// ItemCount waits briefly for the first list item and counts them all.
// An empty list is 0, not an error.
func (c *Controller) ItemCount(ctx context.Context) int {
	n := c.waiter.ProbeCount(ctx, c.kind.String()+" dialog items", c.in(c.layout.Items), c.timeouts.ItemWait)
	c.logger.Debug(ctx, "dialog items counted", logger.Fields{"count": n})
	return n
}

// SearchAvailable probes for the dialog's search field.
func (c *Controller) SearchAvailable(ctx context.Context) bool {
	return c.waiter.Probe(ctx, c.kind.String()+" dialog search", c.in(c.layout.Search), c.timeouts.Notice)
}

// Search fills the search field and waits out the filter debounce.
func (c *Controller) Search(ctx context.Context, text string) error {
	if err := c.in(c.layout.Search).Fill(ctx, text); err != nil {
		return fmt.Errorf("failed to search %s dialog: %w", c.kind, err)
	}
	return c.waiter.Settle(ctx, c.timeouts.SearchSettle)
}

// Title returns the dialog title text.
func (c *Controller) Title(ctx context.Context) (string, error) {
	text, err := c.in(c.layout.Title).TextContent(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read %s dialog title: %w", c.kind, err)
	}
	return strings.TrimSpace(text), nil
}

// Save clicks the save control. The caller follows up with WaitForClose or
// a validation check.
func (c *Controller) Save(ctx context.Context) error {
	if err := c.handle.transition(Submitting); err != nil {
		return err
	}
	if err := c.in(c.layout.Save).Click(ctx); err != nil {
		c.revert(ctx)
		return fmt.Errorf("failed to save %s dialog: %w", c.kind, err)
	}
	return nil
}

// Cancel clicks the cancel control.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.dismiss(ctx, "cancel", c.layout.Cancel)
}

// Close clicks the close control.
func (c *Controller) Close(ctx context.Context) error {
	return c.dismiss(ctx, "close", c.layout.Close)
}

func (c *Controller) dismiss(ctx context.Context, action string, sel pagedriver.Selector) error {
	if err := c.handle.transition(Closing); err != nil {
		return err
	}
	if err := c.in(sel).Click(ctx); err != nil {
		return fmt.Errorf("failed to %s %s dialog: %w", action, c.kind, err)
	}
	return nil
}

// Rejected records that a submit left the dialog open.
func (c *Controller) Rejected() error {
	if c.handle.State() != Submitting {
		return nil
	}
	return c.handle.transition(Open)
}

func (c *Controller) revert(ctx context.Context) {
	if err := c.Rejected(); err != nil {
		c.logger.Warn(ctx, "failed to reopen dialog handle", logger.Fields{"error": err.Error()})
	}
}

// SelectItem clicks the first element inside the dialog containing text.
func (c *Controller) SelectItem(ctx context.Context, text string) error {
	if err := c.in(pagedriver.LiteralText(text).First()).Click(ctx); err != nil {
		return fmt.Errorf("failed to select %q in %s dialog: %w", text, c.kind, err)
	}
	return nil
}

func (c *Controller) click(ctx context.Context, what string, sel pagedriver.Selector) error {
	if err := c.in(sel).Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s in %s dialog: %w", what, c.kind, err)
	}
	return nil
}
