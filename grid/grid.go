// Package grid drives the dashboard data grid: searching, row selection
// and the row actions that open dialogs.
package grid

import (
	"context"
	"fmt"

	"github.com/hairizuanbinnoorazman/security-e2e/dialog"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

// Layout holds the dashboard selectors.
type Layout struct {
	Container    pagedriver.Selector
	Rows         pagedriver.Selector
	Search       pagedriver.Selector
	AccessDenied pagedriver.Selector

	Add       pagedriver.Selector
	Edit      pagedriver.Selector
	Delete    pagedriver.Selector
	Groups    pagedriver.Selector
	UserRoles pagedriver.Selector
}

// Dialogs are the dialog controllers row actions hand over to.
type Dialogs struct {
	Company   *dialog.CompanyDialog
	Groups    *dialog.GroupsDialog
	UserRoles *dialog.UserRolesDialog
}

// Controller operates the dashboard grid on one page.
type Controller struct {
	page     pagedriver.Page
	layout   Layout
	dialogs  Dialogs
	waiter   *wait.Waiter
	timeouts wait.Timeouts
	logger   logger.Logger
}

// NewController creates a grid Controller.
func NewController(page pagedriver.Page, layout Layout, dialogs Dialogs, timeouts wait.Timeouts, log logger.Logger) *Controller {
	return &Controller{
		page:     page,
		layout:   layout,
		dialogs:  dialogs,
		waiter:   wait.New(log),
		timeouts: timeouts,
		logger:   log.WithField("component", "grid"),
	}
}

// WaitVisible fails unless the grid renders in time.
func (g *Controller) WaitVisible(ctx context.Context) error {
	return g.waiter.Require(ctx, "dashboard grid visible", g.page.Locate(g.layout.Container), g.timeouts.GridVisible)
}

// RowCount waits for the first row and counts them all. An empty grid is
// 0, not an error; callers guard row actions with it.
func (g *Controller) RowCount(ctx context.Context) int {
	n := g.waiter.ProbeCount(ctx, "grid rows", g.page.Locate(g.layout.Rows), g.timeouts.RowWait)
	g.logger.Debug(ctx, "grid rows counted", logger.Fields{"count": n})
	return n
}

// SelectRow clicks the row at index. Selecting past the last row is a
// caller error surfaced by the driver.
func (g *Controller) SelectRow(ctx context.Context, index int) error {
	if err := g.page.Locate(g.layout.Rows).Nth(index).Click(ctx); err != nil {
		return fmt.Errorf("failed to select grid row %d: %w", index, err)
	}
	return nil
}

// Search fills the grid filter and waits out its debounce.
func (g *Controller) Search(ctx context.Context, text string) error {
	if err := g.page.Locate(g.layout.Search).Fill(ctx, text); err != nil {
		return fmt.Errorf("failed to search grid: %w", err)
	}
	return g.waiter.Settle(ctx, g.timeouts.GridSettle)
}

// ClearSearch empties the grid filter and waits out its debounce.
func (g *Controller) ClearSearch(ctx context.Context) error {
	if err := g.page.Locate(g.layout.Search).Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear grid search: %w", err)
	}
	return g.waiter.Settle(ctx, g.timeouts.GridSettle)
}

// SearchVisible probes for the grid filter.
func (g *Controller) SearchVisible(ctx context.Context) bool {
	return g.waiter.Probe(ctx, "grid search", g.page.Locate(g.layout.Search), g.timeouts.GridVisible)
}

// AddVisible probes for the add control shown to authorized users.
func (g *Controller) AddVisible(ctx context.Context) bool {
	return g.waiter.Probe(ctx, "add button", g.page.Locate(g.layout.Add), g.timeouts.RowWait)
}

// IsAccessDenied probes for the access-denied indicator.
func (g *Controller) IsAccessDenied(ctx context.Context) bool {
	return g.waiter.Probe(ctx, "access denied", g.page.Locate(g.layout.AccessDenied).First(), g.timeouts.AccessDenied)
}

// TriggerAdd opens the company dialog in create mode.
func (g *Controller) TriggerAdd(ctx context.Context) (*dialog.CompanyDialog, error) {
	return g.dialogs.Company, g.trigger(ctx, "add", g.layout.Add, g.dialogs.Company.Controller)
}

// TriggerEdit opens the company dialog for the selected row.
func (g *Controller) TriggerEdit(ctx context.Context) (*dialog.CompanyDialog, error) {
	return g.dialogs.Company, g.trigger(ctx, "edit", g.layout.Edit, g.dialogs.Company.Controller)
}

// TriggerDelete opens the delete confirmation for the selected row.
func (g *Controller) TriggerDelete(ctx context.Context) (*dialog.CompanyDialog, error) {
	return g.dialogs.Company, g.trigger(ctx, "delete", g.layout.Delete, g.dialogs.Company.Controller)
}

// TriggerGroups opens the groups dialog for the selected row.
func (g *Controller) TriggerGroups(ctx context.Context) (*dialog.GroupsDialog, error) {
	return g.dialogs.Groups, g.trigger(ctx, "groups", g.layout.Groups, g.dialogs.Groups.Controller)
}

// TriggerUserRoles opens the user-roles dialog for the selected row.
func (g *Controller) TriggerUserRoles(ctx context.Context) (*dialog.UserRolesDialog, error) {
	return g.dialogs.UserRoles, g.trigger(ctx, "user roles", g.layout.UserRoles, g.dialogs.UserRoles.Controller)
}

func (g *Controller) trigger(ctx context.Context, action string, sel pagedriver.Selector, target *dialog.Controller) error {
	if err := target.Triggered(); err != nil {
		return err
	}
	if err := g.page.Locate(sel).Click(ctx); err != nil {
		target.Abandon(ctx)
		return fmt.Errorf("failed to trigger %s: %w", action, err)
	}
	g.logger.Debug(ctx, "row action triggered", logger.Fields{
		"action": action,
		"dialog": target.Kind().String(),
	})
	return nil
}
