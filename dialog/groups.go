package dialog

import (
	"context"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

// MembershipControls are the add and remove buttons of a membership list.
type MembershipControls struct {
	Add    pagedriver.Selector
	Remove pagedriver.Selector
}

// GroupsDialog adds group selection to the groups dialog.
type GroupsDialog struct {
	*Controller
	controls MembershipControls
}

// NewGroupsDialog creates the groups dialog controller.
func NewGroupsDialog(page pagedriver.Page, layout Layout, controls MembershipControls, slot Slot, timeouts wait.Timeouts, log logger.Logger) *GroupsDialog {
	return &GroupsDialog{
		Controller: NewController(Groups, page, layout, slot, timeouts, log),
		controls:   controls,
	}
}

// SelectGroup clicks the group whose visible text contains name.
func (d *GroupsDialog) SelectGroup(ctx context.Context, name string) error {
	return d.SelectItem(ctx, name)
}

// ClickAdd clicks the add-group control.
func (d *GroupsDialog) ClickAdd(ctx context.Context) error {
	return d.click(ctx, "add", d.controls.Add)
}

// ClickRemove clicks the remove-group control.
func (d *GroupsDialog) ClickRemove(ctx context.Context) error {
	return d.click(ctx, "remove", d.controls.Remove)
}
