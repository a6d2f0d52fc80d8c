package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

// Role is one of the application roles assignable in the user-roles dialog.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleUser    Role = "user"
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleAdmin, RoleSupport, RoleUser}

// UserRolesFields are the role toggles and membership controls.
type UserRolesFields struct {
	Roles    map[Role]pagedriver.Selector
	Controls MembershipControls
}

// UserRolesDialog adds user selection and role toggles.
type UserRolesDialog struct {
	*Controller
	fields UserRolesFields
}

// NewUserRolesDialog creates the user-roles dialog controller.
func NewUserRolesDialog(page pagedriver.Page, layout Layout, fields UserRolesFields, slot Slot, timeouts wait.Timeouts, log logger.Logger) *UserRolesDialog {
	return &UserRolesDialog{
		Controller: NewController(UserRoles, page, layout, slot, timeouts, log),
		fields:     fields,
	}
}

// SelectUser clicks the user whose visible text contains name.
func (d *UserRolesDialog) SelectUser(ctx context.Context, name string) error {
	return d.SelectItem(ctx, name)
}

func (d *UserRolesDialog) toggle(role Role) (pagedriver.Selector, error) {
	sel, ok := d.fields.Roles[role]
	if !ok {
		return pagedriver.Selector{}, fmt.Errorf("unknown role %q", role)
	}
	return sel, nil
}

// RoleVisible probes one role toggle for up to timeout.
func (d *UserRolesDialog) RoleVisible(ctx context.Context, role Role, timeout time.Duration) bool {
	sel, err := d.toggle(role)
	if err != nil {
		d.logger.Warn(ctx, "role toggle not in layout", logger.Fields{"role": string(role)})
		return false
	}
	return d.waiter.Probe(ctx, string(role)+" role toggle", d.in(sel), timeout)
}

// ToggleRole flips one role checkbox after confirming it is shown.
func (d *UserRolesDialog) ToggleRole(ctx context.Context, role Role) error {
	sel, err := d.toggle(role)
	if err != nil {
		return err
	}
	if !d.RoleVisible(ctx, role, d.timeouts.DialogProbe) {
		return fmt.Errorf("%w: %s role toggle", pagedriver.ErrNotFound, role)
	}
	return d.click(ctx, string(role)+" role", sel)
}

// ClickAdd clicks the add-user control.
func (d *UserRolesDialog) ClickAdd(ctx context.Context) error {
	return d.click(ctx, "add", d.fields.Controls.Add)
}

// ClickRemove clicks the remove-user control.
func (d *UserRolesDialog) ClickRemove(ctx context.Context) error {
	return d.click(ctx, "remove", d.fields.Controls.Remove)
}
