package scenarios

import (
	"context"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/dialog"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
)

// UserRolesSearchTerm is the filter typed into the user-roles dialog.
const UserRolesSearchTerm = "automation"

// roleProbe bounds how long a role checkbox is looked for. The first one
// waits out the list render.
func (a *App) roleProbe(role dialog.Role) time.Duration {
	if role == dialog.Roles[0] {
		return a.env.Timeouts.ItemWait
	}
	return a.env.Timeouts.DialogProbe
}

func (a *App) openUserRoles(ctx context.Context) (*dialog.UserRolesDialog, error) {
	if err := a.selectFirstRow(ctx); err != nil {
		return nil, err
	}
	userRoles, err := a.Grid.TriggerUserRoles(ctx)
	if err := a.opened(ctx, userRoles.Controller, err); err != nil {
		return nil, err
	}
	return userRoles, nil
}

// UserRolesCases browses the user-roles dialog of the first row.
func (e *Env) UserRolesCases() []orchestrator.Case {
	return []orchestrator.Case{
		{
			Title:       "@SB-1014 open user roles dialog",
			Suite:       "userroles",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Open user roles dialog",
			Description: "Admin opens the user roles dialog and closes it",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				userRoles, err := app.openUserRoles(ctx)
				if err != nil {
					return err
				}
				app.Shot(ctx, "user-roles-dialog")
				return dismissed(ctx, userRoles.Controller, userRoles.Close)
			}),
		},
		{
			Title:       "@SB-1015 view users in user roles dialog",
			Suite:       "userroles",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - View users",
			Description: "Admin lists the users of the first row",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				userRoles, err := app.openUserRoles(ctx)
				if err != nil {
					return err
				}
				app.logger.Info(ctx, "users listed", logger.Fields{"count": userRoles.ItemCount(ctx)})
				app.Shot(ctx, "user-roles-list")
				return dismissed(ctx, userRoles.Controller, userRoles.Close)
			}),
		},
		{
			Title:       "@SB-1016 search users in user roles dialog",
			Suite:       "userroles",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Search users",
			Description: "Admin filters the user roles dialog when it offers search",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				userRoles, err := app.openUserRoles(ctx)
				if err != nil {
					return err
				}
				if userRoles.SearchAvailable(ctx) {
					if err := userRoles.Search(ctx, UserRolesSearchTerm); err != nil {
						return err
					}
					app.logger.Info(ctx, "users filtered", logger.Fields{"count": userRoles.ItemCount(ctx)})
				}
				app.Shot(ctx, "user-roles-search")
				return dismissed(ctx, userRoles.Controller, userRoles.Close)
			}),
		},
		{
			Title:       "@SB-1017 verify role checkboxes",
			Suite:       "userroles",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Role checkboxes",
			Description: "Admin sees a checkbox per role when the dialog lists users",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				userRoles, err := app.openUserRoles(ctx)
				if err != nil {
					return err
				}
				if userRoles.ItemCount(ctx) > 0 {
					fields := logger.Fields{}
					for _, role := range dialog.Roles {
						fields[string(role)] = userRoles.RoleVisible(ctx, role, app.roleProbe(role))
					}
					app.logger.Info(ctx, "role checkboxes probed", fields)
				}
				app.Shot(ctx, "role-checkboxes")
				return dismissed(ctx, userRoles.Controller, userRoles.Close)
			}),
		},
	}
}
