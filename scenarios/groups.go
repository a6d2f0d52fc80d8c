package scenarios

import (
	"context"

	"github.com/hairizuanbinnoorazman/security-e2e/dialog"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
)

// GroupsSearchTerm is the filter typed into the groups dialog.
const GroupsSearchTerm = "Test"

func (a *App) openGroups(ctx context.Context) (*dialog.GroupsDialog, error) {
	if err := a.selectFirstRow(ctx); err != nil {
		return nil, err
	}
	groups, err := a.Grid.TriggerGroups(ctx)
	if err := a.opened(ctx, groups.Controller, err); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupsCases browses the groups dialog of the first row.
func (e *Env) GroupsCases() []orchestrator.Case {
	return []orchestrator.Case{
		{
			Title:       "@SB-1011 open groups dialog",
			Suite:       "groups",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Open groups dialog",
			Description: "Admin opens the groups dialog and closes it",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				groups, err := app.openGroups(ctx)
				if err != nil {
					return err
				}
				app.Shot(ctx, "groups-dialog")
				return dismissed(ctx, groups.Controller, groups.Close)
			}),
		},
		{
			Title:       "@SB-1012 view groups in dialog",
			Suite:       "groups",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - View groups",
			Description: "Admin lists the groups of the first row",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				groups, err := app.openGroups(ctx)
				if err != nil {
					return err
				}
				app.logger.Info(ctx, "groups listed", logger.Fields{"count": groups.ItemCount(ctx)})
				app.Shot(ctx, "groups-list")
				return dismissed(ctx, groups.Controller, groups.Close)
			}),
		},
		{
			Title:       "@SB-1013 search groups in dialog",
			Suite:       "groups",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Search groups",
			Description: "Admin filters the groups dialog when it offers search",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				groups, err := app.openGroups(ctx)
				if err != nil {
					return err
				}
				if groups.SearchAvailable(ctx) {
					if err := groups.Search(ctx, GroupsSearchTerm); err != nil {
						return err
					}
					app.logger.Info(ctx, "groups filtered", logger.Fields{"count": groups.ItemCount(ctx)})
				}
				app.Shot(ctx, "groups-search")
				return dismissed(ctx, groups.Controller, groups.Close)
			}),
		},
	}
}
