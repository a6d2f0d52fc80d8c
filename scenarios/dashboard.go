package scenarios

import (
	"context"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
)

// DashboardSearchTerm is the filter typed into the grid search.
const DashboardSearchTerm = "Test"

// DashboardCases covers the grid landing page.
func (e *Env) DashboardCases() []orchestrator.Case {
	return []orchestrator.Case{
		{
			Title:       "@SB-1004 dashboard loads successfully",
			Suite:       "dashboard",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Dashboard loads",
			Description: "Signed-in admin sees the search field and the grid",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				if err := expect(app.Grid.SearchVisible(ctx), "grid search not visible"); err != nil {
					return err
				}
				if err := app.Grid.WaitVisible(ctx); err != nil {
					return err
				}
				app.Shot(ctx, "dashboard-loaded")
				return nil
			}),
		},
		{
			Title:       "@SB-1005 dashboard search functionality",
			Suite:       "dashboard",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Dashboard search",
			Description: "Searching the grid and clearing the search restores every row",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				if err := app.Grid.WaitVisible(ctx); err != nil {
					return err
				}
				before := app.Grid.RowCount(ctx)

				if err := app.Grid.Search(ctx, DashboardSearchTerm); err != nil {
					return err
				}
				if err := app.Settle(ctx); err != nil {
					return err
				}
				filtered := app.Grid.RowCount(ctx)
				app.Shot(ctx, "search-results")

				if err := app.Grid.ClearSearch(ctx); err != nil {
					return err
				}
				if err := app.Settle(ctx); err != nil {
					return err
				}
				after := app.Grid.RowCount(ctx)

				app.logger.Info(ctx, "grid search checked", logger.Fields{
					"before":   before,
					"filtered": filtered,
					"after":    after,
				})
				if err := expect(filtered <= before, "search grew the grid from %d to %d rows", before, filtered); err != nil {
					return err
				}
				return expect(after == before, "row count %d after clearing search, want %d", after, before)
			}),
		},
		{
			Title:       "@SB-1006 add button visible for authorized users",
			Suite:       "dashboard",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Add button visibility",
			Description: "Authorized users are offered the add control",
			Run: e.signedIn(RoleAdmin, func(ctx context.Context, app *App) error {
				visible := app.Grid.AddVisible(ctx)
				app.logger.Info(ctx, "add button probed", logger.Fields{"visible": visible})
				app.Shot(ctx, "add-button")
				return nil
			}),
		},
	}
}
