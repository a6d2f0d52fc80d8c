package scenarios

import (
	"context"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
)

// CompanyCases opens, validates and dismisses the company dialog. Nothing
// is ever saved.
func (e *Env) CompanyCases() []orchestrator.Case {
	return []orchestrator.Case{
		{
			Title:       "@SB-1007 open add company dialog",
			Suite:       "company",
			Role:        RoleSupport,
			Summary:     "[Auto] Security - Open add company dialog",
			Description: "Support user opens the add company dialog and cancels it",
			Run: e.signedIn(RoleSupport, func(ctx context.Context, app *App) error {
				company, err := app.Grid.TriggerAdd(ctx)
				if err != nil {
					return err
				}
				if err := company.WaitForOpen(ctx); err != nil {
					return err
				}
				title, err := company.Title(ctx)
				if err != nil {
					return err
				}
				app.logger.Info(ctx, "company dialog open", logger.Fields{"title": title})
				app.Shot(ctx, "add-company-dialog")
				return dismissed(ctx, company.Controller, company.Cancel)
			}),
		},
		{
			Title:       "@SB-1008 company dialog validation",
			Suite:       "company",
			Role:        RoleSupport,
			Summary:     "[Auto] Security - Company dialog validation",
			Description: "Saving an empty company form shows a validation error",
			Run: e.signedIn(RoleSupport, func(ctx context.Context, app *App) error {
				company, err := app.Grid.TriggerAdd(ctx)
				if err != nil {
					return err
				}
				if err := company.WaitForOpen(ctx); err != nil {
					return err
				}
				if err := company.Save(ctx); err != nil {
					return err
				}
				if err := app.Settle(ctx); err != nil {
					return err
				}
				invalid := company.HasValidationError(ctx)
				app.logger.Info(ctx, "company form submitted empty", logger.Fields{
					"validation_error": company.ValidationErrorText(ctx),
					"notice":           app.Shell.ErrorMessage(ctx),
				})
				app.Shot(ctx, "company-validation")
				if err := expect(invalid, "empty company form was accepted"); err != nil {
					return err
				}
				return dismissed(ctx, company.Controller, company.Cancel)
			}),
		},
		{
			Title:       "@SB-1009 edit company dialog",
			Suite:       "company",
			Role:        RoleSupport,
			Summary:     "[Auto] Security - Edit company dialog",
			Description: "Support user opens the edit dialog for the first company and cancels it",
			Run: e.signedIn(RoleSupport, func(ctx context.Context, app *App) error {
				if err := app.selectFirstRow(ctx); err != nil {
					return err
				}
				company, err := app.Grid.TriggerEdit(ctx)
				if err := app.opened(ctx, company.Controller, err); err != nil {
					return err
				}
				app.Shot(ctx, "edit-company-dialog")
				return dismissed(ctx, company.Controller, company.Cancel)
			}),
		},
		{
			Title:       "@SB-1010 delete company dialog",
			Suite:       "company",
			Role:        RoleSupport,
			Summary:     "[Auto] Security - Delete company dialog",
			Description: "Support user opens the delete confirmation for the first company and cancels it",
			Run: e.signedIn(RoleSupport, func(ctx context.Context, app *App) error {
				if err := app.selectFirstRow(ctx); err != nil {
					return err
				}
				company, err := app.Grid.TriggerDelete(ctx)
				if err := app.opened(ctx, company.Controller, err); err != nil {
					return err
				}
				app.Shot(ctx, "delete-company-dialog")
				return dismissed(ctx, company.Controller, company.Cancel)
			}),
		},
	}
}
