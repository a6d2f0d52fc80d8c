package scenarios

import (
	"context"
	"strings"

	"github.com/hairizuanbinnoorazman/security-e2e/auth"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
)

// Roles the suites sign in as.
const (
	RoleAdmin         = "admin"
	RoleSupport       = "supportUser"
	RoleIncorrect     = "incorrect_user"
	RoleNoPermissions = "noPermissionsUser"
)

// ErrorPanelText is what the provider shows for rejected credentials.
const ErrorPanelText = "Unable to sign in"

// LoginCases covers valid, rejected and unauthorized sign-ins.
func (e *Env) LoginCases() []orchestrator.Case {
	return []orchestrator.Case{
		{
			Title:       "@SB-1001 login test with valid credentials",
			Suite:       "login",
			Role:        RoleAdmin,
			Summary:     "[Auto] Security - Login with valid credentials",
			Description: "User signs in with valid credentials, reaches the dashboard and signs out",
			Run: e.anonymous(func(ctx context.Context, app *App) error {
				if _, _, err := app.SignIn(ctx, RoleAdmin); err != nil {
					return err
				}
				app.Shot(ctx, "check-login")
				if err := expect(!app.Grid.IsAccessDenied(ctx), "access denied shown to %s", RoleAdmin); err != nil {
					return err
				}
				app.Shot(ctx, "dashboard-loaded")
				return app.Auth.Logout(ctx)
			}),
		},
		{
			Title:       "@SB-1002 negative login test with invalid credentials",
			Suite:       "login",
			Role:        RoleIncorrect,
			Summary:     "[Auto] Security - Login with invalid credentials",
			Description: "User signs in with invalid credentials and the provider shows an error",
			Run: e.anonymous(func(ctx context.Context, app *App) error {
				_, outcome, err := app.SignIn(ctx, RoleIncorrect)
				if err != nil {
					return err
				}
				app.Shot(ctx, "invalid-login")
				if err := expect(outcome == auth.Rejected, "outcome %s, want %s", outcome, auth.Rejected); err != nil {
					return err
				}
				text := app.Auth.ErrorText(ctx)
				return expect(strings.Contains(text, ErrorPanelText), "error panel %q does not contain %q", text, ErrorPanelText)
			}),
		},
		{
			Title:       "@SB-1003 login with user without permissions",
			Suite:       "login",
			Role:        RoleNoPermissions,
			Summary:     "[Auto] Security - Login without permissions",
			Description: "User without permissions signs in and the application denies access",
			Run: e.anonymous(func(ctx context.Context, app *App) error {
				role, outcome, err := app.SignIn(ctx, RoleNoPermissions)
				if err != nil {
					return err
				}
				app.Shot(ctx, "access-denied")
				app.logger.Info(ctx, "no permissions login classified", logger.Fields{"outcome": string(outcome)})
				if err := expect(outcome == role.Expected, "outcome %s, want %s", outcome, role.Expected); err != nil {
					return err
				}
				return expect(app.Auth.IsAccessDenied(ctx), "access denied not shown to %s", RoleNoPermissions)
			}),
		},
	}
}
