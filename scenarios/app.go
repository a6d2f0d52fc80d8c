// Package scenarios holds the feature suites run against the application:
// login, dashboard, company, groups and user roles.
package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/hairizuanbinnoorazman/security-e2e/auth"
	"github.com/hairizuanbinnoorazman/security-e2e/credentials"
	"github.com/hairizuanbinnoorazman/security-e2e/dialog"
	"github.com/hairizuanbinnoorazman/security-e2e/grid"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
	"github.com/hairizuanbinnoorazman/security-e2e/shell"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

var (
	// ErrExpectation is returned when a scenario check does not hold.
	ErrExpectation = errors.New("expectation failed")
)

func expect(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrExpectation, fmt.Sprintf(format, args...))
}

// Env is what every scenario needs besides its page.
type Env struct {
	Layout   Layout
	Auth     auth.Config
	Timeouts wait.Timeouts
	Roles    *credentials.Registry
}

// App is the application as seen through one test context's page.
type App struct {
	Auth      *auth.Flow
	Shell     *shell.Shell
	Grid      *grid.Controller
	Company   *dialog.CompanyDialog
	Groups    *dialog.GroupsDialog
	UserRoles *dialog.UserRolesDialog

	env    *Env
	tc     *testctx.TestContext
	waiter *wait.Waiter
	logger logger.Logger
}

// Open builds the page components over tc's page.
func (e *Env) Open(tc *testctx.TestContext) (*App, error) {
	page := tc.Page()
	log := tc.Logger()
	slot := tc.DialogSlot()

	flow, err := auth.NewFlow(page, e.Layout.Auth, e.Auth, e.Timeouts, log)
	if err != nil {
		return nil, err
	}

	company := dialog.NewCompanyDialog(page, e.Layout.Company, e.Layout.CompanyFields, slot, e.Timeouts, log)
	groups := dialog.NewGroupsDialog(page, e.Layout.Groups, e.Layout.GroupControls, slot, e.Timeouts, log)
	userRoles := dialog.NewUserRolesDialog(page, e.Layout.UserRoles, e.Layout.UserRoleFields, slot, e.Timeouts, log)

	return &App{
		Auth:      flow,
		Shell:     shell.New(page, e.Layout.Shell, e.Timeouts, log),
		Grid:      grid.NewController(page, e.Layout.Grid, grid.Dialogs{Company: company, Groups: groups, UserRoles: userRoles}, e.Timeouts, log),
		Company:   company,
		Groups:    groups,
		UserRoles: userRoles,
		env:       e,
		tc:        tc,
		waiter:    wait.New(log),
		logger:    log,
	}, nil
}

// SignIn logs in as role and returns the outcome the provider produced.
// Roles expected to authenticate fail unless they reach the application.
func (a *App) SignIn(ctx context.Context, role string) (credentials.Role, auth.Outcome, error) {
	r, err := a.env.Roles.Get(role)
	if err != nil {
		return r, "", err
	}
	outcome, err := a.Auth.Login(ctx, r.Identity, r.Secret, r.Expected == auth.Authenticated)
	if err != nil {
		return r, "", err
	}
	if outcome == auth.Authenticated {
		a.Shell.WaitForLoading(ctx)
	}
	return r, outcome, nil
}

// Settle waits for network idle and DOM content.
func (a *App) Settle(ctx context.Context) error {
	return a.waiter.PageSettle(ctx, a.tc.Page())
}

// Shot captures evidence. A failed capture is logged, not fatal.
func (a *App) Shot(ctx context.Context, name string) {
	if err := a.tc.Screenshot(ctx, name); err != nil {
		a.logger.Warn(ctx, "screenshot not captured", logger.Fields{"name": name, "error": err.Error()})
	}
}

// Step is the body of a scenario once the page components exist.
type Step func(ctx context.Context, app *App) error

// signedIn wraps step with a login as role.
func (e *Env) signedIn(role string, step Step) orchestrator.Body {
	return func(ctx context.Context, tc *testctx.TestContext) error {
		app, err := e.Open(tc)
		if err != nil {
			return err
		}
		if _, _, err := app.SignIn(ctx, role); err != nil {
			return fmt.Errorf("sign in as %s: %w", role, err)
		}
		return step(ctx, app)
	}
}

// anonymous runs step without signing in.
func (e *Env) anonymous(step Step) orchestrator.Body {
	return func(ctx context.Context, tc *testctx.TestContext) error {
		app, err := e.Open(tc)
		if err != nil {
			return err
		}
		return step(ctx, app)
	}
}

// Cases returns every suite in run order.
func (e *Env) Cases() []orchestrator.Case {
	var cases []orchestrator.Case
	cases = append(cases, e.LoginCases()...)
	cases = append(cases, e.DashboardCases()...)
	cases = append(cases, e.CompanyCases()...)
	cases = append(cases, e.GroupsCases()...)
	cases = append(cases, e.UserRolesCases()...)
	return cases
}
