package scenarios

import (
	"github.com/hairizuanbinnoorazman/security-e2e/auth"
	"github.com/hairizuanbinnoorazman/security-e2e/dialog"
	"github.com/hairizuanbinnoorazman/security-e2e/grid"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/shell"
)

// Layout is the markup of the application under test and of its identity
// provider.
type Layout struct {
	Auth  auth.Layout
	Shell shell.Layout
	Grid  grid.Layout

	Company        dialog.Layout
	CompanyFields  dialog.CompanyFields
	Groups         dialog.Layout
	GroupControls  dialog.MembershipControls
	UserRoles      dialog.Layout
	UserRoleFields dialog.UserRolesFields
}

func dialogLayout(save string) dialog.Layout {
	return dialog.Layout{
		Container: pagedriver.CSS(`[role="dialog"]`),
		Title:     pagedriver.CSS(".MuiDialogTitle-root"),
		Items:     pagedriver.CSS(".MuiListItem-root").Or(pagedriver.CSS(`[role="option"]`)),
		Search:    pagedriver.Placeholder("search"),
		Save:      pagedriver.Role("button", save),
		Cancel:    pagedriver.Role("button", "cancel"),
		Close:     pagedriver.CSS(`[aria-label="close"]`).Or(pagedriver.Role("button", "close")),
	}
}

func membership() dialog.MembershipControls {
	return dialog.MembershipControls{
		Add:    pagedriver.Role("button", "add"),
		Remove: pagedriver.Role("button", "remove"),
	}
}

// DefaultLayout returns the selectors of the MUI-based application behind
// an Okta sign-in page.
func DefaultLayout() Layout {
	advance := pagedriver.CSS(`input[value="Next"]`)
	secret := pagedriver.CSS(`input[name="credentials.passcode"]`)
	verify := pagedriver.CSS(`input[value="Verify"]`)

	return Layout{
		Auth: auth.Layout{
			Legacy: auth.FormFields{
				Identity: pagedriver.CSS(`input[name="identifier"]`),
				Advance:  advance,
				Secret:   secret,
				Verify:   verify,
			},
			Redirecting: auth.FormFields{
				Identity: pagedriver.CSS(`input[name="fromURI"]`),
				Advance:  advance,
				Secret:   secret,
				Verify:   verify,
			},
			ErrorPanel:   pagedriver.CSS("#signin-container .okta-form-infobox-error"),
			AccessDenied: pagedriver.Text("access denied"),
			UserMenu:     pagedriver.Role("button", "account|menu|user"),
			Logout:       pagedriver.Role("button", "logout|sign out"),
		},
		Shell: shell.Layout{
			SuccessNotice: pagedriver.CSS(".MuiSnackbar-root .MuiAlert-standardSuccess"),
			ErrorNotice:   pagedriver.CSS(".MuiSnackbar-root .MuiAlert-standardError"),
			Spinner:       pagedriver.CSS(".MuiCircularProgress-root"),
		},
		Grid: grid.Layout{
			Container:    pagedriver.CSS(`[data-testid="repo-grid"]`).Or(pagedriver.CSS(".MuiDataGrid-root")),
			Rows:         pagedriver.CSS(".MuiDataGrid-row").Or(pagedriver.CSS(`[role="row"]`)),
			Search:       pagedriver.Placeholder("search"),
			AccessDenied: pagedriver.Text("access denied"),
			Add:          pagedriver.Role("button", "add"),
			Edit:         pagedriver.Role("button", "edit"),
			Delete:       pagedriver.Role("button", "delete"),
			Groups:       pagedriver.Role("button", "groups"),
			UserRoles:    pagedriver.Role("button", "user roles|roles"),
		},
		Company: dialogLayout("save|submit|create|update"),
		CompanyFields: dialog.CompanyFields{
			Name:            pagedriver.Label("company name|name"),
			Description:     pagedriver.Label("description"),
			Active:          pagedriver.Role("checkbox", "active"),
			ValidationError: pagedriver.CSS(".MuiFormHelperText-root.Mui-error"),
		},
		Groups:        dialogLayout("save|apply|submit"),
		GroupControls: membership(),
		UserRoles:     dialogLayout("save|apply|submit"),
		UserRoleFields: dialog.UserRolesFields{
			Roles: map[dialog.Role]pagedriver.Selector{
				dialog.RoleAdmin:   pagedriver.Role("checkbox", "admin"),
				dialog.RoleSupport: pagedriver.Role("checkbox", "support"),
				dialog.RoleUser:    pagedriver.Role("checkbox", "user"),
			},
			Controls: membership(),
		},
	}
}
