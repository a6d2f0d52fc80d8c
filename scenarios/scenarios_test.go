package scenarios

import (
	"context"
	"testing"

	"github.com/hairizuanbinnoorazman/security-e2e/auth"
	"github.com/hairizuanbinnoorazman/security-e2e/credentials"
	"github.com/hairizuanbinnoorazman/security-e2e/instrument"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL = "https://app.example.com/Security/"
	testIdPURL  = "https://example.okta.com/signin/verify"
)

var testSecrets = credentials.Secrets{
	RoleAdmin:         "admin-pass",
	RoleSupport:       "support-pass",
	RoleNoPermissions: "denied-pass",
}

// fakeApp scripts the identity provider and the application behind it.
type fakeApp struct {
	rows       int
	dialogOpen bool
	acceptsAll bool
	pages      []*pagedriver.Fake
}

func (a *fakeApp) page(pagedriver.Engine) *pagedriver.Fake {
	layout := DefaultLayout()
	form := layout.Auth.Legacy
	page := pagedriver.NewFake()
	a.pages = append(a.pages, page)

	accounts := map[string]string{}
	denied := map[string]bool{}
	for name, e := range credentials.DefaultEntries() {
		if secret, ok := testSecrets[name]; ok {
			accounts[e.Identity] = secret
			denied[e.Identity] = e.Expected == string(auth.AccessDenied)
		}
	}

	page.OnGoto(func(url string) {
		page.SetURL(testIdPURL)
		page.Show(form.Identity)
		page.Show(form.Advance)
	})
	page.Element(form.Advance).OnClick(func() {
		page.Show(form.Secret)
		page.Show(form.Verify)
	})
	page.Element(form.Verify).OnClick(func() {
		identity := page.Element(form.Identity).Value()
		secret, ok := accounts[identity]
		switch {
		case !ok || secret != page.Element(form.Secret).Value():
			page.Show(layout.Auth.ErrorPanel).Text("Unable to sign in. Please try again.")
		case denied[identity]:
			page.SetURL(testBaseURL + "dashboard")
			page.Show(layout.Auth.AccessDenied)
		default:
			page.SetURL(testBaseURL + "dashboard")
			a.dashboard(page, layout)
		}
	})
	return page
}

func (a *fakeApp) dashboard(page *pagedriver.Fake, layout Layout) {
	page.Show(layout.Auth.UserMenu)
	page.Show(layout.Auth.Logout).OnClick(func() {
		page.SetURL(testIdPURL)
	})
	page.Show(layout.Grid.Container)

	rows := page.Element(layout.Grid.Rows).Count(a.rows)
	page.Show(layout.Grid.Search).OnFill(func(v string) {
		if v == "" || a.rows == 0 {
			rows.Count(a.rows)
			return
		}
		rows.Count(1)
	})

	container := layout.Company.Container
	open := func() {
		if !a.dialogOpen {
			return
		}
		page.Show(container)
		page.Show(layout.Company.Title.In(container)).Text("  Company  ")
		page.Element(layout.Company.Items.In(container)).Count(3)
		page.Show(layout.Company.Search.In(container))
		for _, sel := range layout.UserRoleFields.Roles {
			page.Show(sel.In(container))
		}
	}
	for _, sel := range []pagedriver.Selector{layout.Grid.Add, layout.Grid.Edit, layout.Grid.Delete, layout.Grid.Groups, layout.Grid.UserRoles} {
		page.Show(sel).OnClick(open)
	}

	dismiss := func() { page.Hide(container) }
	page.Show(layout.Company.Cancel.In(container)).OnClick(dismiss)
	page.Show(layout.Company.Close.In(container)).OnClick(dismiss)
	page.Show(layout.Company.Save.In(container)).OnClick(func() {
		if a.acceptsAll {
			dismiss()
			return
		}
		page.Show(layout.CompanyFields.ValidationError.In(container)).Text("Name is required")
	})
}

type harness struct {
	app    *fakeApp
	sink   *report.Memory
	runner *orchestrator.Runner
	env    *Env
	log    *logger.TestLogger
}

func newHarness(t *testing.T, app *fakeApp) *harness {
	t.Helper()
	log := logger.NewTestLogger()
	roles, err := credentials.Load(context.Background(), credentials.DefaultEntries(), []credentials.SecretSource{testSecrets}, log)
	require.NoError(t, err)

	env := &Env{
		Layout:   DefaultLayout(),
		Auth:     auth.Config{BaseURL: testBaseURL, IdPMarker: "okta"},
		Timeouts: wait.Fast(),
		Roles:    roles,
	}

	config := orchestrator.DefaultConfig()
	config.RunID = "run-1"
	config.Retries = 0
	config.OutputDir = t.TempDir()

	sink := report.NewMemory()
	hook := instrument.NewHook(sink, instrument.DefaultConfig(), log)
	runner, err := orchestrator.NewRunner(&pagedriver.FakeLauncher{NewPage: app.page}, hook, sink, config, log)
	require.NoError(t, err)
	return &harness{app: app, sink: sink, runner: runner, env: env, log: log}
}

func (h *harness) run(t *testing.T, grep string) []report.Result {
	t.Helper()
	cases, err := orchestrator.Select(h.env.Cases(), grep)
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	projects, err := orchestrator.SelectProjects(orchestrator.Projects(orchestrator.DefaultProjectDefaults()), []string{"Chrome"})
	require.NoError(t, err)

	summary, err := h.runner.Run(context.Background(), projects, cases)
	require.NoError(t, err)
	return summary.Results
}

func statuses(results []report.Result) map[string]testctx.Status {
	out := make(map[string]testctx.Status, len(results))
	for _, r := range results {
		out[r.Ref.CaseID] = r.Status
	}
	return out
}

func TestCases_UniqueIdentifiers(t *testing.T) {
	env := &Env{}
	seen := map[string]bool{}
	for _, c := range env.Cases() {
		require.NoError(t, c.Validate())
		assert.False(t, seen[c.ID()], "duplicate %s", c.ID())
		seen[c.ID()] = true
		assert.NotEmpty(t, c.Suite)
		assert.NotEmpty(t, c.Role)
	}
	assert.Len(t, seen, 17)
}

func TestCases_RolesResolve(t *testing.T) {
	roles, err := credentials.Load(context.Background(), credentials.DefaultEntries(), []credentials.SecretSource{testSecrets}, logger.NewTestLogger())
	require.NoError(t, err)

	for _, c := range (&Env{}).Cases() {
		_, err := roles.Get(c.Role)
		assert.NoError(t, err, c.Title)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 2, dialogOpen: true})

	results := h.run(t, "^login$")

	assert.Equal(t, map[string]testctx.Status{
		"SB-1001": testctx.StatusPassed,
		"SB-1002": testctx.StatusPassed,
		"SB-1003": testctx.StatusPassed,
	}, statuses(results))
	assert.Equal(t, []string{"goto " + testBaseURL}, h.app.pages[0].Actions()[:1])
	assert.Equal(t, testIdPURL, h.app.pages[0].URL())
}

func TestLogin_SecretsNeverLogged(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 2})
	h.run(t, "^login$")

	for _, secret := range testSecrets {
		assert.False(t, h.log.Contains(secret))
	}
}

func TestLogin_WrongSecretFailsTheValidCase(t *testing.T) {
	app := &fakeApp{rows: 2}
	h := newHarness(t, app)
	roles, err := credentials.Load(context.Background(), credentials.DefaultEntries(), []credentials.SecretSource{credentials.Secrets{RoleAdmin: "stale"}}, h.log)
	require.NoError(t, err)
	h.env.Roles = roles

	results := h.run(t, "with valid credentials")

	require.Len(t, results, 1)
	assert.Equal(t, testctx.StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "redirect to application")
}

func TestDashboard_SearchRestoresRows(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 5})

	results := h.run(t, "^dashboard$")

	assert.Equal(t, map[string]testctx.Status{
		"SB-1004": testctx.StatusPassed,
		"SB-1005": testctx.StatusPassed,
		"SB-1006": testctx.StatusPassed,
	}, statuses(results))
	assert.True(t, h.log.Contains("grid search checked"))
}

func TestDashboard_MissingGridFails(t *testing.T) {
	app := &fakeApp{rows: 5}
	h := newHarness(t, app)
	h.env.Layout.Grid.Container = pagedriver.CSS("#no-grid")

	results := h.run(t, "dashboard loads")

	require.Len(t, results, 1)
	assert.Equal(t, testctx.StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "dashboard grid visible")
	// Failure evidence is still delivered.
	attachments := h.sink.Attachments(results[0].Ref)
	require.NotEmpty(t, attachments)
	assert.Equal(t, "video/webm", attachments[0].ContentType)
}

func TestCompany(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 3, dialogOpen: true})

	results := h.run(t, "^company$")

	assert.Equal(t, map[string]testctx.Status{
		"SB-1007": testctx.StatusPassed,
		"SB-1008": testctx.StatusPassed,
		"SB-1009": testctx.StatusPassed,
		"SB-1010": testctx.StatusPassed,
	}, statuses(results))
	for _, r := range results {
		assert.Equal(t, RoleSupport, r.Role)
	}
}

func TestCompany_AcceptedEmptyFormFails(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 3, dialogOpen: true, acceptsAll: true})

	results := h.run(t, "company dialog validation")

	require.Len(t, results, 1)
	assert.Equal(t, testctx.StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "empty company form was accepted")
}

func TestRowDialogs_EmptyGridSkipsWithoutDialogActions(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 0, dialogOpen: true})

	results := h.run(t, "edit company|delete company|groups|user roles|role checkboxes")

	require.Len(t, results, 9)
	layout := DefaultLayout()
	for i, r := range results {
		assert.Equal(t, testctx.StatusSkipped, r.Status, r.Ref.Title)
		assert.Contains(t, r.Error, "grid has no rows")

		page := h.app.pages[i]
		for _, sel := range []pagedriver.Selector{layout.Grid.Edit, layout.Grid.Delete, layout.Grid.Groups, layout.Grid.UserRoles} {
			assert.Zero(t, page.Element(sel).Clicks())
		}
	}
}

func TestRowDialogs_DialogThatNeverOpensSkips(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 2, dialogOpen: false})

	results := h.run(t, "open groups dialog")

	require.Len(t, results, 1)
	assert.Equal(t, testctx.StatusSkipped, results[0].Status)
	assert.Contains(t, results[0].Error, "groups dialog did not open")
	assert.Equal(t, 1, h.app.pages[0].Element(DefaultLayout().Grid.Groups).Clicks())
}

func TestGroupsAndUserRoles(t *testing.T) {
	h := newHarness(t, &fakeApp{rows: 2, dialogOpen: true})

	results := h.run(t, "^(groups|userroles)$")

	require.Len(t, results, 7)
	for _, r := range results {
		assert.Equal(t, testctx.StatusPassed, r.Status, r.Ref.Title)
		tags := h.sink.Annotations(r.Ref)
		require.NotEmpty(t, tags)
		assert.Equal(t, testctx.Annotation{Kind: testctx.Identifier, Value: r.Ref.CaseID}, tags[0])
	}
	assert.True(t, h.log.Contains("role checkboxes probed"))
	assert.True(t, h.log.Contains("users filtered"))
}
