package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSlotTaken = errors.New("slot taken")

type testSlot struct {
	owner string
}

func (s *testSlot) Acquire(owner string) error {
	if s.owner != "" {
		return errSlotTaken
	}
	s.owner = owner
	return nil
}

func (s *testSlot) Release(owner string) {
	if s.owner == owner {
		s.owner = ""
	}
}

func testLayout(save string) Layout {
	return Layout{
		Container: pagedriver.CSS(`[role="dialog"]`),
		Title:     pagedriver.CSS(".MuiDialogTitle-root"),
		Items:     pagedriver.CSS(".MuiListItem-root").Or(pagedriver.CSS(`[role="option"]`)),
		Search:    pagedriver.Placeholder("search"),
		Save:      pagedriver.Role("button", save),
		Cancel:    pagedriver.Role("button", "cancel"),
		Close:     pagedriver.CSS(`[aria-label="close"]`).Or(pagedriver.Role("button", "close")),
	}
}

func companyFields() CompanyFields {
	return CompanyFields{
		Name:            pagedriver.Label("company name|name"),
		Description:     pagedriver.Label("description"),
		Active:          pagedriver.Role("checkbox", "active"),
		ValidationError: pagedriver.CSS(".MuiFormHelperText-root.Mui-error"),
	}
}

func scoped(layout Layout, sel pagedriver.Selector) pagedriver.Selector {
	return sel.In(layout.Container)
}

// scriptDialog wires cancel and close to remove the dialog and save to show
// a validation error while the name is empty.
func scriptDialog(page *pagedriver.Fake, layout Layout, fields *CompanyFields) {
	dismiss := func() { page.Hide(layout.Container) }
	page.Show(scoped(layout, layout.Cancel)).OnClick(dismiss)
	page.Show(scoped(layout, pagedriver.CSS(`[aria-label="close"]`))).OnClick(dismiss)
	page.Show(scoped(layout, layout.Save)).OnClick(func() {
		if fields != nil && page.Element(scoped(layout, fields.Name)).Value() == "" {
			page.Show(scoped(layout, fields.ValidationError)).Text(" Name is required ")
			return
		}
		dismiss()
	})
}

func newCompany(page *pagedriver.Fake, slot Slot) *CompanyDialog {
	return NewCompanyDialog(page, testLayout("save|submit|create|update"), companyFields(), slot, wait.Fast(), logger.NewTestLogger())
}

func TestHandle_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []State
		wantErr bool
	}{
		{"open and cancel", []State{Opening, Open, Closing, Closed}, false},
		{"save accepted", []State{Opening, Open, Submitting, Closed}, false},
		{"save rejected then cancel", []State{Opening, Open, Submitting, Open, Closing, Closed}, false},
		{"open failed", []State{Opening, Closed}, false},
		{"skip opening", []State{Open}, true},
		{"submit while opening", []State{Opening, Submitting}, true},
		{"reopen while open", []State{Opening, Open, Opening}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandle(Company, &testSlot{})
			var err error
			for _, s := range tt.path {
				if err = h.transition(s); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, append([]State{Closed}, tt.path...), h.History())
		})
	}
}

func TestHandle_SlotHeldOnlyWhileOpen(t *testing.T) {
	slot := &testSlot{}
	h := newHandle(Groups, slot)

	require.NoError(t, h.transition(Opening))
	assert.Empty(t, slot.owner)
	require.NoError(t, h.transition(Open))
	assert.Equal(t, "groups", slot.owner)
	require.NoError(t, h.transition(Submitting))
	require.NoError(t, h.transition(Open))
	assert.Equal(t, "groups", slot.owner)
	require.NoError(t, h.transition(Closing))
	require.NoError(t, h.transition(Closed))
	assert.Empty(t, slot.owner)
}

func TestWaitForOpen_IsStable(t *testing.T) {
	page := pagedriver.NewFake()
	d := newCompany(page, &testSlot{})
	page.Element(d.layout.Container).AppearAfter(10 * time.Millisecond)

	require.NoError(t, d.Triggered())
	require.NoError(t, d.WaitForOpen(context.Background()))

	assert.True(t, d.IsOpen(context.Background()))
	assert.Equal(t, Open, d.Handle().State())
}

func TestWaitForOpen_RejectsTransientDialog(t *testing.T) {
	page := pagedriver.NewFake()
	d := newCompany(page, &testSlot{})
	page.Show(d.layout.Container).DisappearAfter(2 * time.Millisecond)

	require.NoError(t, d.Triggered())
	err := d.WaitForOpen(context.Background())

	require.Error(t, err)
	assert.True(t, wait.IsAssertion(err))
	assert.Equal(t, Closed, d.Handle().State())
}

func TestWaitForOpen_NeverRenders(t *testing.T) {
	page := pagedriver.NewFake()
	d := newCompany(page, &testSlot{})

	err := d.WaitForOpen(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "company dialog visible")
	assert.False(t, d.IsOpen(context.Background()))
	assert.Equal(t, Closed, d.Handle().State())
}

func TestWaitForOpen_OneDialogPerSlot(t *testing.T) {
	page := pagedriver.NewFake()
	slot := &testSlot{}
	company := newCompany(page, slot)
	groups := NewGroupsDialog(page, testLayout("save|apply|submit"), MembershipControls{}, slot, wait.Fast(), logger.NewTestLogger())
	page.Show(company.layout.Container)

	require.NoError(t, company.WaitForOpen(context.Background()))
	err := groups.WaitForOpen(context.Background())

	assert.ErrorIs(t, err, errSlotTaken)
	assert.Equal(t, "company", slot.owner)
}

func TestCompany_EmptySaveShowsValidationThenCancels(t *testing.T) {
	page := pagedriver.NewFake()
	slot := &testSlot{}
	d := newCompany(page, slot)
	fields := companyFields()
	page.Show(d.layout.Container)
	scriptDialog(page, d.layout, &fields)
	ctx := context.Background()

	require.NoError(t, d.WaitForOpen(ctx))
	require.NoError(t, d.Save(ctx))
	assert.Equal(t, Submitting, d.Handle().State())

	assert.True(t, d.HasValidationError(ctx))
	assert.Equal(t, "Name is required", d.ValidationErrorText(ctx))
	assert.Equal(t, Open, d.Handle().State())
	assert.True(t, d.IsOpen(ctx))

	require.NoError(t, d.Cancel(ctx))
	require.NoError(t, d.WaitForClose(ctx))
	assert.Equal(t, Closed, d.Handle().State())
	assert.Empty(t, slot.owner)
	assert.Equal(t, []State{Closed, Opening, Open, Submitting, Open, Closing, Closed}, d.Handle().History())
}

func TestCompany_SeveralFieldErrorsCountAsValidation(t *testing.T) {
	page := pagedriver.NewFake().Strict()
	d := newCompany(page, &testSlot{})
	fields := companyFields()
	page.Show(d.layout.Container)
	scriptDialog(page, d.layout, &fields)
	ctx := context.Background()

	require.NoError(t, d.WaitForOpen(ctx))
	require.NoError(t, d.Save(ctx))
	page.Element(scoped(d.layout, fields.ValidationError)).Count(2)

	assert.True(t, d.HasValidationError(ctx))
	assert.Equal(t, "Name is required", d.ValidationErrorText(ctx))
	assert.Equal(t, Open, d.Handle().State())
}

func TestCompany_FilledSaveCloses(t *testing.T) {
	page := pagedriver.NewFake()
	d := newCompany(page, nil)
	fields := companyFields()
	page.Show(d.layout.Container)
	scriptDialog(page, d.layout, &fields)
	page.Show(scoped(d.layout, fields.Name))
	page.Show(scoped(d.layout, fields.Description))
	active := page.Show(scoped(d.layout, fields.Active))
	ctx := context.Background()

	require.NoError(t, d.WaitForOpen(ctx))
	require.NoError(t, d.FillName(ctx, "Acme"))
	require.NoError(t, d.FillDescription(ctx, "Widgets"))
	require.NoError(t, d.ToggleActive(ctx))
	require.NoError(t, d.Save(ctx))
	require.NoError(t, d.WaitForClose(ctx))

	assert.False(t, d.HasValidationError(ctx))
	assert.Equal(t, 1, active.Clicks())
	assert.Equal(t, Closed, d.Handle().State())
}

func TestWaitForClose_FailsWhileDialogStays(t *testing.T) {
	page := pagedriver.NewFake()
	d := newCompany(page, nil)
	page.Show(d.layout.Container)
	page.Show(scoped(d.layout, d.layout.Cancel))
	ctx := context.Background()

	require.NoError(t, d.WaitForOpen(ctx))
	require.NoError(t, d.Cancel(ctx))
	err := d.WaitForClose(ctx)

	require.Error(t, err)
	assert.True(t, wait.IsAssertion(err))
	assert.Equal(t, Closing, d.Handle().State())
}

func TestSaveRequiresOpenDialog(t *testing.T) {
	d := newCompany(pagedriver.NewFake(), nil)
	assert.ErrorIs(t, d.Save(context.Background()), ErrInvalidTransition)
}

func TestItemCountAndSearch(t *testing.T) {
	page := pagedriver.NewFake()
	layout := testLayout("save|apply|submit")
	d := NewGroupsDialog(page, layout, MembershipControls{}, nil, wait.Fast(), logger.NewTestLogger())
	ctx := context.Background()

	assert.Zero(t, d.ItemCount(ctx))
	assert.False(t, d.SearchAvailable(ctx))

	page.Element(scoped(layout, pagedriver.CSS(".MuiListItem-root"))).Count(3)
	search := page.Show(scoped(layout, layout.Search))

	assert.Equal(t, 3, d.ItemCount(ctx))
	assert.True(t, d.SearchAvailable(ctx))
	require.NoError(t, d.Search(ctx, "Test"))
	assert.Equal(t, "Test", search.Value())
}

func TestGroups_SelectAndMembership(t *testing.T) {
	page := pagedriver.NewFake()
	layout := testLayout("save|apply|submit")
	controls := MembershipControls{Add: pagedriver.Role("button", "add"), Remove: pagedriver.Role("button", "remove")}
	d := NewGroupsDialog(page, layout, controls, nil, wait.Fast(), logger.NewTestLogger())
	ctx := context.Background()

	group := page.Show(scoped(layout, pagedriver.LiteralText("Auditors")))
	add := page.Show(scoped(layout, controls.Add))

	require.NoError(t, d.SelectGroup(ctx, "Auditors"))
	require.NoError(t, d.ClickAdd(ctx))
	assert.Equal(t, 1, group.Clicks())
	assert.Equal(t, 1, add.Clicks())
	assert.ErrorIs(t, d.ClickRemove(ctx), pagedriver.ErrNotFound)
	assert.ErrorIs(t, d.SelectGroup(ctx, "Missing"), pagedriver.ErrNotFound)
}

func TestUserRoles_RoleToggles(t *testing.T) {
	page := pagedriver.NewFake()
	layout := testLayout("save|apply|submit")
	fields := UserRolesFields{Roles: map[Role]pagedriver.Selector{
		RoleAdmin:   pagedriver.Role("checkbox", "admin"),
		RoleSupport: pagedriver.Role("checkbox", "support"),
		RoleUser:    pagedriver.Role("checkbox", "user"),
	}}
	d := NewUserRolesDialog(page, layout, fields, nil, wait.Fast(), logger.NewTestLogger())
	ctx := context.Background()

	admin := page.Show(scoped(layout, fields.Roles[RoleAdmin]))
	page.Show(scoped(layout, pagedriver.LiteralText("Automation 3")))

	assert.True(t, d.RoleVisible(ctx, RoleAdmin, 20*time.Millisecond))
	assert.False(t, d.RoleVisible(ctx, RoleSupport, 20*time.Millisecond))
	assert.False(t, d.RoleVisible(ctx, Role("owner"), 20*time.Millisecond))

	require.NoError(t, d.SelectUser(ctx, "Automation 3"))
	require.NoError(t, d.ToggleRole(ctx, RoleAdmin))
	assert.Equal(t, 1, admin.Clicks())
	assert.ErrorIs(t, d.ToggleRole(ctx, RoleUser), pagedriver.ErrNotFound)
	assert.Error(t, d.ToggleRole(ctx, Role("owner")))
}

func TestTitle(t *testing.T) {
	page := pagedriver.NewFake()
	d := newCompany(page, nil)
	page.Show(scoped(d.layout, d.layout.Title)).Text("  Add Company ")

	title, err := d.Title(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Add Company", title)
}
