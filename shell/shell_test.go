package shell

import (
	"context"
	"testing"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
	"github.com/stretchr/testify/assert"
)

func testLayout() Layout {
	return Layout{
		SuccessNotice: pagedriver.CSS(".MuiSnackbar-root .MuiAlert-standardSuccess"),
		ErrorNotice:   pagedriver.CSS(".MuiSnackbar-root .MuiAlert-standardError"),
		Spinner:       pagedriver.CSS(".MuiCircularProgress-root"),
	}
}

func TestShell_Notices(t *testing.T) {
	page := pagedriver.NewFake()
	layout := testLayout()
	s := New(page, layout, wait.Fast(), logger.NewTestLogger())

	assert.Equal(t, "", s.SuccessMessage(context.Background()))

	page.Show(layout.SuccessNotice).Text("Company saved")
	page.Show(layout.ErrorNotice).Text("Something went wrong")

	assert.Equal(t, "Company saved", s.SuccessMessage(context.Background()))
	assert.Equal(t, "Something went wrong", s.ErrorMessage(context.Background()))
}

func TestShell_WaitForLoading(t *testing.T) {
	page := pagedriver.NewFake()
	layout := testLayout()
	log := logger.NewTestLogger()
	s := New(page, layout, wait.Fast(), log)

	assert.True(t, s.WaitForLoading(context.Background()))

	page.Show(layout.Spinner)
	assert.False(t, s.WaitForLoading(context.Background()))
	assert.True(t, log.Contains("spinner still visible"))
}
