package scenarios

import (
	"context"
	"fmt"

	"github.com/hairizuanbinnoorazman/security-e2e/dialog"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
)

// selectFirstRow waits for the grid and selects its first row. An empty
// grid skips the test; no dialog action runs without a row.
func (a *App) selectFirstRow(ctx context.Context) error {
	if err := a.Grid.WaitVisible(ctx); err != nil {
		return err
	}
	rows := a.Grid.RowCount(ctx)
	if rows == 0 {
		a.logger.Info(ctx, "grid empty, row action not exercised", nil)
		return a.tc.Skip("grid has no rows")
	}
	return a.Grid.SelectRow(ctx, 0)
}

// opened waits for a triggered dialog. A dialog that never renders is
// abandoned and the test skipped.
func (a *App) opened(ctx context.Context, d *dialog.Controller, triggerErr error) error {
	if triggerErr != nil {
		return triggerErr
	}
	if !d.IsOpen(ctx) {
		d.Abandon(ctx)
		a.logger.Info(ctx, "dialog did not open", logger.Fields{"dialog": d.Kind().String()})
		return a.tc.Skip(fmt.Sprintf("%s dialog did not open", d.Kind()))
	}
	return d.WaitForOpen(ctx)
}

type dismissal func(ctx context.Context) error

// dismissed clicks a dismiss control and waits for the dialog to go away.
func dismissed(ctx context.Context, d *dialog.Controller, dismiss dismissal) error {
	if err := dismiss(ctx); err != nil {
		return err
	}
	return d.WaitForClose(ctx)
}
