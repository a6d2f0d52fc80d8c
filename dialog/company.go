package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
)

// CompanyFields are the form controls of the company dialog.
type CompanyFields struct {
	Name            pagedriver.Selector
	Description     pagedriver.Selector
	Active          pagedriver.Selector
	ValidationError pagedriver.Selector
}

// CompanyDialog adds form editing to the company dialog.
type CompanyDialog struct {
	*Controller
	fields CompanyFields
}

// NewCompanyDialog creates the company dialog controller.
func NewCompanyDialog(page pagedriver.Page, layout Layout, fields CompanyFields, slot Slot, timeouts wait.Timeouts, log logger.Logger) *CompanyDialog {
	return &CompanyDialog{
		Controller: NewController(Company, page, layout, slot, timeouts, log),
		fields:     fields,
	}
}

// FillName types the company name.
func (d *CompanyDialog) FillName(ctx context.Context, name string) error {
	if err := d.in(d.fields.Name).Fill(ctx, name); err != nil {
		return fmt.Errorf("failed to fill company name: %w", err)
	}
	return nil
}

// FillDescription types the company description.
func (d *CompanyDialog) FillDescription(ctx context.Context, description string) error {
	if err := d.in(d.fields.Description).Fill(ctx, description); err != nil {
		return fmt.Errorf("failed to fill company description: %w", err)
	}
	return nil
}

// ToggleActive flips the active checkbox.
func (d *CompanyDialog) ToggleActive(ctx context.Context) error {
	return d.click(ctx, "active toggle", d.fields.Active)
}

// HasValidationError probes for a field error. A visible error after a
// submit means the dialog stayed open.
func (d *CompanyDialog) HasValidationError(ctx context.Context) bool {
	if !d.waiter.Probe(ctx, "company validation error", d.in(d.fields.ValidationError).First(), d.timeouts.DialogProbe) {
		return false
	}
	if err := d.Rejected(); err != nil {
		d.logger.Warn(ctx, "failed to record rejected submit", logger.Fields{"error": err.Error()})
	}
	return true
}

// ValidationErrorText returns the first field error, or "" when none shows.
func (d *CompanyDialog) ValidationErrorText(ctx context.Context) string {
	if !d.HasValidationError(ctx) {
		return ""
	}
	text, err := d.in(d.fields.ValidationError).First().TextContent(ctx)
	if err != nil {
		d.logger.Debug(ctx, "validation error text unreadable", logger.Fields{"error": err.Error()})
		return ""
	}
	return strings.TrimSpace(text)
}
