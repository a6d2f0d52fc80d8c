package wait

import "time"

// Timeouts are the bounds injected into every page component.
type Timeouts struct {
	VariantProbe     time.Duration `mapstructure:"variant_probe"`
	SecretField      time.Duration `mapstructure:"secret_field"`
	Redirect         time.Duration `mapstructure:"redirect"`
	UserMenu         time.Duration `mapstructure:"user_menu"`
	DialogProbe      time.Duration `mapstructure:"dialog_probe"`
	DialogTransition time.Duration `mapstructure:"dialog_transition"`
	DialogStable     time.Duration `mapstructure:"dialog_stable"`
	ItemWait         time.Duration `mapstructure:"item_wait"`
	RowWait          time.Duration `mapstructure:"row_wait"`
	GridVisible      time.Duration `mapstructure:"grid_visible"`
	AccessDenied     time.Duration `mapstructure:"access_denied"`
	Notice           time.Duration `mapstructure:"notice"`
	Spinner          time.Duration `mapstructure:"spinner"`
	SearchSettle     time.Duration `mapstructure:"search_settle"`
	GridSettle       time.Duration `mapstructure:"grid_settle"`
}

// DefaultTimeouts returns the bounds the suite was tuned against.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		VariantProbe:     60 * time.Second,
		SecretField:      30 * time.Second,
		Redirect:         30 * time.Second,
		UserMenu:         2 * time.Second,
		DialogProbe:      2 * time.Second,
		DialogTransition: 10 * time.Second,
		DialogStable:     250 * time.Millisecond,
		ItemWait:         5 * time.Second,
		RowWait:          10 * time.Second,
		GridVisible:      30 * time.Second,
		AccessDenied:     5 * time.Second,
		Notice:           5 * time.Second,
		Spinner:          30 * time.Second,
		SearchSettle:     300 * time.Millisecond,
		GridSettle:       500 * time.Millisecond,
	}
}

// Fast returns short bounds for exercising the flows against an in-memory page.
func Fast() Timeouts {
	return Timeouts{
		VariantProbe:     60 * time.Millisecond,
		SecretField:      100 * time.Millisecond,
		Redirect:         100 * time.Millisecond,
		UserMenu:         20 * time.Millisecond,
		DialogProbe:      20 * time.Millisecond,
		DialogTransition: 100 * time.Millisecond,
		DialogStable:     5 * time.Millisecond,
		ItemWait:         30 * time.Millisecond,
		RowWait:          30 * time.Millisecond,
		GridVisible:      100 * time.Millisecond,
		AccessDenied:     30 * time.Millisecond,
		Notice:           30 * time.Millisecond,
		Spinner:          30 * time.Millisecond,
		SearchSettle:     time.Millisecond,
		GridSettle:       time.Millisecond,
	}
}
