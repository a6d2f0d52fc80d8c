package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/auth"
	"github.com/hairizuanbinnoorazman/security-e2e/credentials"
	"github.com/hairizuanbinnoorazman/security-e2e/database"
	"github.com/hairizuanbinnoorazman/security-e2e/instrument"
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
	"github.com/hairizuanbinnoorazman/security-e2e/report"
	"github.com/hairizuanbinnoorazman/security-e2e/storage"
	"github.com/hairizuanbinnoorazman/security-e2e/wait"
	"github.com/spf13/viper"
)

// PassphraseEnv names the variable holding the sealed secrets passphrase.
const PassphraseEnv = "E2E_SECRETS_PASSPHRASE"

// Config holds all application configuration.
type Config struct {
	App         auth.Config                  `mapstructure:"app"`
	Run         orchestrator.Config          `mapstructure:"run"`
	Browser     orchestrator.ProjectDefaults `mapstructure:"browser"`
	Timeouts    wait.Timeouts                `mapstructure:"timeouts"`
	Instrument  instrument.Config            `mapstructure:"instrument"`
	Credentials CredentialsConfig            `mapstructure:"credentials"`
	Report      ReportConfig                 `mapstructure:"report"`
	Artifacts   ArtifactsConfig              `mapstructure:"artifacts"`
	Database    DatabaseConfig               `mapstructure:"database"`
	Issues      IssuesConfig                 `mapstructure:"issues"`
	Server      ServerConfig                 `mapstructure:"server"`
	Log         LogConfig                    `mapstructure:"log"`
}

// CredentialsConfig locates role identities and their secrets. Secrets are
// never read from the config file.
type CredentialsConfig struct {
	SealedFile string                       `mapstructure:"sealed_file"`
	Roles      map[string]credentials.Entry `mapstructure:"roles"`
}

// ReportConfig holds report file and metrics settings.
type ReportConfig struct {
	XrayPath        string `mapstructure:"xray_path"`
	XraySummary     string `mapstructure:"xray_summary"`
	MaxEvidence     int    `mapstructure:"max_evidence"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// ArtifactsConfig holds artifact storage settings.
type ArtifactsConfig struct {
	storage.Config `mapstructure:",squash"`
	KeepPassing    bool `mapstructure:"keep_passing"`
}

// DatabaseConfig holds run history settings. History is off when disabled.
type DatabaseConfig struct {
	database.Config `mapstructure:",squash"`
	Enabled         bool `mapstructure:"enabled"`
}

// IssuesConfig selects the tracker failures are filed in. Filing is off
// when Provider is empty.
type IssuesConfig struct {
	report.IssuesConfig `mapstructure:",squash"`
	Provider            string            `mapstructure:"provider"`
	Settings            map[string]string `mapstructure:"settings"`
}

// ServerConfig holds report viewer settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	LinkSecret   string        `mapstructure:"link_secret"`
	LinkExpiry   time.Duration `mapstructure:"link_expiry"`
	Metrics      bool          `mapstructure:"metrics"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("e2e")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// E2E_APP_BASE_URL overrides app.base_url
	v.SetEnvPrefix("E2E")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.Run.KeepPassing = config.Run.KeepPassing || config.Artifacts.KeepPassing
	config.Credentials.Roles = mergeRoles(credentials.DefaultEntries(), config.Credentials.Roles)
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.base_url", "https://app.example.com/Security/")
	v.SetDefault("app.idp_marker", "okta")

	v.SetDefault("run.run_id", "")
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.retries", 1)
	v.SetDefault("run.timeout", "8m")
	v.SetDefault("run.output_dir", "test-results")
	v.SetDefault("run.keep_passing", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.ignore_https_errors", true)
	v.SetDefault("browser.action_timeout", "60s")
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.slow_mo", "100ms")

	t := wait.DefaultTimeouts()
	v.SetDefault("timeouts.variant_probe", t.VariantProbe)
	v.SetDefault("timeouts.secret_field", t.SecretField)
	v.SetDefault("timeouts.redirect", t.Redirect)
	v.SetDefault("timeouts.user_menu", t.UserMenu)
	v.SetDefault("timeouts.dialog_probe", t.DialogProbe)
	v.SetDefault("timeouts.dialog_transition", t.DialogTransition)
	v.SetDefault("timeouts.dialog_stable", t.DialogStable)
	v.SetDefault("timeouts.item_wait", t.ItemWait)
	v.SetDefault("timeouts.row_wait", t.RowWait)
	v.SetDefault("timeouts.grid_visible", t.GridVisible)
	v.SetDefault("timeouts.access_denied", t.AccessDenied)
	v.SetDefault("timeouts.notice", t.Notice)
	v.SetDefault("timeouts.spinner", t.Spinner)
	v.SetDefault("timeouts.search_settle", t.SearchSettle)
	v.SetDefault("timeouts.grid_settle", t.GridSettle)

	v.SetDefault("instrument.project_tag", "SB")
	v.SetDefault("instrument.execution_type", "Automated")
	v.SetDefault("instrument.screenshot_on_failure", true)
	v.SetDefault("instrument.teardown_timeout", "30s")

	v.SetDefault("credentials.sealed_file", "")

	v.SetDefault("report.xray_path", "test-results/xray-report.json")
	v.SetDefault("report.xray_summary", "Security E2E run")
	v.SetDefault("report.max_evidence", 10*1024*1024)
	v.SetDefault("report.metrics_textfile", "test-results/e2e.prom")

	v.SetDefault("artifacts.type", "local")
	v.SetDefault("artifacts.base_dir", "test-results/artifacts")
	v.SetDefault("artifacts.bucket", "")
	v.SetDefault("artifacts.region", "us-east-1")
	v.SetDefault("artifacts.endpoint", "")
	v.SetDefault("artifacts.path_style", false)
	v.SetDefault("artifacts.access_key", "")
	v.SetDefault("artifacts.secret_key", "")
	v.SetDefault("artifacts.presign_expiry", "15m")
	v.SetDefault("artifacts.keep_passing", false)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "test-results/history.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "security_e2e")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)

	v.SetDefault("issues.provider", "")
	v.SetDefault("issues.project_key", "")
	v.SetDefault("issues.issue_type", "Bug")
	v.SetDefault("issues.label_prefix", "e2e-")
	v.SetDefault("issues.interval", "1s")
	v.SetDefault("issues.burst", 1)
	v.SetDefault("issues.max_attachments", 3)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.link_secret", "")
	v.SetDefault("server.link_expiry", "1h")
	v.SetDefault("server.metrics", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// mergeRoles overlays configured roles on defaults. Viper folds keys to
// lower case, so configured names match default names case-insensitively.
func mergeRoles(defaults, configured map[string]credentials.Entry) map[string]credentials.Entry {
	out := make(map[string]credentials.Entry, len(defaults)+len(configured))
	for name, e := range defaults {
		out[name] = e
	}
	for name, e := range configured {
		target := name
		for known := range defaults {
			if strings.EqualFold(known, name) {
				target = known
				break
			}
		}
		base := out[target]
		if e.Identity != "" {
			base.Identity = e.Identity
		}
		if e.Workspace != "" {
			base.Workspace = e.Workspace
		}
		if e.DisplayName != "" {
			base.DisplayName = e.DisplayName
		}
		if e.Expected != "" {
			base.Expected = e.Expected
		}
		out[target] = base
	}
	return out
}

// redacted returns a copy of c safe to print.
func (c Config) redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Database.Password = mask(c.Database.Password)
	c.Artifacts.SecretKey = mask(c.Artifacts.SecretKey)
	c.Server.LinkSecret = mask(c.Server.LinkSecret)
	settings := make(map[string]string, len(c.Issues.Settings))
	for k, v := range c.Issues.Settings {
		if strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "password") {
			v = mask(v)
		}
		settings[k] = v
	}
	c.Issues.Settings = settings
	return c
}
