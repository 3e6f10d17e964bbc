package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IQSCRAPE_"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`
	LogFile  string `yaml:"log_file"`

	// Platform
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`

	// Credentials. Password is never read from the config file.
	Username string `yaml:"username"`
	Password string `yaml:"-"`

	// Sessions
	SessionName     string   `yaml:"session_name"`
	SessionBackend  string   `yaml:"session_backend"`
	SessionDir      string   `yaml:"session_dir"`
	RequiredCookies []string `yaml:"required_cookies"`

	// Output
	OutputDir string `yaml:"output_dir"`
	DebugDir  string `yaml:"debug_dir"`

	// Timing
	Budget             time.Duration `yaml:"budget"`
	StepTimeout        time.Duration `yaml:"step_timeout"`
	ItemTimeout        time.Duration `yaml:"item_timeout"`
	ProfileWaitTimeout time.Duration `yaml:"profile_wait_timeout"`
	LoginTimeout       time.Duration `yaml:"login_timeout"`
	ErrorPageWait      time.Duration `yaml:"error_page_wait"`
	LoginSettle        time.Duration `yaml:"login_settle"`
	IndexSettle        time.Duration `yaml:"index_settle"`
	ItemSettle         time.Duration `yaml:"item_settle"`
	CommentSettle      time.Duration `yaml:"comment_settle"`
	ScrollSettle       time.Duration `yaml:"scroll_settle"`

	// Extraction bounds
	ScrollIterations int      `yaml:"scroll_iterations"`
	MaxMediaItems    int      `yaml:"max_media_items"`
	MaxComments      int      `yaml:"max_comments"`
	WallMarkers      []string `yaml:"wall_markers"`

	// Rate Limiting
	NavigationRPS   float64 `yaml:"navigation_rps"`
	NavigationBurst int     `yaml:"navigation_burst"`

	// Browser
	BrowserHeadless bool     `yaml:"headless"`
	ChromePath      string   `yaml:"chrome_path"`
	Proxy           string   `yaml:"proxy"`
	Proxies         []string `yaml:"proxies"`

	// Supervision
	Isolation      string `yaml:"isolation"`
	MaxConcurrency int    `yaml:"max_concurrency"`

	// Completion webhook
	NotifyURL     string        `yaml:"notify_url"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// Default returns a Config populated with the package defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogLevel:           DefaultLogLevel,
		JSONLog:            DefaultJSONLog,
		BaseURL:            DefaultBaseURL,
		UserAgent:          DefaultUserAgent,
		SessionName:        DefaultSessionName,
		SessionBackend:     DefaultSessionBackend,
		SessionDir:         filepath.Join(home, DefaultSessionDir),
		RequiredCookies:    append([]string(nil), DefaultRequiredCookies...),
		OutputDir:          DefaultOutputDir,
		DebugDir:           DefaultDebugDir,
		Budget:             DefaultBudget,
		StepTimeout:        DefaultStepTimeout,
		ItemTimeout:        DefaultItemTimeout,
		ProfileWaitTimeout: DefaultProfileWaitTimeout,
		LoginTimeout:       DefaultLoginTimeout,
		ErrorPageWait:      DefaultErrorPageWait,
		LoginSettle:        DefaultLoginSettle,
		IndexSettle:        DefaultIndexSettle,
		ItemSettle:         DefaultItemSettle,
		CommentSettle:      DefaultCommentSettle,
		ScrollSettle:       DefaultScrollSettle,
		ScrollIterations:   DefaultScrollIterations,
		MaxMediaItems:      DefaultMaxMediaItems,
		MaxComments:        DefaultMaxComments,
		WallMarkers:        append([]string(nil), DefaultWallMarkers...),
		NavigationRPS:      DefaultNavigationRPS,
		NavigationBurst:    DefaultNavigationBurst,
		BrowserHeadless:    DefaultBrowserHeadless,
		Isolation:          DefaultIsolation,
		MaxConcurrency:     DefaultMaxConcurrency,
		NotifyTimeout:      DefaultNotifyTimeout,
	}
}

// Load builds a Config by combining defaults, an optional config file, a
// .env file, environment variables, and CLI flags, in that order.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()

	if path := flagString(cmd, "config"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()
	applyEnv(cfg)

	if cmd != nil {
		applyFlags(cfg, cmd)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := env("USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := env("PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := env("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := env("PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := env("PROXIES"); v != "" {
		cfg.Proxies = splitList(v)
	}
	if v := env("CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := env("SESSION"); v != "" {
		cfg.SessionName = v
	}
	if v := env("SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = v
	}
	if v := env("SESSION_DIR"); v != "" {
		cfg.SessionDir = v
	}
	if v := env("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := env("DEBUG_DIR"); v != "" {
		cfg.DebugDir = v
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := env("NOTIFY_URL"); v != "" {
		cfg.NotifyURL = v
	}
	if v := env("BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Budget = d
		}
	}
	if v := env("HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.BrowserHeadless = b
		}
	}
}

func applyFlags(cfg *Config, cmd *cobra.Command) {
	if s := flagString(cmd, "user-agent"); s != "" {
		cfg.UserAgent = s
	}
	if s := flagString(cmd, "proxy"); s != "" {
		cfg.Proxy = s
	}
	if s := flagString(cmd, "session"); s != "" {
		cfg.SessionName = s
	}
	if s := flagString(cmd, "session-backend"); s != "" {
		cfg.SessionBackend = s
	}
	if s := flagString(cmd, "output-dir"); s != "" {
		cfg.OutputDir = s
	}
	if s := flagString(cmd, "debug-dir"); s != "" {
		cfg.DebugDir = s
	}
	if s := flagString(cmd, "log-file"); s != "" {
		cfg.LogFile = s
	}
	if s := flagString(cmd, "budget"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.Budget = d
		}
	}
	if flagString(cmd, "json") == "true" {
		cfg.JSONLog = true
	}
	if flagString(cmd, "verbose") == "true" {
		cfg.LogLevel = "debug"
	}
	if flagString(cmd, "quiet") == "true" {
		cfg.LogLevel = "error"
	}
	if flagString(cmd, "headful") == "true" {
		cfg.BrowserHeadless = false
	}
}

// flagString reads a flag by name from the command's local or persistent set.
func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	if f := cmd.PersistentFlags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
