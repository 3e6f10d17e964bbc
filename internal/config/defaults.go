package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel = "info"
	DefaultJSONLog  = false
	DefaultBaseURL  = "https://www.instagram.com"
	// Desktop Chrome UA; the platform serves a reduced page to unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultSessionName    = "default"
	DefaultSessionBackend = "file"
	DefaultSessionDir     = ".iqscrape/sessions"
	DefaultOutputDir      = "results"
	DefaultDebugDir       = "debug"

	DefaultBudget             = 5 * time.Minute
	DefaultStepTimeout        = 60 * time.Second
	DefaultItemTimeout        = 30 * time.Second
	DefaultProfileWaitTimeout = 30 * time.Second
	DefaultLoginTimeout       = 60 * time.Second
	DefaultErrorPageWait      = 10 * time.Second
	DefaultLoginSettle        = 5 * time.Second
	DefaultIndexSettle        = 5 * time.Second
	DefaultItemSettle         = 3 * time.Second
	DefaultCommentSettle      = 2 * time.Second
	DefaultScrollSettle       = 2 * time.Second
	DefaultScrollIterations   = 5
	DefaultMaxMediaItems      = 5
	DefaultMaxComments        = 10
	DefaultMaxConcurrency     = 4

	DefaultNavigationRPS   = 0.5
	DefaultNavigationBurst = 2

	DefaultBrowserHeadless = true
	DefaultIsolation       = "process"
	DefaultNotifyTimeout   = 10 * time.Second
)

// DefaultWallMarkers are phrases that, inside a prompt-like element, mean
// the platform is asking the visitor to authenticate.
var DefaultWallMarkers = []string{
	"log in",
	"login",
	"sign in",
	"log in to see",
	"sign up",
}

// DefaultRequiredCookies must be present after a fresh login.
var DefaultRequiredCookies = []string{"sessionid"}
