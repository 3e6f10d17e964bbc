// internal/cli/sessions.go
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/21prnv/InfluenceIq/internal/auth"
	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/ui"
)

var deleteForce bool

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `List, inspect, probe, import and delete stored sessions.

A session holds the platform cookies captured after a login. Scrape runs
reuse it until the platform stops accepting it.`,
	Example: `  # List stored sessions
  iqscrape sessions list

  # Check whether a session is still accepted
  iqscrape sessions probe default

  # Delete a session
  iqscrape sessions delete old --force`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "Show a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsProbeCmd = &cobra.Command{
	Use:   "probe <session-name>",
	Short: "Check a stored session against the platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsProbe,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsViewCmd, sessionsDeleteCmd, sessionsProbeCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Do not ask for confirmation")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store := GetAppFromCmd(cmd).Sessions
	names, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("\nNo stored sessions.")
		fmt.Println("\nCreate one with:")
		fmt.Println("  iqscrape login")
		fmt.Println()
		return nil
	}

	fmt.Printf("\n📋 Stored Sessions (%d)\n", len(names))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for i, name := range names {
		fmt.Printf("\n%d. %s\n", i+1, name)
		s, err := store.Load(name)
		if err != nil {
			fmt.Printf("   ⚠️  Error loading: %v\n", err)
			continue
		}
		fmt.Printf("   Cookies:  %d\n", len(s.Cookies))
		fmt.Printf("   Captured: %s\n", s.CapturedAt.Format(time.RFC1123))
		printExpiry(s)
	}
	fmt.Println()
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	name := args[0]
	s, err := GetAppFromCmd(cmd).Sessions.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}

	fmt.Printf("\n🔍 Session Details: %s\n", name)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("\nName:      %s\n", s.Name)
	fmt.Printf("URL:       %s\n", s.URL)
	fmt.Printf("Captured:  %s\n", s.CapturedAt.Format(time.RFC1123))
	printExpiry(s)

	fmt.Printf("\nCookies (%d):\n", len(s.Cookies))
	for _, c := range s.Cookies {
		// Values are credentials; never print them.
		fmt.Printf("  • %s (domain: %s)\n", c.Name, c.Domain)
	}
	fmt.Println()
	return nil
}

func printExpiry(s *auth.Session) {
	if s.ExpiresAt.IsZero() {
		return
	}
	if s.Expired(time.Now()) {
		fmt.Printf("   Status:   ⚠️  Expired (%s ago)\n", time.Since(s.ExpiresAt).Round(time.Hour))
		return
	}
	fmt.Printf("   Expires:  %s (in %s)\n", s.ExpiresAt.Format(time.RFC1123), time.Until(s.ExpiresAt).Round(time.Hour))
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if !deleteForce {
		fmt.Printf("\n⚠️  Delete session '%s'? [y/N]: ", name)
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := GetAppFromCmd(cmd).Sessions.Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("\n✓ Session '%s' deleted.\n\n", name)
	return nil
}

func runSessionsProbe(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	name := args[0]

	s, err := a.Sessions.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.Config.StepTimeout)
	defer cancel()

	handle, err := a.Launcher.Launch(ctx, browser.LaunchOptions{Proxy: a.Config.Proxy, Headless: a.Config.BrowserHeadless})
	if err != nil {
		return err
	}
	defer handle.Close()

	status, err := auth.Probe(ctx, handle.Page(), s, a.AuthOptions())
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	if status == auth.StatusValid {
		fmt.Printf("%s session '%s' is %s\n", ui.Success("✓"), name, status)
		return nil
	}
	fmt.Printf("%s session '%s' is %s\n", ui.Error("✗"), name, status)
	return withExitCode(3, nil)
}
