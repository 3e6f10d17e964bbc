// internal/cli/login.go
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/21prnv/InfluenceIq/internal/app"
	"github.com/21prnv/InfluenceIq/internal/auth"
	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/ui"
)

var (
	loginUsername    string
	loginInteractive bool
	loginTimeout     string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Logs in to Instagram and stores the session cookies for later runs.

By default the credentials are typed into a headless browser. The password
comes from IQSCRAPE_PASSWORD or is prompted for. With --interactive a visible
browser opens and you complete the login yourself, including any
verification step.`,
	Example: `  # Credential login, password prompted
  iqscrape login --username=space_fan

  # Manual login in a visible browser, saved as "work"
  iqscrape login --interactive --session=work`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account to log in as (default IQSCRAPE_USERNAME)")
	loginCmd.Flags().BoolVarP(&loginInteractive, "interactive", "i", false, "Log in manually in a visible browser")
	loginCmd.Flags().StringVar(&loginTimeout, "login-timeout", "5m", "Timeout for an interactive login")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	name := a.Config.SessionName

	timeout, err := time.ParseDuration(loginTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	fmt.Printf("\n%s\n", ui.Bold("🔐 Login"))
	fmt.Printf("%s\n\n", ui.Dim(strings.Repeat("━", 50)))
	fmt.Printf("  %s %s\n", ui.Bold("Session:"), name)
	fmt.Printf("  %s %s\n\n", ui.Bold("Storage:"), a.Config.SessionBackend)

	unlock, err := auth.Lock(cmd.Context(), a.Config.SessionDir, name)
	if err != nil {
		return err
	}
	defer unlock()

	var session *auth.Session
	if loginInteractive {
		session, err = auth.InteractiveLogin(cmd.Context(), a.Launcher, auth.InteractiveOptions{
			Options: a.AuthOptions(),
			Name:    name,
			Timeout: timeout,
		}, os.Stdout)
	} else {
		session, err = credentialLogin(cmd, a, name)
	}
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	log.Info().Str("session", name).Int("cookies", len(session.Cookies)).Msg("Saving session")
	if err := a.Sessions.Save(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Println(ui.Success("\n✓ Session saved successfully!"))
	fmt.Printf("\n%s\n", ui.Bold("You can now scrape with:"))
	fmt.Printf("  %s\n\n", ui.Command("iqscrape scrape <account> --session="+name))
	if !session.ExpiresAt.IsZero() {
		fmt.Printf("Session expires: %s\n\n", session.ExpiresAt.Format(time.RFC1123))
	}
	return nil
}

func credentialLogin(cmd *cobra.Command, a *app.Application, name string) (*auth.Session, error) {
	creds := auth.Credentials{Username: a.Config.Username, Password: a.Config.Password}
	if loginUsername != "" {
		creds.Username = loginUsername
	}

	in := bufio.NewReader(os.Stdin)
	if creds.Username == "" {
		fmt.Print("Username: ")
		line, _ := in.ReadString('\n')
		creds.Username = strings.TrimSpace(line)
	}
	if creds.Password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, fmt.Errorf("%w: set IQSCRAPE_PASSWORD", auth.ErrMissingCredentials)
		}
		fmt.Print("Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = string(pw)
	}

	handle, err := a.Launcher.Launch(cmd.Context(), browser.LaunchOptions{
		Proxy:    a.Config.Proxy,
		Headless: a.Config.BrowserHeadless,
	})
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	fmt.Printf("Logging in as %s...\n", ui.Bold(creds.Username))
	return auth.Login(cmd.Context(), handle.Page(), name, creds, a.AuthOptions())
}
