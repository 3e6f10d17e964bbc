// internal/cli/sessions_import.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/21prnv/InfluenceIq/internal/auth"
	"github.com/21prnv/InfluenceIq/internal/browser"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

var (
	importFormat string
	importFile   string
)

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-name>",
	Short: "Create a session from browser cookies",
	Long: `Creates a session from cookies copied out of your own browser.

This is useful in headless environments (Codespaces, dev containers) where
neither a credential login nor an interactive login works.

Steps:
1. Open instagram.com in your regular browser and log in
2. Open DevTools (F12) → Application → Cookies
3. Copy at least sessionid and csrftoken
4. Use this command to import them`,
	Example: `  # Enter cookies one by one
  iqscrape sessions import default

  # From a Netscape/curl cookie jar
  iqscrape sessions import default --format=netscape --file=cookies.txt

  # From a JSON export
  iqscrape sessions import default --format=json < cookies.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().StringVar(&importFormat, "format", "interactive", "Import format: interactive, json, netscape")
	sessionsImportCmd.Flags().StringVar(&importFile, "file", "", "Read cookies from this file instead of stdin")
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	name := args[0]
	if err := auth.ValidateName(name); err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if importFile != "" {
		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	fmt.Printf("\n🔐 Import Session: %s\n", name)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	var (
		cookies []browser.Cookie
		err     error
	)
	switch importFormat {
	case "interactive":
		cookies, err = importInteractive(in, a.Config.RequiredCookies)
	case "json":
		cookies, err = auth.ParseJSONCookies(in)
	case "netscape":
		cookies, err = auth.ParseNetscapeCookies(in)
	default:
		return fmt.Errorf("unsupported format: %s (use: interactive, json, netscape)", importFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	s := auth.NewSession(name, urlutil.HomeURL(a.Config.BaseURL), cookies, time.Now())
	if missing := s.Missing(a.Config.RequiredCookies...); len(missing) > 0 {
		fmt.Printf("⚠️  Missing %s: scrape runs will log in again\n", strings.Join(missing, ", "))
	}

	unlock, err := auth.Lock(cmd.Context(), a.Config.SessionDir, name)
	if err != nil {
		return err
	}
	defer unlock()
	if err := a.Sessions.Save(s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Printf("\n✅ Session '%s' created successfully!\n", name)
	fmt.Printf("   Cookies: %d\n", len(cookies))
	if !s.ExpiresAt.IsZero() {
		fmt.Printf("   Expires: %s\n", s.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Printf("\nCheck it with:\n  iqscrape sessions probe %s\n\n", name)
	return nil
}

// importInteractive reads name/value pairs until an empty name.
func importInteractive(in io.Reader, required []string) ([]browser.Cookie, error) {
	fmt.Println("📋 Enter each cookie's name and value. An empty name finishes.")
	fmt.Printf("💡 Required: %s\n", strings.Join(required, ", "))

	var cookies []browser.Cookie
	have := make(map[string]bool)
	scanner := bufio.NewScanner(in)

	for {
		var missing []string
		for _, r := range required {
			if !have[r] {
				missing = append(missing, r)
			}
		}
		if len(missing) > 0 {
			fmt.Printf("\n⚠️  Still need: %s\n", strings.Join(missing, ", "))
		}

		fmt.Print("\nCookie Name (or press Enter to finish): ")
		if !scanner.Scan() {
			break
		}
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			break
		}

		fmt.Print("Cookie Value: ")
		if !scanner.Scan() {
			break
		}
		value := strings.TrimSpace(scanner.Text())
		if value == "" {
			fmt.Println("⚠️  Skipping cookie with empty value")
			continue
		}

		cookies = append(cookies, browser.Cookie{
			Name:     name,
			Value:    value,
			Domain:   ".instagram.com",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		})
		have[name] = true
		fmt.Printf("✅ Added: %s\n", name)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
