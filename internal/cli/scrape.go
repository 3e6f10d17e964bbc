package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/internal/ui"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

var (
	concurrency int
	inProcess   bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <account>...",
	Short: "Extract a profile and its recent media",
	Long: `Scrapes each account in an isolated worker under a time budget.

The worker reuses the stored session when it is still valid, logs in again
when it is not, then visits the profile, its reels and up to five media items.
The outcome is written to <output-dir>/<account>_data.json.

Exit status: 0 success, 1 internal error, 2 budget exceeded,
3 blocked (login wall, missing profile, authentication), 4 result not saved.`,
	Example: `  # Scrape one account with the default 5 minute budget
  iqscrape scrape nasa

  # Several accounts, two at a time, results as JSON on stdout
  iqscrape scrape nasa esa spacex --concurrency=2 --json

  # Run in this process instead of a child worker
  iqscrape scrape https://www.instagram.com/nasa/ --in-process --budget=2m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().String("budget", "", "Time budget per account (e.g. 5m)")
	scrapeCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Accounts scraped at once (default from config)")
	scrapeCmd.Flags().BoolVar(&inProcess, "in-process", false, "Run workers in this process")
}

func runScrape(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)

	accounts := make([]string, 0, len(args))
	for _, arg := range args {
		account, err := urlutil.NormalizeAccount(arg)
		if err != nil {
			return err
		}
		accounts = append(accounts, account)
	}

	if inProcess {
		a.Config.Isolation = "inprocess"
	}
	if concurrency <= 0 {
		concurrency = a.Config.MaxConcurrency
	}

	var observer engine.Observer
	if len(accounts) == 1 && !a.Config.JSONLog && term.IsTerminal(int(os.Stderr.Fd())) {
		observer = ui.NewProgress(os.Stderr)
	}

	sup, err := a.Supervisor(observer, passthroughArgs(cmd))
	if err != nil {
		return err
	}

	results := sup.RunAll(cmd.Context(), accounts, concurrency)

	if a.Config.JSONLog {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printSummary(r, sink.Path(a.Config.OutputDir, r.Account))
		}
	}

	return withExitCode(exitStatus(results), nil)
}

// exitStatus is the status of the first failed run, or 0.
func exitStatus(results []*models.ScrapeResult) int {
	for _, r := range results {
		if r.Failed() {
			return engine.ExitCode(engine.Kind(r.Error.Kind))
		}
	}
	return 0
}

func printJSON(results []*models.ScrapeResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

func printSummary(r *models.ScrapeResult, path string) {
	if r.Failed() {
		fmt.Printf("%s %s: %s (%s)\n", ui.Error("✗"), ui.Bold(r.Account), ui.Warn(r.Error.Kind), r.Error.Message)
		if d := r.Error.Diagnostics; d != nil {
			fmt.Printf("  %s\n", ui.Info("diagnostics: "+d.HTML))
		}
		fmt.Printf("  %s\n", ui.Info(path))
		return
	}

	p := r.Profile
	fmt.Printf("%s %s", ui.Success("✓"), ui.Bold(r.Account))
	if p.DisplayName != "" {
		fmt.Printf(" (%s)", p.DisplayName)
	}
	fmt.Println()
	if p.Followers != "" || p.Following != "" || p.Posts != "" {
		fmt.Printf("  followers %s · following %s · posts %s\n", orDash(p.Followers), orDash(p.Following), orDash(p.Posts))
	}
	fmt.Printf("  %d media items, scraped %s\n", len(r.Media), r.ScrapedAt.Local().Format(time.RFC1123))
	fmt.Printf("  %s\n", ui.Info(path))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
