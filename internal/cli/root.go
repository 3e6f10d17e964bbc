// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/21prnv/InfluenceIq/internal/app"
	"github.com/21prnv/InfluenceIq/internal/config"
	"github.com/21prnv/InfluenceIq/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iqscrape",
	Short: "Authenticated profile extraction for Instagram",
	Long: `iqscrape logs in to Instagram, keeps the session alive across runs and
extracts a profile with its recent media into <account>_data.json.

Every run ends with exactly one result file: the data, or an error envelope
naming what went wrong.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status of the run.
// This is called by main.main().
func Execute(ctx context.Context) {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	// Post-run hooks are skipped when a command fails, so close here.
	if a := GetAppFromCmd(cmd); a != nil {
		_ = a.Close(context.Background())
	}
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, ui.Error(exit.err.Error()))
		}
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	os.Exit(1)
}

func init() {
	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	config.RegisterFlags(rootCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(helpFunc)
}

// workerFlags are the global flags a worker process inherits from its
// supervisor. The proxy and output path are chosen per job.
var workerFlags = map[string]bool{
	"verbose":         true,
	"quiet":           true,
	"json":            true,
	"user-agent":      true,
	"config":          true,
	"session":         true,
	"session-backend": true,
	"debug-dir":       true,
	"log-file":        true,
	"headful":         true,
}

// passthroughArgs renders the explicitly set global flags for a worker.
func passthroughArgs(cmd *cobra.Command) []string {
	var args []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if workerFlags[f.Name] {
			args = append(args, fmt.Sprintf("--%s=%s", f.Name, f.Value.String()))
		}
	})
	log.Debug().Strs("args", args).Msg("Worker flags")
	return args
}
