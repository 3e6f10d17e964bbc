package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/internal/supervisor"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

var (
	workerOutput string
	workerRunID  string
)

// workerCmd is the isolated unit started by scrape. It is not meant to be
// run by hand.
var workerCmd = &cobra.Command{
	Use:    "worker <account>",
	Short:  "Run one isolated scrape",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringVar(&workerOutput, "output", "", "Result file")
	workerCmd.Flags().StringVar(&workerRunID, "run-id", "", "Run id assigned by the supervisor")
	workerCmd.Flags().String("budget", "", "Time budget")
}

func runWorker(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)

	account, err := urlutil.NormalizeAccount(args[0])
	if err != nil {
		return withExitCode(1, err)
	}

	job := supervisor.Job{
		Account: account,
		RunID:   workerRunID,
		Output:  workerOutput,
		Proxy:   a.Config.Proxy,
	}
	if job.Output == "" {
		job.Output = sink.Path(a.Config.OutputDir, account)
	}

	// Workers log through the supervisor's stderr; tag them apart.
	log.Logger = log.With().Int("pid", os.Getpid()).Logger()

	start := time.Now()
	result, code := supervisor.Execute(cmd.Context(), a.Unit(nil), job, a.Config.Budget)
	log.Debug().
		Str("account", account).
		Bool("failed", result.Failed()).
		Int("exit_code", code).
		Dur("took", time.Since(start)).
		Msg("Worker done")

	return withExitCode(code, nil)
}
