package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format only")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy for the browser (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("config", "", "Path to YAML configuration file (optional)")
	cmd.PersistentFlags().StringP("session", "s", "", "Name of the stored session to use")
	cmd.PersistentFlags().String("session-backend", "", "Session storage: file, keyring, auto")
	cmd.PersistentFlags().String("output-dir", "", "Directory for <account>_data.json results")
	cmd.PersistentFlags().String("debug-dir", "", "Directory for failure diagnostics")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this rotating file")
	cmd.PersistentFlags().Bool("headful", false, "Show the browser window")
}
