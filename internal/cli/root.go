// Package cli is the analyzeit command line: the web server, the result
// worker and the operator commands around them.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"analyzeit/internal/shared/config"
	"analyzeit/internal/shared/telemetry"
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCmd(config.New()).ExecuteContext(ctx)
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "analyzeit",
		Short:         "AnalyzeIt dashboard server and tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("env", v.GetString("env"), "environment (dev, local, staging, production)")
	flags.String("log-level", v.GetString("log_level"), "log level (debug, info, warn, error)")
	_ = v.BindPFlag("env", flags.Lookup("env"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(
		newServeCmd(v),
		newWorkerCmd(v),
		newMigrateCmd(v),
		newUsersCmd(v),
		newRecordsCmd(v),
	)

	return rootCmd
}

// loadConfig resolves the config after flags are parsed and points the
// process logger at it.
func loadConfig(v *viper.Viper) config.Config {
	cfg := config.FromViper(v)
	telemetry.Configure(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	return cfg
}
