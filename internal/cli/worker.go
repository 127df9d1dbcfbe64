package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"analyzeit/internal/bootstrap"
	"analyzeit/internal/ingest"
)

func newWorkerCmd(v *viper.Viper) *cobra.Command {
	var (
		visibility time.Duration
		grace      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume analysis results from SQS into the record store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(v)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, cleanup, err := bootstrap.BuildWorker(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			w.VisibilityTimeout = visibility
			w.ShutdownTimeout = grace
			return w.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.Int("concurrency", v.GetInt("worker_concurrency"), "messages handled in parallel")
	_ = v.BindPFlag("worker_concurrency", flags.Lookup("concurrency"))
	flags.DurationVar(&visibility, "visibility-timeout", ingest.DefaultVisibilityTimeout, "SQS visibility timeout per receive")
	flags.DurationVar(&grace, "shutdown-timeout", ingest.DefaultShutdownTimeout, "wait for in-flight messages on shutdown")
	return cmd
}
