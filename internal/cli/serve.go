package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"analyzeit/internal/bootstrap"
	"analyzeit/internal/shared/server"
	"analyzeit/internal/shared/storage/db"
	"analyzeit/internal/shared/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(v)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.DB != nil && (migrate || cfg.DevLike()) {
				if err := db.RunMigrations(ctx, app.DB.DB); err != nil {
					return err
				}
			}

			// No read or write timeouts: live streams stay open for the
			// whole session.
			srv := &http.Server{
				Addr:              server.Addr(cfg.Port),
				Handler:           app.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				telemetry.Info("server.start", map[string]any{"addr": srv.Addr, "env": cfg.Env})
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				telemetry.Info("server.shutdown", map[string]any{"addr": srv.Addr})
				return srv.Shutdown(shutdownCtx)
			})
			if app.Listener != nil {
				g.Go(func() error { return app.Listener.Run(gctx) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().String("port", v.GetString("port"), "listen port")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving (always on in dev)")
	return cmd
}
