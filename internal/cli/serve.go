package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/PratikDhanave/next-action-service/internal/httpserver"
	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/publish"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until SIGINT or SIGTERM.

The schema is not touched unless --migrate is given or
DB_MIGRATE_ON_START is true.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if serveMigrate || cfg.Database.MigrateOnStart {
		applied, err := st.Migrate(ctx)
		if err != nil {
			return errors.Wrap(err, "migrate")
		}
		if len(applied) == 0 {
			logging.Debug().Msg("schema up to date")
		} else {
			logging.Info().Ints("applied", applied).Msg("migrations applied")
		}
	}

	pub := publish.New(cfg.Kafka)
	defer func() {
		if err := pub.Close(); err != nil {
			logging.Warn().Err(err).Msg("publisher close failed")
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpserver.NewRouter(cfg, st, pub),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", cfg.Server.Addr).
			Str("driver", cfg.Database.Driver).
			Bool("auth", len(cfg.Auth.Keys()) > 0).
			Bool("kafka", len(cfg.Kafka.Brokers) > 0).
			Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Str("addr", cfg.Server.Addr).Msg("http server failed")
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-errCh
}
