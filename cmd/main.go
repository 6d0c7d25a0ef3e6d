package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equipment_service/internal/config"
	"equipment_service/internal/handlers"
	"equipment_service/internal/logger"
	"equipment_service/internal/models"
	"equipment_service/internal/server"
	"equipment_service/internal/service"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "equipment-service",
		Short:         "Medical equipment service lifecycle API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default configs/config.yml)")

	rootCmd.AddCommand(buildServeCommand(&configFile))
	rootCmd.AddCommand(buildSweepCommand(&configFile))
	rootCmd.AddCommand(buildCreateAdminCommand(&configFile))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return rootCmd
}

func buildServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the in-process overdue sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			app, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				log.Errorw("failed to wire dependencies", "err", err)
				return err
			}
			defer app.Close()

			apiHandler := handlers.NewHandler(app.services, log,
				handlers.WithAlertHub(app.hub),
				handlers.WithMetrics(app.metrics),
				handlers.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
			)

			// context for background goroutines
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if cfg.Sweep.Interval > 0 {
				go app.services.Sweep.Run(ctx, cfg.Sweep.Interval)
			}

			// start HTTP server
			srv := &server.Server{}
			runHTTPServer(srv, cfg.HTTP, apiHandler, log)

			// graceful shutdown
			waitForShutdown(cancel, srv, log)
			return nil
		},
	}
}

func buildSweepCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one overdue sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			app, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.services.Sweep.RunOverdueSweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "overdue events: %d, escalated contingencies: %d, escalated tickets: %d, failures: %d\n",
				report.OverdueEvents, report.EscalatedContingencies, report.EscalatedTickets, report.Failures)
			if report.Failures > 0 {
				return fmt.Errorf("sweep finished with %d failures", report.Failures)
			}
			return nil
		},
	}
}

func buildCreateAdminCommand(configFile *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account; public sign-up only creates viewers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			app, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := app.services.SignUp(cmd.Context(), service.SignUpInput{
				Username: username,
				Password: password,
				Role:     models.RoleAdmin,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created with id %d\n", username, id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setup(configFile string) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.Get(cfg.Log.Level, cfg.Log.Format), nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, cfg config.HTTPConfig, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		port := cfg.Port
		if port == "" {
			port = "8080"
		}
		log.Infow("http server starting", "port", port)
		err := srv.Run(port, handler.InitRoutes(), server.Timeouts{
			ReadHeader: cfg.ReadHeaderTimeout,
			Write:      cfg.WriteTimeout,
			Idle:       cfg.IdleTimeout,
		})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
