package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/windflowlabs/windflow/pkg/api"
	"github.com/windflowlabs/windflow/pkg/auth"
	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/metrics"
	"github.com/windflowlabs/windflow/pkg/orchestrator"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
	"github.com/windflowlabs/windflow/pkg/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WindFlow server",
	Long: `Run the WindFlow server: deployment orchestrator, stuck-deployment
sweeper, metrics collector and the HTTP/WebSocket API on one address.

The JWT signing secret comes from --jwt-secret or the
WINDFLOW_JWT_SECRET environment variable (a .env file in the working
directory is loaded if present).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		listen, _ := cmd.Flags().GetString("listen")
		localSocket, _ := cmd.Flags().GetString("local-socket")
		workDir, _ := cmd.Flags().GetString("work-dir")
		jwtSecret, _ := cmd.Flags().GetString("jwt-secret")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		sweepInterval, _ := cmd.Flags().GetDuration("sweep-interval")

		// .env is optional; flags and real environment win.
		_ = godotenv.Load()
		if jwtSecret == "" {
			jwtSecret = os.Getenv("WINDFLOW_JWT_SECRET")
		}
		if jwtSecret == "" {
			return fmt.Errorf("no JWT secret: set --jwt-secret or WINDFLOW_JWT_SECRET")
		}

		log.Init(log.Config{
			Level:      log.Level(logLevel),
			JSONOutput: logJSON,
		})
		logger := log.WithComponent("serve")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()

		if err := bootstrapAdmin(store); err != nil {
			return fmt.Errorf("failed to bootstrap admin user: %v", err)
		}

		bus := events.NewBus()
		registry := ws.NewRegistry()

		bridge := ws.NewBridge(bus, registry)
		bridge.Start()
		defer bridge.Stop()

		orch := orchestrator.New(orchestrator.Config{
			Store:   store,
			Bus:     bus,
			WorkDir: workDir,
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sweeper := orchestrator.NewSweeper(orch, orchestrator.SweeperConfig{
			Interval: sweepInterval,
		})
		sweeper.Run(ctx)
		defer sweeper.Stop()

		collector := metrics.NewCollector(store, registry)
		collector.Start()
		defer collector.Stop()

		apiServer := api.NewServer(api.Config{
			Store:    store,
			Bus:      bus,
			Registry: registry,
			Verifier: auth.NewJWTVerifier([]byte(jwtSecret), store),
			Version:  Version,
		})

		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(listen); err != nil {
				errCh <- fmt.Errorf("API server error: %v", err)
			}
		}()
		if localSocket != "" {
			_ = os.Remove(localSocket) // stale socket from a previous run
			go func() {
				if err := apiServer.StartLocal(localSocket); err != nil {
					errCh <- fmt.Errorf("local socket error: %v", err)
				}
			}()
		}

		logger.Info().
			Str("listen", listen).
			Str("data_dir", dataDir).
			Msg("server is running")

		// Wait for interrupt signal or server error
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
		case err := <-errCh:
			return err
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		cancel()
		bus.Drain()
		bus.Close()
		return nil
	},
}

// bootstrapAdmin creates the initial superuser on an empty database so
// the token command has someone to mint tokens for.
func bootstrapAdmin(store storage.Store) error {
	if _, err := store.GetFirstActiveSuperuser(); err == nil {
		return nil
	}
	admin := &types.User{
		ID:             uuid.NewString(),
		Email:          "admin@localhost",
		Username:       "admin",
		OrganizationID: uuid.NewString(),
		IsActive:       true,
		IsSuperuser:    true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateUser(admin); err != nil {
		return err
	}
	logger := log.WithComponent("serve")
	logger.Info().
		Str("user_id", admin.ID).
		Str("organization_id", admin.OrganizationID).
		Msg("created initial admin user")
	return nil
}

func init() {
	serveCmd.Flags().String("data-dir", "/var/lib/windflow", "Directory for the bolt database")
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "Address for the HTTP/WebSocket API")
	serveCmd.Flags().String("local-socket", "", "Optional Unix socket for a read-only local API")
	serveCmd.Flags().String("work-dir", orchestrator.DefaultWorkDir, "Scratch directory for rendered compose files")
	serveCmd.Flags().String("jwt-secret", "", "JWT signing secret (or WINDFLOW_JWT_SECRET)")
	serveCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("log-json", false, "Log JSON instead of console output")
	serveCmd.Flags().Duration("sweep-interval", orchestrator.DefaultSweepInterval, "How often to sweep for stuck deployments")
}
