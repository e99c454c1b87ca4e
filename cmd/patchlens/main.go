// Package main is the entry point for the PatchLens service.
// PatchLens reviews code changes automatically: it receives webhook events
// from a source-control server, asks an LLM provider for a review, and
// persists and delivers the result.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/consts"
	"github.com/patchlens/patchlens/internal/check"
	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/database"
	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/export"
	"github.com/patchlens/patchlens/internal/llm"
	"github.com/patchlens/patchlens/internal/notify"
	"github.com/patchlens/patchlens/internal/prompt"
	"github.com/patchlens/patchlens/internal/scm"
	"github.com/patchlens/patchlens/internal/server"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// envPath holds the path to the optional env file
var envPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "patchlens",
	Short: "PatchLens - automated code review between source control and an LLM",
	Long: `PatchLens is a webhook-driven code review service. It listens for push
and merge-request events, fetches the change set from the source-control
server, asks an LLM provider for a review, and stores and delivers the
result.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PatchLens server",
	Long: `Start the HTTP server that receives webhook events and serves review
results.

On first run, create a starter configuration interactively:
  patchlens init

To verify connectivity to every external dependency:
  patchlens check

After initial setup, simply run:
  patchlens serve`,
	Run: runServe,
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and probe external dependencies",
	Long: `Run the environment doctor: validate the configuration, open the store,
and probe the source-control server, the LLM provider and the mail
endpoint. Exits non-zero when any check fails.`,
	Run: runCheck,
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a starter env file",
	Run: func(cmd *cobra.Command, args []string) {
		if err := check.RunInitWizard(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PatchLens %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	// Disable auto-generated completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "path to the env file")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	// Serve command flags
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe starts the PatchLens server
func runServe(cmd *cobra.Command, args []string) {
	// Record server start time
	consts.SetStartedAt(time.Now())

	// Load configuration from the environment
	cfg, err := config.Load(envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override config with command line flags
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}

	if validationErr := config.Validate(cfg); validationErr != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] Configuration validation failed\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", validationErr)
		fmt.Fprintf(os.Stderr, "Run 'patchlens check' for a full environment report,\n")
		fmt.Fprintf(os.Stderr, "or 'patchlens init' to create a starter configuration.\n\n")
		os.Exit(errors.ExitCodeConfigValidation)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting PatchLens",
		zap.String("version", Version),
	)

	// Initialize telemetry (OpenTelemetry traces and metrics)
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()

	// Initialize database
	if err := database.Init(cfg.Store.URL); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	// Create store instance for dependency injection
	dataStore := store.NewStore(database.Get())

	// Build the upstream clients
	scmClient, err := scm.NewClient(&cfg.SCM)
	if err != nil {
		logger.Fatal("Failed to create source-control client", zap.Error(err))
	}
	llmClient, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	prompts, err := prompt.NewBuilder(&cfg.Review)
	if err != nil {
		logger.Fatal("Failed to load prompt profile", zap.Error(err))
	}

	// Create and start the review engine
	reviewEngine := engine.New(cfg, dataStore, engine.Deps{
		SCM:      scmClient,
		LLM:      llmClient,
		Notifier: notify.New(&cfg.Notifier),
		Prompts:  prompts,
	})
	reviewEngine.Start()
	defer func() {
		// Workers finish the stage in flight before the grace window closes
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := reviewEngine.Stop(ctx); err != nil {
			logger.Error("Review engine shutdown incomplete", zap.Error(err))
		}
	}()

	// Start failure retention sweep (no-op when retention is disabled)
	cleanupService := store.NewFailureCleanupService(dataStore.Failures(), cfg.Store.RetentionDays)
	if err := cleanupService.Start(); err != nil {
		logger.Warn("Failed to start failure retention sweep", zap.Error(err))
	} else {
		defer cleanupService.Stop()
	}

	// Create and configure server
	srv := server.New(cfg, reviewEngine, dataStore, export.New(), llmClient)
	srv.SetupRoutes()

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("PatchLens server is running",
		zap.String("address", cfg.Server.Address()),
	)

	// Log the webhook URL for user convenience
	port := cfg.Server.Port
	logger.Info(fmt.Sprintf("  Local:   http://localhost:%d/webhook/code-review", port))
	if lanIP := getLocalIP(); lanIP != "" {
		logger.Info(fmt.Sprintf("  Network: http://%s:%d/webhook/code-review", lanIP, port))
	}

	// Wait for shutdown
	srv.WaitForShutdown()

	logger.Info("PatchLens stopped")
}

// runCheck runs the environment doctor and exits non-zero on failure
func runCheck(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	report := check.NewChecker(cfg).Run(context.Background())
	report.Print()

	if report.HasFailures() {
		os.Exit(1)
	}
}

// getLocalIP returns the first non-loopback IPv4 address
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
