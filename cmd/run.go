package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/skinarb/skinarb/internal/app"
	"github.com/skinarb/skinarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the price differential service",
	Long: `Starts the skinarb service, which will:
1. Fetch the full sell catalogues of both marketplaces on the heavy cadence
2. Re-check the interesting listings on the light cadence
3. Publish the ranked price differentials over the HTTP API

Use --no-scheduler to serve the API without background refreshes.`,
	RunE: runService,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("no-scheduler", false, "Serve the API without background refreshes")
}

func runService(cmd *cobra.Command, args []string) error {
	// Optional .env file for local development
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	application, err := app.New(cfg, logger, &app.Options{
		NoScheduler: noScheduler,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
