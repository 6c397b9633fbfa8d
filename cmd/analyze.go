package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/skinarb/skinarb/internal/app"
	"github.com/skinarb/skinarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one full analysis and print the results",
	Long: `Fetches both marketplace catalogues once, matches and ranks the price
differentials, and prints the top results to stdout. No HTTP server is
started and nothing runs in the background.`,
	RunE: runAnalyze,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntP("top", "t", 20, "Number of pairs to print")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewConsoleLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{NoScheduler: true})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	if top > len(result.Pairs) {
		top = len(result.Pairs)
	}

	fmt.Printf("\n%d pairs found (%d buy-side / %d sell-side listings scanned)\n\n",
		len(result.Pairs), result.ScannedA, result.ScannedB)
	fmt.Printf("%-50s %10s %10s %8s %8s\n", "ITEM", "BUY", "SELL", "DIFF", "MARGIN")
	for _, p := range result.Pairs[:top] {
		fmt.Printf("%-50.50s %10.2f %10.2f %8.2f %7.1f%%\n",
			p.DisplayName, p.BuyPrice, p.SellPrice, p.Diff, p.Margin*100)
	}

	return nil
}
