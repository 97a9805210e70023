package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goran-ethernal/IndexGraph/internal/app"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/config"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║           IndexGraph v%s               ║
║    Incremental Indexing Graph Framework   ║
╚═══════════════════════════════════════════╝
`
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexgraph",
	Short: "IndexGraph - incremental indexing graph framework",
	Long: `IndexGraph keeps a graph of indexers up to date. A clock drives hourly
price and tracked transaction indexers, and derived indexers such as the
L2 cost aggregator follow the slowest of their parents.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runGraph,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(statusCmd, listCmd, invalidateCmd, resetCmd, schemaCmd)
}

func runGraph(cmd *cobra.Command, _ []string) error {
	fmt.Printf(banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewComponentLoggerFromConfig(common.ComponentCoordinator, app.LoggingConfig(cfg))

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build indexer graph: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warnf("Failed to close: %v", err)
		}
	}()

	log.Infof("Starting IndexGraph with %d indexers...", len(a.Coordinator().Graph().Nodes()))

	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("IndexGraph stopped successfully")
	return nil
}
