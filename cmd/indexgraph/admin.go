package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goran-ethernal/IndexGraph/internal/app"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted safe height of every indexer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		database, store, _, err := app.Open(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		watermarks, err := store.GetAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(watermarks) == 0 {
			fmt.Println("No indexer has run yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0) //nolint:mnd
		fmt.Fprintln(w, "INDEXER\tSAFE HEIGHT\tMIN HEIGHT\tCONFIG HASH")
		for _, wm := range watermarks {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", wm.IndexerID, wm.SafeHeight, wm.MinHeight, shortHash(wm.ConfigHash))
		}
		return w.Flush()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured indexers and their parents",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		nodes, err := app.Layout(cfg)
		if err != nil {
			return err
		}

		for _, n := range nodes {
			if len(n.Parents) == 0 {
				fmt.Printf("  - %s\n", n.ID)
				continue
			}
			fmt.Printf("  - %s <- %s\n", n.ID, strings.Join(n.Parents, ", "))
		}
		return nil
	},
}

var (
	invalidateID     string
	invalidateHeight string
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Roll an indexer and everything derived from it back to a height",
	RunE: func(cmd *cobra.Command, _ []string) error {
		height, err := common.ParseHeight(invalidateHeight)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.Coordinator()
		if err := c.Initialize(cmd.Context()); err != nil {
			return err
		}

		acked, err := c.Invalidate(cmd.Context(), invalidateID, height)
		if err != nil {
			return err
		}

		fmt.Printf("%s invalidated, safe height is now %d\n", invalidateID, acked)
		return nil
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every persisted watermark",
	Long: `Delete every persisted watermark so the next run starts all indexers from
their min height. Indexed records are kept and overwritten as they are re-derived.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to reset without --yes")
		}

		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		database, store, _, err := app.Open(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := store.DeleteAll(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("All watermarks deleted.")
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := config.Schema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateID, "indexer", "", "id of the indexer to invalidate")
	invalidateCmd.Flags().StringVar(&invalidateHeight, "height", "", "height to roll back to, unix seconds or RFC 3339")
	_ = invalidateCmd.MarkFlagRequired("indexer")
	_ = invalidateCmd.MarkFlagRequired("height")

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.New(ctx, cfg)
}

func shortHash(h string) string {
	const n = 12
	if len(h) <= n {
		return h
	}
	return h[:n]
}
