package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qamarero/placesync/internal/customersync"
	"github.com/qamarero/placesync/internal/reconcile"
	"github.com/qamarero/placesync/pkg/metabase"
)

var syncCardID int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the customer dataset from Metabase",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store", "metabase"); err != nil {
			return err
		}

		store, err := reconcile.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}

		cardID := cfg.Metabase.CardID
		if syncCardID > 0 {
			cardID = syncCardID
		}

		mb := metabase.NewClient(cfg.Metabase.URL, cfg.Metabase.APIKey,
			metabase.WithTimeout(time.Duration(cfg.Metabase.TimeoutSecs)*time.Second))

		summary, err := customersync.New(mb, store.Pool(), cardID, cfg.Metabase.RowLimit).Sync(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncCardID, "card", 0, "Metabase card id (default from config)")
	rootCmd.AddCommand(syncCmd)
}
