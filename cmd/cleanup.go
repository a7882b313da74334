package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qamarero/placesync/internal/reconcile"
)

var (
	cleanupResetMarkers bool
	cleanupClearPlaces  bool
	cleanupYes          bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reset processed markers or clear enriched rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !cleanupResetMarkers && !cleanupClearPlaces {
			return eris.New("cleanup: nothing to do, pass --reset-markers and/or --clear-places")
		}
		if cleanupClearPlaces && !cleanupYes {
			return eris.New("cleanup: --clear-places deletes every enriched row, confirm with --yes")
		}

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		store, err := reconcile.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer store.Close()
		pool := store.Pool()

		if cleanupResetMarkers {
			tag, err := pool.Exec(ctx,
				`UPDATE places_pending SET place_id = NULL, updated_at = now() WHERE place_id LIKE 'PROCESSED\_%'`)
			if err != nil {
				return eris.Wrap(err, "cleanup: reset markers")
			}
			zap.L().Info("reset processed markers", zap.Int64("rows", tag.RowsAffected()))
			fmt.Printf("reset %d processed markers\n", tag.RowsAffected())
		}

		if cleanupClearPlaces {
			tag, err := pool.Exec(ctx, `DELETE FROM places`)
			if err != nil {
				return eris.Wrap(err, "cleanup: clear places")
			}
			zap.L().Info("cleared places", zap.Int64("rows", tag.RowsAffected()))
			fmt.Printf("deleted %d place rows\n", tag.RowsAffected())
		}

		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupResetMarkers, "reset-markers", false, "clear PROCESSED_ markers so records are retried")
	cleanupCmd.Flags().BoolVar(&cleanupClearPlaces, "clear-places", false, "delete all rows from the places table")
	cleanupCmd.Flags().BoolVar(&cleanupYes, "yes", false, "confirm destructive operations")
	rootCmd.AddCommand(cleanupCmd)
}
