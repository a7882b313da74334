package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/qamarero/placesync/internal/db"
	"github.com/qamarero/placesync/internal/model"
	"github.com/qamarero/placesync/internal/reconcile"
)

var statusFailures bool

// statusInfo is the dataset health snapshot reported by the status
// command and the /stats endpoint.
type statusInfo struct {
	Customers    int64           `json:"customers"`
	Pending      int64           `json:"pending"`
	Processed    int64           `json:"processed"`
	Places       int64           `json:"places"`
	Unenriched   int64           `json:"unenriched,omitempty"`
	FailureRows  []failureRow    `json:"failure_rows,omitempty"`
	LastRunStats *model.RunStats `json:"last_run,omitempty"`
}

type failureRow struct {
	ID         string  `json:"id"`
	CustomerID *string `json:"customer_id"`
	Name       *string `json:"name"`
	Marker     *string `json:"marker"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending, processed, and enriched counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		store, err := reconcile.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return err
		}
		defer store.Close()

		info, err := collectStatus(ctx, store.Pool(), statusFailures)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

// collectStatus gathers the counts. withFailures adds the rows that were
// marked processed but never produced a place row, the closest signal we
// have to "this record keeps failing".
func collectStatus(ctx context.Context, pool db.Pool, withFailures bool) (*statusInfo, error) {
	info := &statusInfo{}

	counts := []struct {
		dest  *int64
		query string
	}{
		{&info.Customers, `SELECT count(*) FROM customers`},
		{&info.Pending, `SELECT count(*) FROM places_pending WHERE place_id IS NULL`},
		{&info.Processed, `SELECT count(*) FROM places_pending WHERE place_id LIKE 'PROCESSED\_%'`},
		{&info.Places, `SELECT count(*) FROM places`},
	}
	for _, c := range counts {
		if err := pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, eris.Wrap(err, "status: count query")
		}
	}

	if !withFailures {
		return info, nil
	}

	rows, err := pool.Query(ctx,
		`SELECT pp.id, pp.customer_id, pp.name, pp.place_id
		 FROM places_pending pp
		 LEFT JOIN places p ON p.customer_id = pp.customer_id
		 WHERE pp.place_id LIKE 'PROCESSED\_%' AND p.customer_id IS NULL
		 ORDER BY pp.updated_at DESC
		 LIMIT 20`)
	if err != nil {
		return nil, eris.Wrap(err, "status: failure query")
	}
	defer rows.Close()

	for rows.Next() {
		var fr failureRow
		if err := rows.Scan(&fr.ID, &fr.CustomerID, &fr.Name, &fr.Marker); err != nil {
			return nil, eris.Wrap(err, "status: scan failure row")
		}
		info.FailureRows = append(info.FailureRows, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "status: iterate failure rows")
	}
	info.Unenriched = int64(len(info.FailureRows))

	return info, nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusFailures, "failures", false, "list processed rows that never produced a place")
	rootCmd.AddCommand(statusCmd)
}
