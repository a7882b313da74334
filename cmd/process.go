package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qamarero/placesync/internal/pipeline"
)

var (
	processMax    int
	processDelay  int
	processStop   bool
	processIDs    []string
	processStream bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Enrich pending records with place data",
	Long:  "Reads pending staging rows, looks each one up via Outscraper, validates the result, and writes it to the places table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts := pipelineOptions(cfg.Pipeline, processMax, processDelay, processStop, processIDs)

		var sink pipeline.EventSink
		if processStream {
			sink = pipeline.NewNDJSONSink(os.Stdout)
		}

		stats, err := rt.pipe.Run(ctx, opts, sink)
		if err != nil {
			return err
		}

		if !processStream {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processMax, "max-records", 0, "max records to process (default from config)")
	processCmd.Flags().IntVar(&processDelay, "delay-ms", -1, "delay between records in ms (default from config)")
	processCmd.Flags().BoolVar(&processStop, "stop-on-error", false, "abort the run on the first record failure")
	processCmd.Flags().StringSliceVar(&processIDs, "id", nil, "process exactly these staging row ids")
	processCmd.Flags().BoolVar(&processStream, "stream", false, "emit NDJSON events instead of a final summary")
	rootCmd.AddCommand(processCmd)
}
