package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cyclescene/cyclescene/internal/broker"
)

// newSyncCmd runs one background sync and exits.
func newSyncCmd(stdout io.Writer, city *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch rides and routes once and persist them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), stdout, *city)
			if err != nil {
				return err
			}
			defer e.close()

			w := e.worker(broker.New())
			if err := w.SyncNow(cmd.Context()); err != nil {
				return fmt.Errorf("syncing %s: %w", w.City(), err)
			}
			rides, err := e.collections.Rides.GetAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading rides: %w", err)
			}
			e.logger.Info("sync complete", "city", w.City(), "rides", len(rides))
			return nil
		},
	}
}

func newClearCmd(stdout io.Writer, city *string) *cobra.Command {
	var saved, routes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the local rides cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), stdout, *city)
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()

			if err := e.collections.Rides.Clear(ctx); err != nil {
				return fmt.Errorf("clearing rides: %w", err)
			}
			cleared := []string{"rides"}
			if routes {
				if err := e.collections.Routes.Clear(ctx); err != nil {
					return fmt.Errorf("clearing routes: %w", err)
				}
				cleared = append(cleared, "routes")
			}
			if saved {
				if err := e.collections.Saved.Clear(ctx); err != nil {
					return fmt.Errorf("clearing saved rides: %w", err)
				}
				cleared = append(cleared, "saved")
			}
			e.logger.Info("cleared local cache", "collections", cleared)
			return nil
		},
	}
	cmd.Flags().BoolVar(&saved, "saved", false, "also remove saved rides")
	cmd.Flags().BoolVar(&routes, "routes", false, "also remove cached routes")
	return cmd
}
