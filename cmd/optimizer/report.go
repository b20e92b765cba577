package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/runstore"
)

func newReportCmd() *cobra.Command {
	var (
		storeDir string
		runID    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored optimization runs",
		Long:  "Without --run, lists all stored run ids. With --run, prints that run's report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := runstore.Open(storeDir)
			if err != nil {
				return err
			}
			defer runs.Close()

			if runID == "" {
				ids, err := runs.ListRuns()
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no stored runs")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			record, err := runs.GetRun(runID)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(record, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s (saved %s)\n\n", record.ID, record.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintln(cmd.OutOrStdout(), record.Result.Report())
			return nil
		},
	}
	cmd.Flags().StringVar(&storeDir, "store", "", "run store directory")
	cmd.Flags().StringVar(&runID, "run", "", "run id to report on")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full stored record as JSON")
	cmd.MarkFlagRequired("store")

	return cmd
}
