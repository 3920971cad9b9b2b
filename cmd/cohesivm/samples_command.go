package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cohesivm/internal/database"
)

func newSamplesCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "samples [sample-id]",
		Short: "List known samples, or the datasets of one sample",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cmdCtx.openDatabase(nil)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				paths, err := db.FilterBySampleID(ctx, args[0])
				if err != nil {
					return err
				}
				if len(paths) == 0 {
					fmt.Fprintf(out, "No datasets for sample %q\n", args[0])
					return nil
				}
				rows := make([][]string, 0, len(paths))
				for _, path := range paths {
					measurement, _, timestamp, _, err := database.SplitDatasetPath(path)
					if err != nil {
						return err
					}
					rows = append(rows, []string{measurement, timestamp, path})
				}
				headers := []string{"MEASUREMENT", "TIMESTAMP", "PATH"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft}
				fmt.Fprintln(out, renderTable(headers, rows, aligns))
				return nil
			}

			sampleIDs, err := db.SampleIDs(ctx)
			if err != nil {
				return err
			}
			if len(sampleIDs) == 0 {
				fmt.Fprintln(out, "No samples stored")
				return nil
			}
			rows := make([][]string, 0, len(sampleIDs))
			for _, sampleID := range sampleIDs {
				paths, err := db.FilterBySampleID(ctx, sampleID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{sampleID, strconv.Itoa(len(paths))})
			}
			headers := []string{"SAMPLE", "DATASETS"}
			aligns := []columnAlignment{alignLeft, alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}
}
