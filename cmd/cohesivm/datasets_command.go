package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cohesivm/internal/database"
	"cohesivm/internal/metadata"
)

func newDatasetsCommand(cmdCtx *commandContext) *cobra.Command {
	datasetsCmd := &cobra.Command{
		Use:   "datasets",
		Short: "Inspect stored datasets",
	}

	datasetsCmd.AddCommand(newDatasetsListCommand(cmdCtx))
	datasetsCmd.AddCommand(newDatasetsShowCommand(cmdCtx))
	datasetsCmd.AddCommand(newDatasetsFiltersCommand(cmdCtx))

	return datasetsCmd
}

func newDatasetsListCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		measurementFilter string
		settingFilters    []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets, optionally narrowed by measurement and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cmdCtx.openDatabase(nil)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()

			settings, err := parseSettingFilters(settingFilters)
			if err != nil {
				return err
			}

			measurements := []string{measurementFilter}
			if measurementFilter == "" {
				measurements, err = db.Measurements(ctx)
				if err != nil {
					return err
				}
			}

			rows := make([][]string, 0)
			for _, measurement := range measurements {
				paths, err := db.FilterBySettings(ctx, measurement, settings)
				if err != nil {
					return err
				}
				for _, path := range paths {
					row, err := datasetRow(ctx, db, path)
					if err != nil {
						return err
					}
					rows = append(rows, row)
				}
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No datasets found")
				return nil
			}
			headers := []string{"MEASUREMENT", "SAMPLE", "TIMESTAMP", "PIXELS", "PATH"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&measurementFilter, "measurement", "m", "", "Only list datasets of this measurement")
	cmd.Flags().StringArrayVar(&settingFilters, "setting", nil, "Require a setting, as name=value (repeatable)")

	return cmd
}

func newDatasetsShowCommand(cmdCtx *commandContext) *cobra.Command {
	var pixelID string

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show the metadata of a dataset, or one pixel's data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cmdCtx.openDatabase(nil)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if pixelID != "" {
				results, err := db.LoadData(ctx, args[0], pixelID)
				if err != nil {
					return err
				}
				result := results[0]
				rows := make([][]string, 0, result.Len())
				for _, values := range result.Rows {
					row := make([]string, len(values))
					for i, value := range values {
						row[i] = strconv.FormatFloat(value, 'g', 6, 64)
					}
					rows = append(rows, row)
				}
				aligns := make([]columnAlignment, len(result.Columns))
				for i := range aligns {
					aligns[i] = alignRight
				}
				fmt.Fprintln(out, renderTable(result.Columns, rows, aligns))
				return nil
			}

			m, err := db.LoadMetadata(ctx, args[0])
			if err != nil {
				return err
			}
			stored, err := db.DatasetLength(ctx, args[0])
			if err != nil {
				return err
			}

			dcmi := m.DCMI()
			fmt.Fprintf(out, "Title:       %s\n", dcmi.Title)
			fmt.Fprintf(out, "Date:        %s\n", dcmi.Date)
			fmt.Fprintf(out, "Measurement: %s\n", m.Measurement())
			fmt.Fprintf(out, "Sample:      %s\n", m.SampleID())
			fmt.Fprintf(out, "Device:      %s\n", m.Device())
			fmt.Fprintf(out, "Interface:   %s\n", m.Interface())
			fmt.Fprintf(out, "Pixels:      %d planned, %d stored\n", len(m.PixelIDs()), stored)
			settings := m.Settings()
			for _, name := range settings.Keys() {
				value, _ := settings.Get(name)
				fmt.Fprintf(out, "Setting:     %s = %s\n", name, value.Literal())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pixelID, "pixel", "p", "", "Print the measured rows of this pixel instead")

	return cmd
}

func newDatasetsFiltersCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "filters <measurement>",
		Short: "List the distinct setting values stored under a measurement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cmdCtx.openDatabase(nil)
			if err != nil {
				return err
			}
			defer db.Close()

			filters, err := db.SettingFilters(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(filters) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No datasets under measurement %q\n", args[0])
				return nil
			}

			names := make([]string, 0, len(filters))
			for name := range filters {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				literals := make([]string, 0, len(filters[name]))
				for _, value := range filters[name] {
					literals = append(literals, value.Literal())
				}
				rows = append(rows, []string{name, strings.Join(literals, ", ")})
			}
			headers := []string{"SETTING", "VALUES"}
			aligns := []columnAlignment{alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
}

func datasetRow(ctx context.Context, db *database.Database, path string) ([]string, error) {
	measurement, _, timestamp, sampleID, err := database.SplitDatasetPath(path)
	if err != nil {
		return nil, err
	}
	stored, err := db.DatasetLength(ctx, path)
	if err != nil {
		return nil, err
	}
	return []string{measurement, sampleID, timestamp, strconv.Itoa(stored), path}, nil
}

// parseSettingFilters turns name=value flags into typed settings. Values
// parse as bool, then number, then fall back to a literal string.
func parseSettingFilters(filters []string) (metadata.Settings, error) {
	settings := metadata.NewSettings()
	for _, filter := range filters {
		name, raw, found := strings.Cut(filter, "=")
		if !found || strings.TrimSpace(name) == "" {
			return settings, fmt.Errorf("invalid setting filter %q (expected name=value)", filter)
		}
		name = strings.TrimSpace(name)
		raw = strings.TrimSpace(raw)

		var value metadata.Value
		if flag, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
			value = metadata.Bool(flag)
		} else if scalar, err := strconv.ParseFloat(raw, 64); err == nil {
			value = metadata.Float(scalar)
		} else {
			value = metadata.String(raw)
		}
		if err := settings.Set(name, value); err != nil {
			return settings, err
		}
	}
	return settings, nil
}
