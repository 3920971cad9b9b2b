package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"cohesivm/internal/datastream"
	"cohesivm/internal/experiment"
	"cohesivm/internal/metadata"
)

func newPreviewCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		measurement measurementFlags
		ifaceName   string
	)

	cmd := &cobra.Command{
		Use:   "preview <pixel>",
		Short: "Measure a single pixel without persisting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pixel := args[0]

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}
			db, err := cmdCtx.openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			contact, err := buildInterface(ifaceName, cfg)
			if err != nil {
				return err
			}
			meas, err := measurement.build()
			if err != nil {
				return err
			}

			buffer := datastream.NewBuffer()
			exp, err := experiment.New(experiment.Params{
				Database:    db,
				Device:      buildDevice(cfg),
				Measurement: meas,
				Interface:   contact,
				SampleID:    "preview",
				Relay:       buffer,
				DCMI:        metadata.DCMI{},
				SettleDelay: settleDelay(cfg),
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := exp.Preview(ctx, pixel); err != nil {
				return err
			}
			if err := exp.Wait(context.Background()); err != nil {
				return err
			}
			buffer.Close()

			rows := make([][]string, 0, buffer.Len())
			for {
				point, ok := buffer.TryNext()
				if !ok {
					break
				}
				if point.Values == nil {
					continue
				}
				row := make([]string, 0, len(point.Values))
				for _, value := range point.Values {
					row = append(row, strconv.FormatFloat(value, 'g', 6, 64))
				}
				rows = append(rows, row)
			}
			if len(rows) == 0 {
				return fmt.Errorf("preview of pixel %s produced no datapoints", pixel)
			}

			columns := meas.Columns()
			aligns := make([]columnAlignment, len(columns))
			for i := range aligns {
				aligns[i] = alignRight
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows, aligns))
			return nil
		},
	}

	measurement.register(cmd.Flags())
	cmd.Flags().StringVarP(&ifaceName, "interface", "i", "trivial", "Measurement interface (trivial or ma8x8)")

	return cmd
}
