package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"cohesivm/internal/datastream"
	"cohesivm/internal/experiment"
	"cohesivm/internal/metadata"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		measurement measurementFlags
		sampleID    string
		ifaceName   string
		pixelsFlag  string
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a measurement over the selected pixels and persist the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var buffer *datastream.Buffer
			showProgress := !noProgress && isatty.IsTerminal(os.Stderr.Fd())
			var relay datastream.Relay
			if showProgress {
				buffer = datastream.NewBuffer()
				relay = buffer
			}

			exp, err := experiment.New(experiment.Params{
				Database:    db,
				Device:      buildDevice(cfg),
				Measurement: meas,
				Interface:   contact,
				SampleID:    sampleID,
				Pixels:      splitPixels(pixelsFlag),
				Relay:       relay,
				DCMI: metadata.DCMI{
					Publisher: cfg.DCMI.Publisher,
					Creator:   cfg.DCMI.Creator,
					Rights:    cfg.DCMI.Rights,
					Subject:   cfg.DCMI.Subject,
				},
				SettleDelay:  settleDelay(cfg),
				AbortTimeout: time.Duration(cfg.Workflow.AbortTimeoutSeconds) * time.Second,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := exp.Setup(ctx); err != nil {
				return err
			}
			if err := exp.Start(ctx); err != nil {
				return err
			}

			watched := make(chan struct{})
			if buffer != nil {
				go func() {
					defer close(watched)
					_ = experiment.WatchProgress(ctx, buffer, len(exp.Pixels()), os.Stderr)
				}()
			} else {
				close(watched)
			}

			if err := exp.Wait(context.Background()); err != nil {
				return err
			}
			if buffer != nil {
				buffer.Close()
			}
			<-watched

			out := cmd.OutOrStdout()
			switch state := exp.State(); state {
			case experiment.Finished:
				fmt.Fprintf(out, "Run finished: %d pixels stored under %s\n",
					len(exp.Pixels()), exp.DatasetPath())
				return nil
			case experiment.Aborted:
				if exp.Crashed() {
					return fmt.Errorf("run crashed after pixel index %d; partial dataset kept at %s",
						exp.CurrentPixelIndex(), exp.DatasetPath())
				}
				return fmt.Errorf("run aborted; partial dataset kept at %s", exp.DatasetPath())
			default:
				return fmt.Errorf("run ended in unexpected state %s", state)
			}
		},
	}

	measurement.register(cmd.Flags())
	cmd.Flags().StringVarP(&sampleID, "sample", "s", "", "Sample identifier recorded with the dataset")
	cmd.Flags().StringVarP(&ifaceName, "interface", "i", "trivial", "Measurement interface (trivial or ma8x8)")
	cmd.Flags().StringVar(&pixelsFlag, "pixels", "", "Comma separated pixel subset (default: all interface pixels)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	_ = cmd.MarkFlagRequired("sample")

	return cmd
}
