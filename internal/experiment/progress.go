package experiment

import (
	"context"
	"io"

	"github.com/schollz/progressbar/v3"

	"cohesivm/internal/datastream"
)

// WatchProgress consumes a buffered relay and renders a pixel progress bar.
// The worker publishes a marker datapoint without values after each persisted
// pixel; everything with values is live measurement data and passes through
// untouched. Returns when totalPixels markers arrived, the relay closed, or
// ctx ended.
func WatchProgress(ctx context.Context, buffer *datastream.Buffer, totalPixels int, out io.Writer) error {
	if totalPixels <= 0 {
		return nil
	}
	bar := progressbar.NewOptions(totalPixels,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("pixels"),
		progressbar.OptionClearOnFinish(),
	)
	completed := 0
	for completed < totalPixels {
		point, ok := buffer.Next(ctx)
		if !ok {
			return ctx.Err()
		}
		if point.Values == nil {
			completed++
			if err := bar.Add(1); err != nil {
				return err
			}
		}
	}
	return bar.Finish()
}
