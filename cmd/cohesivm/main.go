package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Cancellation reaches the user as an aborted run already.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "cohesivm: %v\n", err)
		}
		os.Exit(1)
	}
}
