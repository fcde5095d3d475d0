package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Interrupted runs exit quietly; everything else names the tool.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "coverscan:", err)
		}
		os.Exit(1)
	}
}
