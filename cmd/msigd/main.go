// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/msig/cmd/msigd/run"
)

func main() {
	cmd := &cobra.Command{
		Use:          "msigd",
		Short:        "Runs a multi-party wallet daemon",
		SilenceUsage: true,
	}
	cmd.AddCommand(run.Command())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
