package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pricelens",
		Short:         "Daily price, volume and trend views for a single instrument",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultPath, "Path to the YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newViewsCmd(opts),
	)
	return cmd
}
