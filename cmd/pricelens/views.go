package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"PriceLens/internal/model"
	"PriceLens/internal/pipeline"

	"github.com/spf13/cobra"
)

type viewsOptions struct {
	symbol string
	start  string
	end    string
	pretty bool
}

func newViewsCmd(root *rootOptions) *cobra.Command {
	opts := &viewsOptions{}
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Run the pipeline once and print the views as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd.Context(), root.configPath, opts)
		},
	}
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "Ticker symbol (defaults to pipeline.default_symbol)")
	cmd.Flags().StringVar(&opts.start, "start", "", "Start date YYYY-MM-DD (defaults to end minus the lookback)")
	cmd.Flags().StringVar(&opts.end, "end", "", "End date YYYY-MM-DD (defaults to today)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

// resolveInput applies the configured defaults to the flag values.
func resolveInput(opts *viewsOptions, defaultSymbol string, lookbackDays int, now time.Time) (pipeline.Input, error) {
	in := pipeline.Input{Symbol: opts.symbol}
	if in.Symbol == "" {
		in.Symbol = defaultSymbol
	}
	var err error
	in.End = model.DateOf(now)
	if opts.end != "" {
		if in.End, err = model.ParseDate(opts.end); err != nil {
			return in, fmt.Errorf("--end: %w", err)
		}
	}
	in.Start = in.End.AddDays(-lookbackDays)
	if opts.start != "" {
		if in.Start, err = model.ParseDate(opts.start); err != nil {
			return in, fmt.Errorf("--start: %w", err)
		}
	}
	return in, nil
}

func runViews(ctx context.Context, configPath string, opts *viewsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := createLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return err
	}
	defer logger.Sync()

	in, err := resolveInput(opts, cfg.Pipeline.DefaultSymbol, cfg.Pipeline.DefaultLookbackDays, time.Now())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	v := a.controller.Run(ctx, in)

	enc := json.NewEncoder(os.Stdout)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode views: %w", err)
	}
	if v.Status == model.StatusFailed {
		return fmt.Errorf("pipeline %s: %s", v.Error.Kind, v.Error.Message)
	}
	return nil
}
