package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/securityvision/analyzer/internal/monitoring"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Analyse one video and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if outDir == "" {
				outDir = a.cfg.GetOutputDir()
			}

			an, cs, err := newAnalyzer(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cs.Close()

			lastDecile := -1
			res := an.Analyze(ctx, args[0], outDir, func(p float64) {
				if d := int(p) / 10; d != lastDecile {
					lastDecile = d
					monitoring.Logf("[Main] Progress: %.1f%%", p)
				}
			})

			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Success {
				if res.Err != nil {
					return res.Err
				}
				return errors.New(res.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default output_dir from config)")
	return cmd
}
