package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/securityvision/analyzer/internal/report"
	"github.com/securityvision/analyzer/internal/security"
	"github.com/securityvision/analyzer/internal/store"
)

func newReportCmd() *cobra.Command {
	var xlsxPath, pngPath, htmlPath string

	cmd := &cobra.Command{
		Use:   "report <database>",
		Short: "Summarise a run database as JSON, XLSX, PNG or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			dbPath := args[0]
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("database not found: %w", err)
			}
			st, err := store.OpenExisting(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := report.Build(c.Context(), st)
			if err != nil {
				return err
			}

			title := filepath.Base(dbPath)
			outputs := []struct {
				path  string
				write func(io.Writer) error
			}{
				{xlsxPath, func(w io.Writer) error { return report.WriteXLSX(w, rep) }},
				{pngPath, func(w io.Writer) error { return report.WriteTimelinePNG(w, rep) }},
				{htmlPath, func(w io.Writer) error { return report.RenderHTML(w, rep, title) }},
			}
			wrote := false
			for _, o := range outputs {
				if o.path == "" {
					continue
				}
				if err := security.ValidateExportPath(o.path); err != nil {
					return err
				}
				if err := writeFile(o.path, o.write); err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "wrote %s\n", o.path)
				wrote = true
			}
			if wrote {
				return nil
			}

			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write a spreadsheet to this path")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write the danger timeline plot to this path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write the interactive chart page to this path")
	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
