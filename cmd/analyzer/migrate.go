package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securityvision/analyzer/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the schema of a run database",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up <database>",
			Short: "Apply all pending migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				return withStore(args[0], func(s *store.Store) error {
					if err := s.MigrateUp(); err != nil {
						return err
					}
					return printVersion(c, s)
				})
			},
		},
		&cobra.Command{
			Use:   "down <database>",
			Short: "Roll back the most recent migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				return withStore(args[0], func(s *store.Store) error {
					if err := s.MigrateDown(); err != nil {
						return err
					}
					return printVersion(c, s)
				})
			},
		},
		&cobra.Command{
			Use:   "version <database>",
			Short: "Print the current schema version",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				return withStore(args[0], func(s *store.Store) error {
					return printVersion(c, s)
				})
			},
		},
	)
	return cmd
}

func withStore(path string, fn func(*store.Store) error) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func printVersion(c *cobra.Command, s *store.Store) error {
	v, dirty, err := s.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
