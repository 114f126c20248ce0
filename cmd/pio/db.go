package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/productif/internal/db"
)

func newDBCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd(flags))
	return cmd
}

func newDBMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the agent tables",
		Long:  "Migrates the conversation state, contact and exchange tables. Other commands migrate on startup too; this one only migrates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(out, "Connected to %s database\n", a.cfg.Database.Driver)
			fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
			return nil
		},
	}
}
