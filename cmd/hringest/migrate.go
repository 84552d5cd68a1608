package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hringest/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the departments, jobs and employees tables if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := a.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := storage.EnsureSchema(cmd.Context(), repo); err != nil {
				return withCode(exitStorage, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", repo.Kind())
			return nil
		},
	}
}
