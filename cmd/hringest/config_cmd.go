package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hringest/internal/config"
	"hringest/internal/errs"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Lint the header map and settings files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			icfg, err := a.ingestConfig()
			if err != nil {
				return err
			}
			issues := append(config.ValidateHeaderMap(icfg.HeaderMap), config.ValidateSettings(icfg.Settings)...)
			out := cmd.OutOrStdout()
			for _, iss := range issues {
				fmt.Fprintf(out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return withCode(exitValidation, errs.Configf("configuration is invalid: %s, %s", a.cfg.HeaderMapPath, a.cfg.SettingsPath))
			}
			fmt.Fprintf(out, "configuration is valid: %s, %s\n", a.cfg.HeaderMapPath, a.cfg.SettingsPath)
			return nil
		},
	})
	return cmd
}
