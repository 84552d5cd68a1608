package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"hringest/internal/errs"
	"hringest/internal/reports"
	"hringest/internal/storage"
)

type reportOptions struct {
	year           int
	format         string
	includeUnknown bool
}

func newReportCmd(a *app) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run a hiring report",
	}
	pf := cmd.PersistentFlags()
	pf.IntVar(&opts.year, "year", reports.DefaultYear, "calendar year")
	pf.StringVar(&opts.format, "format", "json", "json or csv")
	pf.BoolVar(&opts.includeUnknown, "include-unknown", true, "group hires without department/job under (Unknown)")

	run := func(fn func(cmd *cobra.Command, repo storage.Repository) (reports.Tabular, any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if opts.format != "json" && opts.format != "csv" {
				return withCode(exitUsage, errs.Configf("--format must be json or csv"))
			}
			repo, err := a.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			tab, doc, err := fn(cmd, repo)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), opts.format, tab, doc)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hiring-by-quarter",
		Short: "Hires per department and job for each quarter of --year",
		RunE: run(func(cmd *cobra.Command, repo storage.Repository) (reports.Tabular, any, error) {
			rows, err := reports.HiringByQuarter(cmd.Context(), repo, opts.year, opts.includeUnknown)
			return rows, rows, err
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "departments-above-mean",
		Short: "Departments that hired more than the mean in --year",
		RunE: run(func(cmd *cobra.Command, repo storage.Repository) (reports.Tabular, any, error) {
			res, err := reports.DepartmentsAboveMean(cmd.Context(), repo, opts.year, opts.includeUnknown)
			return res, res, err
		}),
	})
	return cmd
}

func writeReport(w io.Writer, format string, tab reports.Tabular, doc any) error {
	if format == "csv" {
		return reports.WriteCSV(w, tab)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
