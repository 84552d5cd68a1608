package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"hringest/internal/ingest"
	"hringest/internal/records"
	"hringest/internal/storage"
)

type ingestOptions struct {
	table       string
	source      string
	skipInvalid bool
	mode        string
}

func newIngestCmd(a *app) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one CSV source (path, URL or literal text) into a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := records.ParseKind(opts.table)
			if err != nil {
				return withCode(exitUsage, err)
			}
			req := ingest.Request{Kind: kind, SkipInvalid: opts.skipInvalid}
			if opts.mode != "" {
				m, err := storage.ParseMode(opts.mode)
				if err != nil {
					return withCode(exitUsage, err)
				}
				req.Mode = m
			}

			svc, repo, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := svc.IngestSource(cmd.Context(), opts.source, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&opts.table, "table", "", "departments, jobs or employees (required)")
	cmd.Flags().StringVar(&opts.source, "source", "", "file path, http(s) URL, or literal CSV (required)")
	cmd.Flags().BoolVar(&opts.skipInvalid, "skip-invalid", false, "skip invalid rows instead of failing the load")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "insert or upsert (default from settings)")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
